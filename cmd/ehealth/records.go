package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/ehealth-cst/ehealth-client/internal/domain"
	"github.com/ehealth-cst/ehealth-client/internal/ehealth"
	"github.com/ehealth-cst/ehealth-client/internal/session"
)

var _ ehealth.UserInvalidator = (*session.Controller)(nil)

func (a *app) cmdHistory(ctx context.Context, args []string) error {
	user, err := a.requireSession(ctx)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	patient := fs.String("patient", user.ID, "patient id (health assistants and the dean)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	treatments, err := a.api.FetchTreatments(ctx, *patient)
	if err != nil {
		return err
	}
	if len(treatments) == 0 {
		fmt.Fprintln(a.out, "No treatments on record")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tSEVERITY\tILLNESSES\tMEDICINES\tNOTES\t")
	for _, t := range treatments {
		illnesses := make([]string, 0, len(t.Illnesses))
		for _, i := range t.Illnesses {
			illnesses = append(illnesses, i.Name)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t\n",
			t.CreatedAt.Local().Format(time.DateOnly), t.Severity, strings.Join(illnesses, ", "), t.MedicinesUsed(), t.Notes)
	}
	return w.Flush()
}

func (a *app) cmdProfile(ctx context.Context, args []string) error {
	user, err := a.requireSession(ctx)
	if err != nil {
		return err
	}
	if len(args) == 0 || args[0] == "show" {
		return a.cmdWhoami(ctx)
	}
	if args[0] != "update" {
		return fmt.Errorf("unknown profile command: %s", args[0])
	}

	fs := flag.NewFlagSet("profile update", flag.ContinueOnError)
	name := fs.String("name", user.Name, "display name")
	gender := fs.String("gender", string(user.Gender), "MALE, FEMALE or OTHERS")
	contact := fs.String("contact", user.ContactNumber, "contact number")
	bloodType := fs.String("blood-type", "", "one of "+strings.Join(domain.BloodTypes, ", "))
	department := fs.String("department", "", "programme id, see `ehealth programmes`")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	updated, err := a.api.UpdateProfile(ctx, domain.ProfileUpdate{
		Name:          *name,
		Gender:        domain.Gender(strings.ToUpper(*gender)),
		ContactNumber: *contact,
		BloodType:     strings.ToUpper(*bloodType),
		DepartmentID:  *department,
	})
	if err != nil {
		return err
	}
	if updated == nil {
		updated = a.controller.Snapshot().User
	}
	if updated == nil {
		color.New(color.FgGreen).Fprintln(a.out, "Profile updated")
		return nil
	}
	color.New(color.FgGreen).Fprintf(a.out, "Profile updated for %s\n", updated.Name)
	return nil
}

func (a *app) cmdProgrammes(ctx context.Context) error {
	user, err := a.requireSession(ctx)
	if err != nil {
		return err
	}
	programmes, err := a.api.FetchProgrammes(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROGRAMME\t")
	for _, p := range programmes {
		name := p.Name
		if p.ID == user.DepartmentID {
			name += " *"
		}
		fmt.Fprintf(w, "%s\t%s\t\n", p.ID, name)
	}
	return w.Flush()
}

func (a *app) cmdLeave(ctx context.Context, args []string) error {
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}

	sub := "show"
	if len(args) > 0 {
		sub = args[0]
	}
	switch sub {
	case "show":
		leave, err := a.api.FetchLeave(ctx)
		if err != nil {
			return err
		}
		a.printLeave(leave)
		return nil
	case "set":
		fs := flag.NewFlagSet("leave set", flag.ContinueOnError)
		from := fs.String("from", "", "first day of leave, "+domain.DateLayout)
		to := fs.String("to", "", "last day of leave, "+domain.DateLayout)
		reason := fs.String("reason", "", "reason for the leave")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *from == "" || *to == "" || *reason == "" {
			return errors.New("--from, --to and --reason are required")
		}
		start, err := time.Parse(domain.DateLayout, *from)
		if err != nil {
			return fmt.Errorf("--from: %w", err)
		}
		end, err := time.Parse(domain.DateLayout, *to)
		if err != nil {
			return fmt.Errorf("--to: %w", err)
		}
		leave, err := a.api.SetLeave(ctx, domain.LeaveRequest{StartDate: start, EndDate: end, Reason: *reason})
		if err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintln(a.out, "Leave set")
		a.printLeave(leave)
		return nil
	case "cancel":
		if _, err := a.api.CancelLeave(ctx); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintln(a.out, "Leave cancelled")
		return nil
	default:
		return fmt.Errorf("unknown leave command: %s", sub)
	}
}

func (a *app) printLeave(leave *domain.Leave) {
	if leave == nil {
		fmt.Fprintln(a.out, "No leave set")
		return
	}
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "From:\t%s\n", leave.StartDate.UTC().Format(domain.DateLayout))
	fmt.Fprintf(w, "To:\t%s\n", leave.EndDate.UTC().Format(domain.DateLayout))
	fmt.Fprintf(w, "Reason:\t%s\n", leave.Reason)
	_ = w.Flush()
}
