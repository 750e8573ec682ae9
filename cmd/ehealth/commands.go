package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/ehealth-cst/ehealth-client/internal/domain"
	"github.com/ehealth-cst/ehealth-client/internal/session"
)

var errNotLoggedIn = errors.New("not logged in, run `ehealth login` first")

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.cmdLogin(ctx, args)
	case "verify-mfa":
		return a.cmdVerifyMFA(ctx, args)
	case "whoami":
		return a.cmdWhoami(ctx)
	case "status":
		return a.cmdStatus(ctx)
	case "logout":
		return a.cmdLogout(ctx)
	case "sessions":
		return a.cmdSessions(ctx, args)
	case "feeds":
		return a.cmdFeeds(ctx)
	case "toggle-availability":
		return a.cmdToggleAvailability(ctx)
	case "history":
		return a.cmdHistory(ctx, args)
	case "profile":
		return a.cmdProfile(ctx, args)
	case "programmes":
		return a.cmdProgrammes(ctx)
	case "leave":
		return a.cmdLeave(ctx, args)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

// requireSession restores the stored session and fails when there is none.
func (a *app) requireSession(ctx context.Context) (*domain.SessionUser, error) {
	snap := a.controller.Mount(ctx)
	if !snap.IsAuthenticated || snap.User == nil {
		return nil, errNotLoggedIn
	}
	return snap.User, nil
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("EHEALTH_PASSWORD"), "account password")
	code := fs.String("code", "", "MFA code, if the account asks for one")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("--email is required")
	}
	if *password == "" {
		pw, err := a.readSecret("Password: ")
		if err != nil {
			return err
		}
		*password = pw
	}

	a.controller.Mount(ctx)
	err := a.controller.Login(ctx, domain.LoginCredentials{Email: *email, Password: *password})
	if session.IsMFARequired(err) {
		if *code == "" && a.interactive() {
			c, readErr := a.readSecret("MFA code: ")
			if readErr != nil {
				return readErr
			}
			*code = c
		}
		if *code == "" {
			color.New(color.FgYellow).Fprintf(a.out, "MFA required. Run: ehealth verify-mfa --email %s --code <code>\n", *email)
			return nil
		}
		err = a.controller.VerifyMFA(ctx, *email, *code)
	}
	if err != nil {
		return err
	}
	return a.printWelcome()
}

func (a *app) cmdVerifyMFA(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("verify-mfa", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	code := fs.String("code", "", "MFA code")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *code == "" {
		return errors.New("--email and --code are required")
	}

	a.controller.Mount(ctx)
	if err := a.controller.VerifyMFA(ctx, *email, *code); err != nil {
		return err
	}
	return a.printWelcome()
}

func (a *app) printWelcome() error {
	user := a.controller.Snapshot().User
	if user == nil {
		return errNotLoggedIn
	}
	color.New(color.FgGreen).Fprintf(a.out, "Logged in as %s (%s)\n", user.Name, user.UserType)
	return nil
}

func (a *app) cmdWhoami(ctx context.Context) error {
	user, err := a.requireSession(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Name:\t%s\n", user.Name)
	fmt.Fprintf(w, "Email:\t%s\n", user.Email)
	fmt.Fprintf(w, "Type:\t%s\n", user.UserType)
	if user.StudentID != "" {
		fmt.Fprintf(w, "Student ID:\t%s\n", user.StudentID)
	}
	if user.ContactNumber != "" {
		fmt.Fprintf(w, "Contact:\t%s\n", user.ContactNumber)
	}
	if user.BloodType != "" {
		fmt.Fprintf(w, "Blood type:\t%s\n", user.BloodType)
	}
	if user.UserType == domain.UserTypeHA {
		fmt.Fprintf(w, "Available:\t%t\n", user.IsAvailable)
		fmt.Fprintf(w, "On leave:\t%t\n", user.IsOnLeave)
	}
	if user.ExpiredAt != nil {
		fmt.Fprintf(w, "Session expires:\t%s\n", user.ExpiredAt.Local().Format(time.RFC1123))
	}
	return w.Flush()
}

func presence(ok bool) string {
	if ok {
		return "present"
	}
	return "absent"
}

func (a *app) cmdStatus(ctx context.Context) error {
	pair := a.store.GetTokens(ctx)
	snap := a.controller.Mount(ctx)

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Backend:\t%s\n", a.cfg.API.BaseURL)
	fmt.Fprintf(w, "Token store:\t%s\n", a.cfg.TokenStore.Backend)
	fmt.Fprintf(w, "Access token:\t%s\n", presence(pair.HasAccess()))
	fmt.Fprintf(w, "Refresh token:\t%s\n", presence(pair.HasRefresh()))
	fmt.Fprintf(w, "State:\t%s\n", snap.State)
	if snap.User != nil {
		fmt.Fprintf(w, "User:\t%s\n", snap.User.Email)
	}
	return w.Flush()
}

func (a *app) cmdLogout(ctx context.Context) error {
	a.controller.Logout(ctx)
	color.New(color.FgGreen).Fprintln(a.out, "Logged out")
	return nil
}

func (a *app) cmdSessions(ctx context.Context, args []string) error {
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}

	sub := "list"
	if len(args) > 0 {
		sub = args[0]
	}
	switch sub {
	case "list":
		sessions, err := a.api.ListSessions(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCREATED\tEXPIRES\tCLIENT\t")
		for _, s := range sessions {
			id := s.ID
			if s.IsCurrent {
				id += " *"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", id, s.CreatedAt.Local().Format(time.DateTime), s.ExpiresAt.Local().Format(time.DateTime), s.UserAgent)
		}
		return w.Flush()
	case "delete":
		if len(args) < 2 {
			return errors.New("usage: ehealth sessions delete <id>")
		}
		if err := a.api.DeleteSession(ctx, args[1]); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(a.out, "Session %s revoked\n", args[1])
		return nil
	case "delete-all":
		if err := a.api.DeleteAllSessions(ctx); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintln(a.out, "Other sessions revoked")
		return nil
	default:
		return fmt.Errorf("unknown sessions command: %s", sub)
	}
}

func (a *app) cmdFeeds(ctx context.Context) error {
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}
	feeds, err := a.api.FetchFeeds(ctx)
	if err != nil {
		return err
	}
	if len(feeds) == 0 {
		fmt.Fprintln(a.out, "No announcements")
		return nil
	}

	title := color.New(color.FgCyan, color.Bold)
	for _, f := range feeds {
		title.Fprintln(a.out, f.Title)
		fmt.Fprintf(a.out, "  %s\n", f.CreatedAt.Local().Format(time.DateTime))
		if f.Description != "" {
			fmt.Fprintf(a.out, "  %s\n", f.Description)
		}
		for _, u := range f.ImageURLs {
			fmt.Fprintf(a.out, "  %s\n", u)
		}
		for _, u := range f.VideoURLs {
			fmt.Fprintf(a.out, "  %s\n", u)
		}
		fmt.Fprintln(a.out)
	}
	return nil
}

func (a *app) cmdToggleAvailability(ctx context.Context) error {
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}
	res, err := a.api.ToggleAvailability(ctx)
	if err != nil {
		return err
	}
	c := color.New(color.FgYellow)
	if res.IsAvailable {
		c = color.New(color.FgGreen)
	}
	c.Fprintln(a.out, res.Message)
	return nil
}

func (a *app) interactive() bool {
	return a.in == nil && term.IsTerminal(int(os.Stdin.Fd()))
}

// readSecret prompts without echo on a terminal and reads a plain line otherwise.
func (a *app) readSecret(prompt string) (string, error) {
	if a.interactive() {
		fmt.Fprint(os.Stderr, prompt)
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}

	var in io.Reader = os.Stdin
	if a.in != nil {
		in = a.in
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
