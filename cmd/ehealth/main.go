package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/ehealth-cst/ehealth-client/internal/config"
	"github.com/ehealth-cst/ehealth-client/pkg/util/errorutil"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd, args := os.Args[1], os.Args[2:]
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, os.Stdout)
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}

	err = a.run(ctx, cmd, args)
	a.Close()
	if err != nil {
		color.Red("Error: %s\n", errorutil.UserMessage(err))
		os.Exit(1)
	}
}

func printUsage() {
	yellow := color.New(color.FgYellow)

	fmt.Println("Usage: ehealth <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  login --email <email> [--password <pw>] [--code <mfa>]   Sign in")
	fmt.Println("  verify-mfa --email <email> --code <code>               Complete a login that asked for MFA")
	fmt.Println("  whoami                                                 Show the signed-in user")
	fmt.Println("  status                                                 Show session state and stored credentials")
	fmt.Println("  logout                                                 Sign out and forget credentials")
	fmt.Println("  sessions [list]                                        List your sessions")
	fmt.Println("  sessions delete <id>                                   Revoke one session")
	fmt.Println("  sessions delete-all                                    Revoke every other session")
	fmt.Println("  feeds                                                  Show health announcements")
	fmt.Println("  toggle-availability                                    Flip availability (health assistants)")
	fmt.Println("  history [--patient <id>]                               Show treatment history")
	fmt.Println("  profile [show]                                         Show your profile")
	fmt.Println("  profile update [--name] [--gender] [--contact] [--blood-type] [--department]")
	fmt.Println("                                                         Edit your profile")
	fmt.Println("  programmes                                             List programmes (* marks yours)")
	fmt.Println("  leave [show]                                           Show your leave (health assistants)")
	fmt.Println("  leave set --from <date> --to <date> --reason <text>    Set leave, dates as YYYY-MM-DD")
	fmt.Println("  leave cancel                                           Cancel your leave")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  EHEALTH_API_BASE_URL      Backend base URL (default: " + config.DefaultBaseURL + ")")
	fmt.Println("  EHEALTH_PASSWORD          Password used by login when --password is omitted")
	fmt.Println("  TOKEN_STORE_BACKEND       keyring | redis | memory (default: keyring)")
	fmt.Println("  EHEALTH_METRICS_FILE      Write client metrics here after each command")
	fmt.Println("  LOG_LEVEL                 debug | info | warn | error")
	fmt.Println()
}
