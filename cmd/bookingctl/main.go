package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/tourbook/cmd/bookingctl/internal/commands"
)

const (
	appName    = "bookingctl"
	appVersion = "0.1.0"

	defaultServiceURL = "http://localhost:8086"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	switch command {
	case "version":
		fmt.Printf("%s version %s\n", appName, appVersion)
		return
	case "help", "-h", "--help":
		printUsage()
		return
	}

	args, flags := splitArgs(os.Args[2:])

	config, err := aqm.LoadConfig("BOOKINGCTL", flags)
	if err != nil {
		log.Fatalf("Cannot load config: %v", err)
	}

	logLevel, _ := config.GetString("log.level")
	if logLevel == "" {
		logLevel = "info"
	}
	logger := aqm.NewLogger(logLevel)

	serviceURL, _ := config.GetString("services.bookingsync.url")
	if serviceURL == "" {
		serviceURL = defaultServiceURL
	}

	actor := commands.Actor{}
	actor.ID, _ = config.GetString("actor.id")
	actor.Role, _ = config.GetString("actor.role")
	actor.Name, _ = config.GetString("actor.name")
	actor.Email, _ = config.GetString("actor.email")

	ctx := context.Background()
	client := commands.NewClient(aqm.NewServiceClient(serviceURL), os.Stdout, logger)

	if err := client.SignIn(ctx, actor); err != nil {
		log.Fatalf("Cannot sign in: %v", err)
	}

	if err := run(ctx, client, command, args); err != nil {
		log.Fatalf("%s failed: %v", command, err)
	}
}

func run(ctx context.Context, client *commands.Client, command string, args []string) error {
	switch command {
	case "list":
		return client.List(ctx, filterArgs(args))
	case "mine":
		return client.Mine(ctx)
	case "counts":
		return client.Counts(ctx, arg(args, 0))
	}

	id := arg(args, 0)
	if id == "" {
		return fmt.Errorf("booking id is required")
	}

	switch command {
	case "show":
		return client.Show(ctx, id)
	case "confirm":
		return client.SetStatus(ctx, id, "confirmed")
	case "cancel":
		return client.SetStatus(ctx, id, "cancelled")
	case "reopen":
		return client.SetStatus(ctx, id, "pending")
	case "request-cancel":
		return client.RequestCancellation(ctx, id)
	case "archive":
		return client.Archive(ctx, id, strings.Join(args[1:], " "))
	case "restore":
		return client.Restore(ctx, id)
	case "notes":
		return client.SaveNotes(ctx, id, strings.Join(args[1:], " "))
	case "resend":
		return client.ResendConfirmation(ctx, id)
	case "delete":
		return client.Delete(ctx, id)
	case "destroy":
		return client.Destroy(ctx, id, hasFlag(args, "--yes"))
	}

	printUsage()
	return fmt.Errorf("unknown command: %s", command)
}

// splitArgs separates positional arguments from config flags (--key=value).
func splitArgs(in []string) (args, flags []string) {
	for _, a := range in {
		if strings.HasPrefix(a, "--") && strings.Contains(a, "=") {
			flags = append(flags, a)
			continue
		}
		args = append(args, a)
	}
	return args, flags
}

// filterArgs reads key=value pairs into list query parameters.
func filterArgs(args []string) url.Values {
	v := url.Values{}
	for _, a := range args {
		key, value, ok := strings.Cut(a, "=")
		if ok && key != "" {
			v.Set(key, value)
		}
	}
	return v
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func printUsage() {
	fmt.Printf(`%s - tour booking operations

Usage:
  %s <command> [args] [--actor.id=ID --actor.role=admin|user]

Commands:
  list [key=value...]    Reload all bookings (admin). Keys: search, status, date_from,
                         date_to, min_guests, min_amount, max_amount, scope, sort, order
  mine                   Reload the signed-in client's bookings
  show ID                Fetch one booking
  confirm ID             Confirm a pending booking (admin)
  cancel ID              Cancel a booking (admin)
  reopen ID              Move a booking back to pending (admin)
  request-cancel ID      Ask for cancellation of a pending booking (client)
  archive ID [REASON]    Archive a booking (admin)
  restore ID             Restore an archived booking (admin)
  notes ID TEXT          Save admin notes (admin)
  resend ID              Resend the confirmation email (admin)
  delete ID              Delete an unconfirmed booking (client)
  destroy ID --yes       Permanently delete a booking (admin)
  counts [SCOPE]         Bookings per status
  version                Show version information
  help                   Show this help message

Configuration is read from BOOKINGCTL_* environment variables or --key=value flags.
`, appName, appName)
}
