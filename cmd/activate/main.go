// Command activate lists accounts and activates pending registrations.
//
//	activate                    list every account
//	activate <username> [role]  activate one account as user (default) or admin
//	activate --all              activate every pending account as user
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/sirupsen/logrus"

	"cms-backend/internal/auth"
	"cms-backend/internal/config"
	"cms-backend/internal/domain"
	"cms-backend/internal/service"
	"cms-backend/internal/store"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	repos, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer repos.Close()
	if err := repos.Init(ctx); err != nil {
		logger.Fatalf("init store: %v", err)
	}

	// Tokens are never issued here, so the secret may be unset.
	users, err := service.NewUserService(repos.Users, auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, nil))
	if err != nil {
		logger.Fatalf("setup user service: %v", err)
	}

	if err := run(ctx, os.Args[1:], users, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage: activate [--all | <username> [user|admin]]")

func run(ctx context.Context, args []string, users service.UserService, out io.Writer) error {
	fs := flag.NewFlagSet("activate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	all := fs.Bool("all", false, "activate every pending account")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	switch {
	case *all:
		if fs.NArg() != 0 {
			return errUsage
		}
		return activateAll(ctx, users, out)
	case fs.NArg() == 0:
		return list(ctx, users, out)
	case fs.NArg() <= 2:
		role := domain.RoleUser
		if fs.NArg() == 2 {
			role = domain.Role(fs.Arg(1))
		}
		user, err := users.Activate(ctx, fs.Arg(0), role)
		if err != nil {
			return err
		}
		granted, _ := user.Activation.Role()
		fmt.Fprintf(out, "Activated: %s (%s)\n", user.Username, granted)
		return nil
	default:
		return errUsage
	}
}

func list(ctx context.Context, users service.UserService, out io.Writer) error {
	all, err := users.List(ctx)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Fprintln(out, "No users found. Register one first.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tROLE\tSTATUS")
	for _, u := range all {
		role, active := u.Activation.Role()
		status := "active"
		if !active {
			role, status = "-", "pending"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", u.Username, role, status)
	}
	return tw.Flush()
}

func activateAll(ctx context.Context, users service.UserService, out io.Writer) error {
	activated, err := users.ActivatePending(ctx)
	for _, u := range activated {
		fmt.Fprintf(out, "Activated: %s\n", u.Username)
	}
	if err != nil {
		return err
	}
	if len(activated) == 0 {
		fmt.Fprintln(out, "All users already activated.")
	}
	return nil
}
