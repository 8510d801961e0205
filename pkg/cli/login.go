package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

var ErrInvalidCredentials = goerr.New("invalid email or password")

func loginCommand() *cli.Command {
	var (
		cfg      config
		email    string
		password string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "email",
			Aliases:     []string{"e"},
			Usage:       "Login email (prompted when omitted)",
			Sources:     cli.EnvVars("KRISTAL_EMAIL"),
			Destination: &email,
		},
		&cli.StringFlag{
			Name:        "password",
			Usage:       "Login password (prompted when omitted)",
			Sources:     cli.EnvVars("KRISTAL_PASSWORD"),
			Destination: &password,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "login",
		Usage: "Log in to the chat client",
		Flags: flags,
		Action: appAction(&cfg, false, func(ctx context.Context, a *app, c *cli.Command) error {
			if email == "" || password == "" {
				rl, err := newReadline(a.stdin, a.stdout, "Email: ", "")
				if err != nil {
					return err
				}
				defer rl.Close()

				if email == "" {
					line, err := rl.Readline()
					if err != nil {
						return goerr.Wrap(err, "failed to read email")
					}
					email = strings.TrimSpace(line)
				}
				if password == "" {
					secret, err := rl.ReadPassword("Password: ")
					if err != nil {
						return goerr.Wrap(err, "failed to read password")
					}
					password = string(secret)
				}
			}

			ok, err := a.gate.Login(ctx, email, password)
			if err != nil {
				return goerr.Wrap(err, "failed to log in")
			}
			if !ok {
				return ErrInvalidCredentials
			}

			fmt.Fprintf(a.stdout, "Logged in as %s\n", email)
			return nil
		}),
	}
}

func logoutCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "logout",
		Usage: "Log out and clear the stored conversation",
		Flags: globalFlags(&cfg),
		Action: appAction(&cfg, false, func(ctx context.Context, a *app, c *cli.Command) error {
			if err := a.ctrl.Logout(ctx); err != nil {
				return goerr.Wrap(err, "failed to log out")
			}
			fmt.Fprintln(a.stdout, "Logged out")
			return nil
		}),
	}
}
