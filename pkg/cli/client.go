package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func clientCommand() *cli.Command {
	var (
		cfg          config
		clientID     string
		kristalID    string
		clearKristal bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "id",
			Usage:       "Client ID to bind the chat to (e.g. 16325000)",
			Destination: &clientID,
		},
		&cli.StringFlag{
			Name:        "kristal-id",
			Usage:       "Optional Kristal ID",
			Destination: &kristalID,
		},
		&cli.BoolFlag{
			Name:        "clear-kristal-id",
			Usage:       "Remove the stored Kristal ID",
			Destination: &clearKristal,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "client",
		Usage: "Show or set the client identity used for chat turns",
		Flags: flags,
		Action: appAction(&cfg, true, func(ctx context.Context, a *app, c *cli.Command) error {
			if clientID != "" {
				if err := a.store.SetClientID(ctx, clientID); err != nil {
					return goerr.Wrap(err, "failed to set client id")
				}
			}
			if kristalID != "" || clearKristal {
				if err := a.store.SetKristalID(ctx, kristalID); err != nil {
					return goerr.Wrap(err, "failed to set kristal id")
				}
			}

			st := a.store.State()
			fmt.Fprintf(a.stdout, "Client ID:  %s\n", orDash(st.ClientID))
			fmt.Fprintf(a.stdout, "Kristal ID: %s\n", orDash(st.KristalID))
			fmt.Fprintf(a.stdout, "Session:    %s\n", orDash(string(st.SessionID)))
			return nil
		}),
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
