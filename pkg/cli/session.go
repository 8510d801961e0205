package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func sessionCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "session",
		Usage: "Manage the agent session",
		Commands: []*cli.Command{
			{
				Name:  "new",
				Usage: "Create a new session for the stored client id",
				Flags: globalFlags(&cfg),
				Action: appAction(&cfg, true, func(ctx context.Context, a *app, c *cli.Command) error {
					id, err := a.ctrl.CreateSession(ctx)
					if err != nil {
						return goerr.Wrap(err, "failed to save session")
					}
					if msg := a.store.State().Error; msg != "" {
						return goerr.New(msg)
					}
					fmt.Fprintf(a.stdout, "Session created: %s\n", id)
					return nil
				}),
			},
			{
				Name:  "clear",
				Usage: "Clear the conversation and forget the session",
				Flags: globalFlags(&cfg),
				Action: appAction(&cfg, true, func(ctx context.Context, a *app, c *cli.Command) error {
					if err := a.ctrl.NewChat(ctx); err != nil {
						return goerr.Wrap(err, "failed to clear chat")
					}
					fmt.Fprintln(a.stdout, "Chat cleared")
					return nil
				}),
			},
		},
	}
}
