package cli

import (
	"context"

	"github.com/m-mizutani/kristal/pkg/view"
	"github.com/urfave/cli/v3"
)

func historyCommand() *cli.Command {
	var (
		cfg     config
		details bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "details",
			Usage:       "Show validation details",
			Destination: &details,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "history",
		Usage: "Print the stored conversation",
		Flags: flags,
		Action: appAction(&cfg, true, func(ctx context.Context, a *app, c *cli.Command) error {
			st := a.store.State()
			r := view.New(a.stdout, view.WithDetails(details))
			r.Messages(st.Messages)
			return nil
		}),
	}
}
