package cli

import (
	"context"
	"io"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kristal/pkg/usecase/auth"
	"github.com/m-mizutani/kristal/pkg/usecase/chat"
	"github.com/urfave/cli/v3"
)

var ErrNotAuthenticated = goerr.New("not logged in, run `kristal login` first")

// app bundles the stores and controller shared by the commands
type app struct {
	gate  *auth.Gate
	store *chat.Store
	ctrl  *chat.Controller

	stdin  io.Reader
	stdout io.Writer
}

// appAction wraps a command action with configuration, logging and store
// hydration. When protected is set the action only runs for a logged-in user.
func appAction(cfg *config, protected bool, fn func(ctx context.Context, a *app, c *cli.Command) error) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		ctx, cleanup, err := cfg.setup(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		repo, closeRepo, err := cfg.newRepository(ctx)
		if err != nil {
			return err
		}
		defer closeRepo()

		gate, err := auth.Load(ctx, repo)
		if err != nil {
			return goerr.Wrap(err, "failed to load auth state")
		}
		if protected && !gate.Authenticated() {
			return ErrNotAuthenticated
		}

		store, err := chat.Load(ctx, repo)
		if err != nil {
			return goerr.Wrap(err, "failed to load chat state")
		}

		a := &app{
			gate:  gate,
			store: store,
			ctrl: chat.NewController(chat.NewInput{
				Store: store,
				Agent: cfg.newAgent(),
				Gate:  gate,
			}),
			stdin:  c.Root().Reader,
			stdout: c.Root().Writer,
		}
		return fn(ctx, a, c)
	}
}
