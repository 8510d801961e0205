package cli

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kristal/pkg/model"
	"github.com/m-mizutani/kristal/pkg/view"
	"github.com/urfave/cli/v3"
)

func askCommand() *cli.Command {
	var (
		cfg     config
		stream  bool
		details bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "stream",
			Aliases:     []string{"s"},
			Usage:       "Use the streaming endpoint",
			Sources:     cli.EnvVars("KRISTAL_STREAM"),
			Destination: &stream,
		},
		&cli.BoolFlag{
			Name:        "details",
			Usage:       "Show validation details",
			Destination: &details,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:      "ask",
		Usage:     "Send one question and print the reply",
		ArgsUsage: "<message>",
		Flags:     flags,
		Action: appAction(&cfg, true, func(ctx context.Context, a *app, c *cli.Command) error {
			message := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(message) == "" {
				return goerr.New("message is required")
			}

			r := newRenderer(a.stdout, details)
			stop := startLoading(a.stdout, "Thinking...")
			defer stop()

			var (
				reply *model.ChatMessage
				err   error
			)
			if stream {
				reply, err = a.ctrl.SubmitStream(ctx, message, func(model.StreamEvent) { stop() })
			} else {
				reply, err = a.ctrl.Submit(ctx, message)
			}
			stop()
			if err != nil {
				return goerr.Wrap(err, "failed to submit message")
			}

			if msg := a.store.State().Error; msg != "" {
				return goerr.New(msg)
			}
			if reply != nil {
				r.Message(*reply)
			}
			return nil
		}),
	}
}

// newRenderer enables markdown only when w is a terminal so that piped output
// stays plain.
func newRenderer(w io.Writer, details bool) *view.Renderer {
	opts := []view.Option{view.WithDetails(details)}
	if f, ok := w.(*os.File); ok && readline.IsTerminal(int(f.Fd())) {
		width := 80
		if cols := readline.GetScreenWidth(); cols > 0 {
			width = min(cols, 120)
		}
		opts = append(opts, view.WithMarkdown(width))
	}
	return view.New(w, opts...)
}
