package cli

import (
	"context"
	"io"
	"os"

	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	return RunWith(ctx, argv, os.Stdin, os.Stdout)
}

// RunWith runs the command line with explicit terminal streams
func RunWith(ctx context.Context, argv []string, stdin io.Reader, stdout io.Writer) *Error {
	cmd := &cli.Command{
		Name:   "kristal",
		Usage:  "Chat client for the Kristal advisory agent",
		Reader: stdin,
		Writer: stdout,
		Commands: []*cli.Command{
			loginCommand(),
			logoutCommand(),
			chatCommand(),
			askCommand(),
			sessionCommand(),
			clientCommand(),
			historyCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
