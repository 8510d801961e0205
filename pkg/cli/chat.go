package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kristal/pkg/model"
	"github.com/m-mizutani/kristal/pkg/usecase/chat"
	"github.com/m-mizutani/kristal/pkg/view"
	"github.com/urfave/cli/v3"
)

const chatHelp = `Commands:
  /client <id>      bind the chat to a client id
  /kristal [id]     set or clear the optional Kristal ID
  /session          create a new agent session
  /clear            clear the conversation
  /details          show or hide validation details
  /dismiss          dismiss the error banner
  /history          print the conversation again
  /suggest <n>      send a suggested question
  /logout           log out and quit
  /exit             quit`

func chatCommand() *cli.Command {
	var (
		cfg       config
		stream    bool
		clientID  string
		kristalID string
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "stream",
			Aliases:     []string{"s"},
			Usage:       "Use the streaming endpoint",
			Sources:     cli.EnvVars("KRISTAL_STREAM"),
			Destination: &stream,
		},
		&cli.StringFlag{
			Name:        "client-id",
			Usage:       "Client ID to bind before the first turn",
			Sources:     cli.EnvVars("KRISTAL_CLIENT_ID"),
			Destination: &clientID,
		},
		&cli.StringFlag{
			Name:        "kristal-id",
			Usage:       "Optional Kristal ID",
			Sources:     cli.EnvVars("KRISTAL_KRISTAL_ID"),
			Destination: &kristalID,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive chat with the advisory agent",
		Flags: flags,
		Action: appAction(&cfg, true, func(ctx context.Context, a *app, c *cli.Command) error {
			if clientID != "" {
				if err := a.store.SetClientID(ctx, clientID); err != nil {
					return goerr.Wrap(err, "failed to set client id")
				}
			}
			if kristalID != "" {
				if err := a.store.SetKristalID(ctx, kristalID); err != nil {
					return goerr.Wrap(err, "failed to set kristal id")
				}
			}

			rl, err := newReadline(a.stdin, a.stdout, "", filepath.Join(cfg.dataDir, "history"))
			if err != nil {
				return err
			}
			defer rl.Close()

			loop := &chatLoop{
				app:      a,
				renderer: newRenderer(a.stdout, false),
				stream:   stream,
				out:      a.stdout,
			}
			return loop.run(ctx, rl)
		}),
	}
}

// errQuit ends the loop without reporting a failure
var errQuit = errors.New("quit")

type chatLoop struct {
	app      *app
	renderer *view.Renderer
	stream   bool
	out      io.Writer
}

func promptFor(clientID string) string {
	if clientID == "" {
		return "(no client) > "
	}
	return fmt.Sprintf("[%s] > ", clientID)
}

func (l *chatLoop) run(ctx context.Context, rl *readline.Instance) error {
	l.redraw()

	for {
		rl.SetPrompt(promptFor(l.app.store.State().ClientID))
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return goerr.Wrap(err, "failed to read input")
		}

		if strings.HasPrefix(strings.TrimSpace(line), "/") {
			err = l.command(ctx, strings.TrimSpace(line))
		} else {
			err = l.submit(ctx, line)
		}
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (l *chatLoop) redraw() {
	st := l.app.store.State()
	email := ""
	if u := l.app.gate.State().User; u != nil {
		email = u.Email
	}
	l.renderer.Header(email, st.ClientID, st.KristalID, st.SessionID)
	l.renderer.Messages(st.Messages)
	l.renderer.ErrorBanner(st.Error)
}

func (l *chatLoop) submit(ctx context.Context, input string) error {
	if strings.TrimSpace(input) == "" {
		return nil
	}

	stop := startLoading(l.out, "Thinking...")
	defer stop()

	var (
		reply *model.ChatMessage
		err   error
	)
	if l.stream {
		streamed := false
		reply, err = l.app.ctrl.SubmitStream(ctx, input, func(ev model.StreamEvent) {
			stop()
			if delta := ev.Delta(); delta != "" {
				streamed = true
				fmt.Fprint(l.out, delta)
			}
		})
		stop()
		if streamed {
			fmt.Fprintln(l.out)
		}
		if reply != nil && streamed {
			l.renderer.Sources(reply.Sources)
			l.renderer.Validation(reply.Validation)
			l.renderer.Chart(reply.Chart)
			fmt.Fprintln(l.out)
			reply = nil
		}
	} else {
		reply, err = l.app.ctrl.Submit(ctx, input)
		stop()
	}

	if errors.Is(err, chat.ErrBusy) {
		fmt.Fprintln(l.out, "A question is already being answered, please wait.")
		return nil
	}
	if err != nil {
		return goerr.Wrap(err, "failed to submit message")
	}

	if reply != nil {
		l.renderer.Message(*reply)
	}
	l.renderer.ErrorBanner(l.app.store.State().Error)
	return nil
}

func (l *chatLoop) command(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]
	store := l.app.store

	switch name {
	case "/exit", "/quit":
		return errQuit

	case "/help":
		fmt.Fprintln(l.out, chatHelp)

	case "/client":
		if len(args) == 0 {
			fmt.Fprintf(l.out, "Client ID: %s\n", orDash(store.State().ClientID))
			return nil
		}
		if err := store.SetClientID(ctx, args[0]); err != nil {
			return goerr.Wrap(err, "failed to set client id")
		}
		fmt.Fprintf(l.out, "Client ID set to %s\n", args[0])

	case "/kristal":
		id := ""
		if len(args) > 0 {
			id = args[0]
		}
		if err := store.SetKristalID(ctx, id); err != nil {
			return goerr.Wrap(err, "failed to set kristal id")
		}
		fmt.Fprintf(l.out, "Kristal ID: %s\n", orDash(id))

	case "/session":
		stop := startLoading(l.out, "Creating session...")
		id, err := l.app.ctrl.CreateSession(ctx)
		stop()
		if err != nil {
			return goerr.Wrap(err, "failed to save session")
		}
		if id != "" {
			fmt.Fprintf(l.out, "Session created: %s\n", id)
		}
		l.renderer.ErrorBanner(store.State().Error)

	case "/clear":
		if err := l.app.ctrl.NewChat(ctx); err != nil {
			return goerr.Wrap(err, "failed to clear chat")
		}
		fmt.Fprintln(l.out, "Chat cleared")
		l.renderer.Welcome()

	case "/details":
		l.renderer.ToggleDetails()
		l.renderer.Messages(store.State().Messages)

	case "/dismiss":
		if err := l.app.ctrl.DismissError(ctx); err != nil {
			return goerr.Wrap(err, "failed to dismiss error")
		}

	case "/history":
		l.redraw()

	case "/suggest":
		n := 0
		if len(args) > 0 {
			n, _ = strconv.Atoi(args[0])
		}
		if n < 1 || n > len(view.SuggestedQuestions) {
			fmt.Fprintf(l.out, "Pick a suggestion between 1 and %d\n", len(view.SuggestedQuestions))
			return nil
		}
		q := view.SuggestedQuestions[n-1]
		fmt.Fprintln(l.out, q)
		return l.submit(ctx, q)

	case "/logout":
		if err := l.app.ctrl.Logout(ctx); err != nil {
			return goerr.Wrap(err, "failed to log out")
		}
		fmt.Fprintln(l.out, "Logged out")
		return errQuit

	default:
		fmt.Fprintf(l.out, "Unknown command %s, type /help\n", name)
	}

	return nil
}
