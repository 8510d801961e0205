package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kristal/pkg/adapter"
	"github.com/m-mizutani/kristal/pkg/repository"
	"github.com/m-mizutani/kristal/pkg/usecase/auth"
	"github.com/m-mizutani/kristal/pkg/usecase/chat"
	"github.com/m-mizutani/kristal/pkg/view"
)

func newTestLoop(t *testing.T) (*chatLoop, *bytes.Buffer) {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewMemory()

	gate, err := auth.Load(ctx, repo)
	gt.NoError(t, err)
	store, err := chat.Load(ctx, repo)
	gt.NoError(t, err)

	var buf bytes.Buffer
	a := &app{
		gate:  gate,
		store: store,
		ctrl: chat.NewController(chat.NewInput{
			Store: store,
			Agent: adapter.NewAgent("http://127.0.0.1:1"),
			Gate:  gate,
		}),
		stdout: &buf,
	}
	return &chatLoop{app: a, renderer: view.New(&buf), out: &buf}, &buf
}

func TestChatLoopBusyNotice(t *testing.T) {
	ctx := context.Background()
	l, buf := newTestLoop(t)
	gt.NoError(t, l.app.store.SetClientID(ctx, "c-1"))
	gt.NoError(t, l.app.store.SetLoading(ctx, true))

	gt.NoError(t, l.submit(ctx, "second question"))
	gt.S(t, buf.String()).Contains("A question is already being answered, please wait.")
	gt.A(t, l.app.store.State().Messages).Length(0)
}

func TestChatLoopCommands(t *testing.T) {
	ctx := context.Background()
	l, buf := newTestLoop(t)

	gt.NoError(t, l.command(ctx, "/help"))
	gt.S(t, buf.String()).Contains("/suggest <n>")

	buf.Reset()
	gt.NoError(t, l.command(ctx, "/suggest 9"))
	gt.S(t, buf.String()).Contains("Pick a suggestion between 1 and 3")

	buf.Reset()
	gt.NoError(t, l.command(ctx, "/session"))
	gt.Equal(t, l.app.store.State().Error, chat.MsgSessionClientIDRequired)
	gt.S(t, buf.String()).Contains(chat.MsgSessionClientIDRequired)

	gt.NoError(t, l.command(ctx, "/dismiss"))
	gt.Equal(t, l.app.store.State().Error, "")

	gt.Equal(t, l.command(ctx, "/exit"), errQuit)
}

func TestPromptFor(t *testing.T) {
	gt.Equal(t, promptFor(""), "(no client) > ")
	gt.Equal(t, promptFor("c-1"), "[c-1] > ")
}
