package cli

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
)

// newReadline creates a line editor over the command streams
func newReadline(stdin io.Reader, stdout io.Writer, prompt, historyFile string) (*readline.Instance, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           io.NopCloser(stdin),
		Stdout:          stdout,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize line editor")
	}
	return rl, nil
}

// startLoading shows a spinner while the agent is working. It is a no-op
// unless w is a terminal file; the returned function stops it and may be
// called more than once.
func startLoading(w io.Writer, suffix string) func() {
	f, ok := w.(*os.File)
	if !ok {
		return func() {}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
		spinner.WithWriter(f),
		spinner.WithSuffix(" "+suffix),
	)
	s.Start()

	var once sync.Once
	return func() { once.Do(s.Stop) }
}
