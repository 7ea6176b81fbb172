package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"BookPublisher/internal/app"
	"BookPublisher/internal/config"
	"BookPublisher/internal/logging"
)

type commandContext struct {
	configFlag string

	loadConfig func(path string) config.Config
	appOptions app.Options

	configOnce sync.Once
	config     config.Config
}

func newCommandContext() *commandContext {
	return &commandContext{loadConfig: config.LoadFrom}
}

func (c *commandContext) ensureConfig() config.Config {
	c.configOnce.Do(func() {
		c.config = c.loadConfig(strings.TrimSpace(c.configFlag))
	})
	return c.config
}

func (c *commandContext) logger(cmd *cobra.Command) *slog.Logger {
	return logging.NewWithWriter(cmd.ErrOrStderr(), c.ensureConfig().Logging.Level)
}

// withApp builds the application for one command and closes it afterwards.
// Pipeline progress lines go to progress.
func (c *commandContext) withApp(cmd *cobra.Command, progress io.Writer, fn func(*app.Application) error) (err error) {
	opts := c.appOptions
	opts.Progress = progress

	application, err := app.New(cmd.Context(), c.ensureConfig(), c.logger(cmd), opts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := application.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(application)
}

// reviewStream echoes streamed review fragments to a terminal and keeps the
// following progress line on a line of its own.
type reviewStream struct {
	w    io.Writer
	open bool
}

func newReviewStream(w io.Writer) *reviewStream {
	return &reviewStream{w: w}
}

// sink returns the delta callback, or nil when w is not a terminal.
func (s *reviewStream) sink() func(string) {
	if !isTerminal(s.w) {
		return nil
	}
	return func(delta string) {
		if delta == "" {
			return
		}
		s.open = !strings.HasSuffix(delta, "\n")
		fmt.Fprint(s.w, delta)
	}
}

func (s *reviewStream) Write(p []byte) (int, error) {
	if s.open {
		s.open = false
		if _, err := fmt.Fprintln(s.w); err != nil {
			return 0, err
		}
	}
	return s.w.Write(p)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
