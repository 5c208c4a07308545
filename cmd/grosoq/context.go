package main

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/eito54/grosoq/internal/client"
	"github.com/eito54/grosoq/pkg/logger"
)

type globalOptions struct {
	server  string
	timeout time.Duration
	json    bool
	verbose bool
}

type commandContext struct {
	opts *globalOptions

	clientOnce sync.Once
	client     *client.Client
	clientErr  error
}

func newCommandContext(opts *globalOptions) *commandContext {
	return &commandContext{opts: opts}
}

func (c *commandContext) apiClient() (*client.Client, error) {
	c.clientOnce.Do(func() {
		log := logger.Nop()
		if c.opts.verbose {
			if err := logger.InitWithOutput(os.Stderr, "text"); err == nil {
				_ = logger.SetLevelString("debug")
				log = logger.Named("cli")
			}
		}
		c.client, c.clientErr = client.New(client.Config{
			BaseURL:    c.opts.server,
			Timeout:    c.opts.timeout,
			MaxRetries: 2,
		}, client.WithLogger(log))
	})
	return c.client, c.clientErr
}

func (c *commandContext) jsonOutput() bool {
	return c.opts.json
}

func (c *commandContext) colorize(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return shouldColorize(w)
}
