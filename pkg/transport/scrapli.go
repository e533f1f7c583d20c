package transport

import (
	"context"
	"strings"

	"github.com/scrapli/scrapligo/driver/network"
	"github.com/scrapli/scrapligo/driver/options"
	"github.com/scrapli/scrapligo/platform"
	"github.com/scrapli/scrapligo/response"
)

// ScrapliSession drives a device through a scrapligo network driver. The
// driver matches the platform's prompts, so configuration-mode lines in a
// command sequence are sent as plain inputs.
type ScrapliSession struct {
	host   string
	driver *network.Driver
}

// DialScrapli opens a scrapligo session for cfg.Platform.
func DialScrapli(ctx context.Context, cfg Config) (*ScrapliSession, error) {
	cfg = cfg.withDefaults()
	name := cfg.Platform
	if name == "" {
		name = "cisco_iosxe"
	}
	p, err := platform.NewPlatform(
		name,
		cfg.Host,
		options.WithAuthNoStrictKey(),
		options.WithAuthUsername(cfg.Username),
		options.WithAuthPassword(cfg.Password),
		options.WithPort(cfg.Port),
		options.WithTimeoutOps(cfg.Timeout),
	)
	if err != nil {
		return nil, wrap(cfg.Host, "platform "+name, err)
	}
	d, err := p.GetNetworkDriver()
	if err != nil {
		return nil, wrap(cfg.Host, "network driver", err)
	}

	if err := await(ctx, d.Open); err != nil {
		return nil, wrap(cfg.Host, "open", err)
	}
	return &ScrapliSession{host: cfg.Host, driver: d}, nil
}

// Read sends probe at the privilege-exec prompt.
func (s *ScrapliSession) Read(ctx context.Context, probe string) (string, error) {
	var r *response.Response
	err := await(ctx, func() error {
		var err error
		r, err = s.driver.SendCommand(probe)
		return err
	})
	if err != nil {
		return "", wrap(s.host, "send '"+probe+"'", err)
	}
	if r.Failed != nil {
		return r.Result, wrap(s.host, "send '"+probe+"'", r.Failed)
	}
	return r.Result, nil
}

// Execute sends the commands in order and joins their outputs.
func (s *ScrapliSession) Execute(ctx context.Context, commands []string) (string, error) {
	var mr *response.MultiResponse
	err := await(ctx, func() error {
		var err error
		mr, err = s.driver.SendCommands(commands)
		return err
	})
	if err != nil {
		return "", wrap(s.host, "send commands", err)
	}
	results := make([]string, 0, len(mr.Responses))
	for _, r := range mr.Responses {
		results = append(results, r.Result)
	}
	out := strings.Join(results, "\n")
	if mr.Failed != nil {
		return out, wrap(s.host, "send commands", mr.Failed)
	}
	return out, nil
}

// Close closes the driver.
func (s *ScrapliSession) Close() error {
	return s.driver.Close()
}

// await runs fn and gives up when ctx ends first. scrapligo operations
// cannot be interrupted; the operation timeout bounds the abandoned call.
func await(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
