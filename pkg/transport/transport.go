// Package transport carries plain CLI text to and from one device. The
// engine never sees transport framing: probes go in as one command line
// and come back as raw output, command sequences go in as ordered lines.
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/newtron-network/newtcli/pkg/util"
)

// Session is one CLI session to one device. Implementations need not be
// safe for concurrent use; a transaction owns its session.
type Session interface {
	// Read runs one probe command and returns its output.
	Read(ctx context.Context, probe string) (string, error)
	// Execute sends an ordered command sequence as one unit and returns
	// the combined output.
	Execute(ctx context.Context, commands []string) (string, error)
	Close() error
}

// Driver selects the session implementation.
type Driver string

const (
	// DriverSSH uses a plain SSH exec/shell channel.
	DriverSSH Driver = "ssh"
	// DriverScrapli uses a scrapligo network driver, which tracks prompts
	// and privilege levels for the platform.
	DriverScrapli Driver = "scrapli"
)

// Config describes how to reach a device.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Driver   Driver
	// Platform is the scrapligo platform name (cisco_iosxe, huawei_vrp).
	Platform string
	// Timeout bounds connection setup and each operation.
	Timeout time.Duration
}

// DefaultTimeout applies when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = 22
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Driver == "" {
		c.Driver = DriverSSH
	}
	return c
}

// Dial opens a session with the configured driver.
func Dial(ctx context.Context, cfg Config) (Session, error) {
	cfg = cfg.withDefaults()
	if cfg.Host == "" {
		return nil, util.NewValidationError("transport: host is required")
	}
	util.WithDevice(cfg.Host).Debugf("Dialing %s:%d with %s driver", cfg.Host, cfg.Port, cfg.Driver)

	switch cfg.Driver {
	case DriverSSH:
		return DialSSH(ctx, cfg)
	case DriverScrapli:
		return DialScrapli(ctx, cfg)
	}
	return nil, util.NewValidationError(fmt.Sprintf("transport: unknown driver %q", cfg.Driver))
}

// wrap marks err as a transport failure, keeping the original error in
// the chain.
func wrap(host, op string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", util.ErrTransport, host, op, err)
}
