package transport

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
)

// SSHSession runs probes on per-call exec channels and command sequences
// on one interactive shell per Execute.
type SSHSession struct {
	host   string
	client *ssh.Client
}

// DialSSH connects to cfg.Host with password authentication.
func DialSSH(ctx context.Context, cfg Config) (*SSHSession, error) {
	cfg = cfg.withDefaults()
	config := &ssh.ClientConfig{
		User: cfg.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(cfg.Password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = cfg.Password
				}
				return answers, nil
			}),
		},
		// Network devices rarely publish host keys out of band.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         cfg.Timeout,
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port))
	d := net.Dialer{Timeout: cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, wrap(cfg.Host, "dial", err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, wrap(cfg.Host, "handshake", err)
	}
	return &SSHSession{host: cfg.Host, client: ssh.NewClient(c, chans, reqs)}, nil
}

// Read runs probe on a fresh exec channel.
func (s *SSHSession) Read(ctx context.Context, probe string) (string, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return "", wrap(s.host, "session", err)
	}
	defer session.Close()

	var out syncBuffer
	session.Stdout = &out
	session.Stderr = &out
	if err := run(ctx, session, func() error { return session.Run(probe) }); err != nil {
		return out.String(), wrap(s.host, fmt.Sprintf("exec '%s'", probe), err)
	}
	return out.String(), nil
}

// Execute feeds the commands to an interactive shell and waits for the
// shell to exit.
func (s *SSHSession) Execute(ctx context.Context, commands []string) (string, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return "", wrap(s.host, "session", err)
	}
	defer session.Close()

	modes := ssh.TerminalModes{ssh.ECHO: 0, ssh.TTY_OP_ISPEED: 14400, ssh.TTY_OP_OSPEED: 14400}
	if err := session.RequestPty("vt100", 0, 512, modes); err != nil {
		return "", wrap(s.host, "pty", err)
	}
	var out syncBuffer
	session.Stdout = &out
	session.Stderr = &out
	session.Stdin = strings.NewReader(strings.Join(commands, "\n") + "\nexit\n")

	err = run(ctx, session, func() error {
		if err := session.Shell(); err != nil {
			return err
		}
		return session.Wait()
	})
	if err != nil {
		if _, ok := err.(*ssh.ExitMissingError); !ok {
			return out.String(), wrap(s.host, "shell", err)
		}
	}
	return out.String(), nil
}

// Close closes the SSH connection.
func (s *SSHSession) Close() error {
	return s.client.Close()
}

// run executes fn and closes the session when ctx ends first.
func run(ctx context.Context, session *ssh.Session, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		session.Close()
		<-done
		return ctx.Err()
	}
}

// syncBuffer is a bytes.Buffer shared by the stdout and stderr copiers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
