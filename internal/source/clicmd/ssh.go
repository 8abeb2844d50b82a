package clicmd

import (
	"context"
	"net"
	"strconv"

	"golang.org/x/crypto/ssh"

	"codeberg.org/mutker/nexmon/internal/config"
	"codeberg.org/mutker/nexmon/internal/errors"
)

const sshPort = 22

// runner executes one command on the switch and returns its raw output.
// Abstracted so the parsers can be driven from canned output in tests.
type runner interface {
	Run(ctx context.Context, cmd string) ([]byte, error)
	Close() error
}

type sshRunner struct {
	client *ssh.Client
}

// dial opens one SSH connection per poll. Each command runs in its own
// session since the switch closes a session after one exec.
func dial(ctx context.Context, sw config.Switch) (runner, error) {
	errFactory := errors.New()

	cfg := &ssh.ClientConfig{
		User:    sw.Username,
		Auth:    []ssh.AuthMethod{ssh.Password(sw.Password)},
		Timeout: sw.Timeout,
		//nolint:gosec // G106: switch host keys are not managed centrally
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	addr := net.JoinHostPort(sw.Addr, strconv.Itoa(sshPort))
	d := net.Dialer{Timeout: sw.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errFactory.Wrap(ErrDialFailed, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, errFactory.Wrap(ErrDialFailed, err)
	}

	return &sshRunner{client: ssh.NewClient(sshConn, chans, reqs)}, nil
}

func (r *sshRunner) Run(ctx context.Context, cmd string) ([]byte, error) {
	errFactory := errors.New()

	session, err := r.client.NewSession()
	if err != nil {
		return nil, errFactory.Wrap(ErrCmdFailed, err)
	}
	defer session.Close()

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := session.CombinedOutput(cmd)
		done <- result{out, err}
	}()

	select {
	case <-ctx.Done():
		return nil, errFactory.Wrap(errors.ErrTimeout, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return nil, errFactory.Wrap(ErrCmdFailed, res.err)
		}
		return res.out, nil
	}
}

func (r *sshRunner) Close() error {
	return r.client.Close()
}
