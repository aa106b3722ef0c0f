package remote

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	sshagent "github.com/xanzy/ssh-agent"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/sidkik/blogctl/pkg/errors"
)

// KnownHostsPath is where host keys are verified against.
const KnownHostsPath = "~/.ssh/known_hosts"

const dialTimeout = 15 * time.Second

// Client runs shell commands on the blog host.
type Client interface {
	// Run runs `command` with the login shell of the remote user, and
	// returns its stdout. A non-zero exit status is returned as an
	// errors.RemoteCommandError.
	Run(ctx context.Context, command string) ([]byte, error)

	// Stream runs `command`, and copies its output to `stdout` and `stderr`
	// as it's produced.
	Stream(ctx context.Context, command string, stdout, stderr io.Writer) error

	// Shell runs `command` attached to the local terminal, in a pty of
	// the given size.
	Shell(ctx context.Context, command string, width, height int) error

	Close() error
}

// Mocked out for unit testing.
var (
	fs             = afero.NewOsFs()
	newAgent       = sshagent.New
	agentAvailable = sshagent.Available
	knownHostsFile = KnownHostsPath
)

type client struct {
	ssh  *ssh.Client
	host string
}

// Dial connects to the host described by `dest`.
func Dial(ctx context.Context, dest string) (Client, error) {
	addr, err := ParseAddress(dest)
	if err != nil {
		return nil, errors.WithContext(err, "parse address")
	}

	r, err := addr.resolve()
	if err != nil {
		return nil, errors.WithContext(err, "resolve address")
	}

	hostKeyCallback, err := loadKnownHosts()
	if err != nil {
		return nil, err
	}

	auth, err := authMethods(r.identityFiles)
	if err != nil {
		return nil, errors.WithContext(err, "load credentials")
	}

	// The handshake error is flattened into a string, so the key error has
	// to be caught on its way out of the callback.
	var keyErr *knownhosts.KeyError
	cfg := &ssh.ClientConfig{
		User: r.user,
		Auth: auth,
		HostKeyCallback: func(hostname string, remoteAddr net.Addr, key ssh.PublicKey) error {
			err := hostKeyCallback(hostname, remoteAddr, key)
			if ke, ok := err.(*knownhosts.KeyError); ok {
				keyErr = ke
			}
			return err
		},
		Timeout: dialTimeout,
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", r.dialAddress())
	if err != nil {
		return nil, errors.NewFriendlyError("Failed to connect to %s (%s).\n"+
			"Is the host up, and reachable from this machine?\n\n%s",
			dest, r.dialAddress(), err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, r.dialAddress(), cfg)
	if err != nil {
		conn.Close()
		if keyErr != nil {
			if len(keyErr.Want) != 0 {
				return nil, errors.NewFriendlyError("The host key for %s doesn't "+
					"match the one recorded in %s.\n"+
					"If the host was rebuilt, remove the old key with "+
					"`ssh-keygen -R %s` and connect once with `ssh %s`.",
					dest, KnownHostsPath, r.hostname, dest)
			}
			return nil, errors.NewFriendlyError("The host key for %s isn't trusted.\n"+
				"Connect once with `ssh %s` to verify and record it in %s.",
				dest, dest, KnownHostsPath)
		}
		return nil, errors.WithContext(err, "ssh handshake")
	}

	log.WithFields(log.Fields{
		"host": dest,
		"user": r.user,
		"addr": r.dialAddress(),
	}).Debug("Connected to remote host")
	return &client{ssh: ssh.NewClient(sshConn, chans, reqs), host: dest}, nil
}

func (c *client) Run(ctx context.Context, command string) ([]byte, error) {
	session, err := c.ssh.NewSession()
	if err != nil {
		return nil, errors.WithContext(err, "open session")
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	err = c.wait(ctx, session, command, &stderr)
	return stdout.Bytes(), err
}

func (c *client) Stream(ctx context.Context, command string, stdout, stderr io.Writer) error {
	session, err := c.ssh.NewSession()
	if err != nil {
		return errors.WithContext(err, "open session")
	}
	defer session.Close()

	session.Stdout = stdout
	session.Stderr = stderr
	return c.wait(ctx, session, command, nil)
}

func (c *client) Shell(ctx context.Context, command string, width, height int) error {
	session, err := c.ssh.NewSession()
	if err != nil {
		return errors.WithContext(err, "open session")
	}
	defer session.Close()

	term := os.Getenv("TERM")
	if term == "" {
		term = "xterm"
	}
	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty(term, height, width, modes); err != nil {
		return errors.WithContext(err, "request pty")
	}

	session.Stdin = os.Stdin
	session.Stdout = os.Stdout
	session.Stderr = os.Stderr
	return c.wait(ctx, session, command, nil)
}

// wait runs `command` in `session` until it exits or the context is
// cancelled. If `stderr` is set, it's included in the returned
// RemoteCommandError.
func (c *client) wait(ctx context.Context, session *ssh.Session, command string,
	stderr *bytes.Buffer) error {

	log.WithField("host", c.host).Debugf("Running remote command: %s", command)
	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	var err error
	select {
	case <-ctx.Done():
		if err := session.Signal(ssh.SIGTERM); err != nil {
			log.WithError(err).Debug("Failed to signal remote command")
		}
		return ctx.Err()
	case err = <-done:
	}

	if err == nil {
		return nil
	}
	if exitErr, ok := err.(*ssh.ExitError); ok {
		cmdErr := errors.RemoteCommandError{
			Command:    command,
			ExitStatus: exitErr.ExitStatus(),
		}
		if stderr != nil {
			cmdErr.Stderr = strings.TrimSpace(stderr.String())
		}
		return cmdErr
	}
	return errors.WithContext(err, "run")
}

func (c *client) Close() error {
	return c.ssh.Close()
}

// Exists returns whether `path` exists on the host.
func Exists(ctx context.Context, c Client, path string) (bool, error) {
	_, err := c.Run(ctx, "test -e "+QuotePath(path))
	if err == nil {
		return true, nil
	}

	if cmdErr, ok := errors.RootCause(err).(errors.RemoteCommandError); ok && cmdErr.ExitStatus == 1 {
		return false, nil
	}
	return false, errors.WithContext(err, "test path")
}

func loadKnownHosts() (ssh.HostKeyCallback, error) {
	path, err := homedir.Expand(knownHostsFile)
	if err != nil {
		return nil, errors.WithContext(err, "expand known hosts path")
	}

	callback, err := knownhosts.New(path)
	if err != nil {
		if os.IsNotExist(errors.RootCause(err)) {
			return nil, errors.NewFriendlyError("%s doesn't exist, so the host "+
				"can't be verified.\nConnect once with `ssh` to record the host key.",
				KnownHostsPath)
		}
		return nil, errors.WithContext(err, "load known hosts")
	}
	return callback, nil
}

func authMethods(identityFiles []string) ([]ssh.AuthMethod, error) {
	signers, err := credentials(identityFiles)
	if err != nil {
		return nil, err
	}
	// A single method, since the client only tries each method name once.
	return []ssh.AuthMethod{ssh.PublicKeysCallback(signers)}, nil
}

// credentials returns the keys offered to the host: the agent's first, then
// the unencrypted identity files.
func credentials(identityFiles []string) (func() ([]ssh.Signer, error), error) {
	var keyAgent agent.Agent
	if agentAvailable() {
		a, _, err := newAgent()
		if err != nil {
			log.WithError(err).Debug("Failed to connect to ssh-agent")
		} else {
			keyAgent = a
		}
	}

	var fileSigners []ssh.Signer
	for _, path := range identityFiles {
		keyBytes, err := afero.ReadFile(fs, path)
		if err != nil {
			if !os.IsNotExist(err) {
				log.WithError(err).WithField("path", path).Debug("Failed to read identity file")
			}
			continue
		}

		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			// Most likely protected by a passphrase. Those keys are only
			// usable through the agent.
			log.WithError(err).WithField("path", path).Debug("Skipping identity file")
			continue
		}
		fileSigners = append(fileSigners, signer)
	}

	if keyAgent == nil && len(fileSigners) == 0 {
		return nil, errors.NewFriendlyError("No SSH credentials found.\n" +
			"Start ssh-agent and add a key with `ssh-add`, or create a key " +
			"in ~/.ssh without a passphrase.")
	}

	return func() ([]ssh.Signer, error) {
		var signers []ssh.Signer
		if keyAgent != nil {
			agentSigners, err := keyAgent.Signers()
			if err != nil {
				log.WithError(err).Debug("Failed to list ssh-agent keys")
			}
			signers = append(signers, agentSigners...)
		}
		return append(signers, fileSigners...), nil
	}, nil
}
