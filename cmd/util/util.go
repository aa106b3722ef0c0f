package util

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/blogctl/pkg/config"
	"github.com/sidkik/blogctl/pkg/errors"
	"github.com/sidkik/blogctl/pkg/host"
	"github.com/sidkik/blogctl/pkg/remote"
	"github.com/sidkik/blogctl/pkg/rsync"
)

// Mocked out for unit testing.
var (
	exit             = os.Exit
	stderr io.Writer = os.Stderr

	dialRemote = remote.Dial
	newRsync   = func(ctx context.Context) (rsync.Client, error) {
		return rsync.New(ctx)
	}
)

// HandleFatalError prints the error and exits. If the error has a friendly
// message, only the friendly message is shown.
func HandleFatalError(err error) {
	if msg, ok := errors.GetFriendlyMessage(err); ok {
		fmt.Fprintln(stderr, msg)
	} else if !errors.Is(err, errors.ErrDifferences) {
		log.Error(err)
	}
	exit(1)
}

// HandlePanic logs the panic and its stack trace before exiting. It must be
// deferred.
func HandlePanic() {
	if r := recover(); r != nil {
		log.WithField("stack", string(debug.Stack())).Errorf("Unexpected panic: %v", r)
		exit(1)
	}
}

// SignalContext returns a context that's cancelled when the process is
// interrupted.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Connect dials the target and returns a Host ready to run steps. The caller
// must close `Host.Remote`.
func Connect(ctx context.Context, target config.Target, project config.Project) (host.Host, error) {
	rsyncClient, err := newRsync(ctx)
	if err != nil {
		return host.Host{}, errors.WithContext(err, "find rsync")
	}
	return connect(ctx, target, project, rsyncClient)
}

// ConnectRemote is like Connect, but for commands that only run remote
// commands. rsync doesn't need to be installed, and `Host.Rsync` is nil.
func ConnectRemote(ctx context.Context, target config.Target, project config.Project) (host.Host, error) {
	return connect(ctx, target, project, nil)
}

func connect(ctx context.Context, target config.Target, project config.Project,
	rsyncClient rsync.Client) (host.Host, error) {

	log.WithField("host", target.Host).Debug("Connecting")
	remoteClient, err := dialRemote(ctx, target.Host)
	if err != nil {
		return host.Host{}, errors.WithContext(err, "connect")
	}

	h, err := host.New(target, project, remoteClient, rsyncClient)
	if err != nil {
		remoteClient.Close()
		return host.Host{}, err
	}
	return h, nil
}
