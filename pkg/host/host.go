// Package host implements the individual steps that blogctl commands run
// against the blog host. Each command assembles these steps into a
// steps.Sequence.
package host

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/blogctl/pkg/config"
	"github.com/sidkik/blogctl/pkg/errors"
	"github.com/sidkik/blogctl/pkg/remote"
	"github.com/sidkik/blogctl/pkg/rsync"
	"github.com/sidkik/blogctl/pkg/steps"
)

// backupTimeFormat names the posts backups. It sorts chronologically.
const backupTimeFormat = "20060102-150405"

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// Host binds a resolved target to the clients used to reach it.
type Host struct {
	Target  config.Target
	Project config.Project
	Addr    remote.Address
	Remote  remote.Client
	Rsync   rsync.Client
	Clock   clockwork.Clock
}

// New creates a Host. `remoteClient` and `rsyncClient` must already be
// connected to the target.
func New(target config.Target, project config.Project, remoteClient remote.Client,
	rsyncClient rsync.Client) (Host, error) {

	addr, err := remote.ParseAddress(target.Host)
	if err != nil {
		return Host{}, errors.WithContext(err, "parse host")
	}

	return Host{
		Target:  target,
		Project: project,
		Addr:    addr,
		Remote:  remoteClient,
		Rsync:   rsyncClient,
		Clock:   clockwork.NewRealClock(),
	}, nil
}

func (h Host) remotePath(rel string) string {
	return path.Join(h.Target.RemotePath, rel)
}

func (h Host) rsyncPath(rel string) string {
	return h.Addr.RsyncHost() + ":" + h.remotePath(rel)
}

func (h Host) localPath(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(h.Target.Workspace, rel)
}

// run runs `command` from within the remote path.
func (h Host) run(ctx context.Context, command string) ([]byte, error) {
	return h.Remote.Run(ctx, "cd "+remote.QuotePath(h.Target.RemotePath)+" && "+command)
}

func (h Host) transfer(ctx context.Context, t rsync.Transfer) error {
	t.Shell = h.Addr.RsyncShell()
	_, err := h.Rsync.Run(ctx, t)
	return err
}

// CheckLocal fails if `rel` doesn't exist in the workspace.
func (h Host) CheckLocal(rel string) steps.Step {
	return steps.Step{
		Name: "check local " + rel,
		Run: func(context.Context) error {
			p := h.localPath(rel)
			if _, err := fs.Stat(p); err != nil {
				if os.IsNotExist(err) {
					return errors.NewFriendlyError("%q doesn't exist.\n"+
						"Is %q the blog's directory? Run blogctl from the "+
						"blog checkout, or set the workspace with "+
						"`blogctl config --workspace`.", p, h.Target.Workspace)
				}
				return errors.WithContext(err, "stat")
			}
			return nil
		},
	}
}

// CheckLocalPosts fails if the workspace is missing the file that the posts
// rule syncs from.
func (h Host) CheckLocalPosts() steps.Step {
	from := config.PostsFile
	if rule, ok := h.postsRule(); ok {
		from = rule.From
	}
	return h.CheckLocal(filepath.Clean(from))
}

// CheckRemote fails if `rel` doesn't exist in the remote path.
func (h Host) CheckRemote(rel string) steps.Step {
	return steps.Step{
		Name: "check remote " + rel,
		Run: func(ctx context.Context) error {
			p := h.remotePath(rel)
			exists, err := remote.Exists(ctx, h.Remote, p)
			if err != nil {
				return err
			}
			if !exists {
				return errors.NewFriendlyError("%s doesn't exist on %s.\n"+
					"Has the blog been deployed there yet?", p, h.Target.Host)
			}
			return nil
		},
	}
}

// PrepareRemote creates the remote path, and the parent directories of the
// data rule destinations.
func (h Host) PrepareRemote() steps.Step {
	return steps.Step{
		Name: "create remote directories",
		Run: func(ctx context.Context) error {
			dirSet := map[string]struct{}{h.Target.RemotePath: {}}
			for _, rule := range h.Project.Data {
				dirSet[h.remotePath(path.Dir(filepath.ToSlash(rule.To)))] = struct{}{}
			}

			var dirs []string
			for dir := range dirSet {
				dirs = append(dirs, remote.QuotePath(dir))
			}
			sort.Strings(dirs)

			_, err := h.Remote.Run(ctx, "mkdir -p "+strings.Join(dirs, " "))
			return err
		},
	}
}

// PushCode copies the code tree to the remote path. Files on the host that
// aren't in the workspace are removed, except for the excluded paths.
func (h Host) PushCode() steps.Step {
	return steps.Step{
		Name: "copy code",
		Run: func(ctx context.Context) error {
			return h.transfer(ctx, rsync.Transfer{
				Source:   strings.TrimSuffix(h.Target.Workspace, "/") + "/",
				Dest:     h.rsyncPath("") + "/",
				Excludes: h.Project.CodeExcludes(),
				Delete:   true,
			})
		},
	}
}

// PushData copies each data rule from the workspace to the host.
func (h Host) PushData(deleteExtra bool) []steps.Step {
	var pushSteps []steps.Step
	for _, rule := range h.Project.Data {
		rule := rule
		pushSteps = append(pushSteps, steps.Step{
			Name: "copy " + rule.From,
			Run: func(ctx context.Context) error {
				src := h.localPath(rule.From)
				fi, err := fs.Stat(src)
				if err != nil {
					if os.IsNotExist(err) {
						log.WithField("path", src).Info("Nothing to copy")
						return nil
					}
					return errors.WithContext(err, "stat")
				}

				if !fi.IsDir() {
					return h.transfer(ctx, rsync.Transfer{
						Source: src,
						Dest:   h.rsyncPath(rule.To),
					})
				}

				return h.transfer(ctx, rsync.Transfer{
					Source:   src + "/",
					Dest:     h.rsyncPath(rule.To) + "/",
					Excludes: rule.Except,
					Delete:   deleteExtra,
				})
			},
		})
	}
	return pushSteps
}

type remoteKind string

const (
	remoteDir     remoteKind = "dir"
	remoteFile    remoteKind = "file"
	remoteMissing remoteKind = "none"
)

func (h Host) kind(ctx context.Context, rel string) (remoteKind, error) {
	p := remote.Quote(rel)
	out, err := h.run(ctx, fmt.Sprintf("if [ -d %s ]; then echo dir; "+
		"elif [ -e %s ]; then echo file; else echo none; fi", p, p))
	if err != nil {
		return "", errors.WithContext(err, "stat remote path")
	}

	switch k := remoteKind(strings.TrimSpace(string(out))); k {
	case remoteDir, remoteFile, remoteMissing:
		return k, nil
	default:
		return "", errors.New(fmt.Sprintf("unexpected file type %q", k))
	}
}

// PullData copies each data rule from the host into the workspace.
func (h Host) PullData(deleteExtra bool) []steps.Step {
	var pullSteps []steps.Step
	for _, rule := range h.Project.Data {
		rule := rule
		pullSteps = append(pullSteps, steps.Step{
			Name: "fetch " + rule.To,
			Run: func(ctx context.Context) error {
				k, err := h.kind(ctx, rule.To)
				if err != nil {
					return err
				}

				dst := h.localPath(rule.From)
				switch k {
				case remoteMissing:
					log.WithField("path", h.remotePath(rule.To)).Info("Nothing to fetch")
					return nil
				case remoteFile:
					if err := fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
						return errors.WithContext(err, "create local directory")
					}
					return h.transfer(ctx, rsync.Transfer{
						Source: h.rsyncPath(rule.To),
						Dest:   dst,
					})
				default:
					if err := fs.MkdirAll(dst, 0755); err != nil {
						return errors.WithContext(err, "create local directory")
					}
					return h.transfer(ctx, rsync.Transfer{
						Source:   h.rsyncPath(rule.To) + "/",
						Dest:     dst + "/",
						Excludes: rule.Except,
						Delete:   deleteExtra,
					})
				}
			},
		})
	}
	return pullSteps
}

// postsRule returns the data rule that syncs the posts file.
func (h Host) postsRule() (config.SyncRule, bool) {
	for _, rule := range h.Project.Data {
		if filepath.ToSlash(rule.To) == config.PostsFile {
			return rule, true
		}
	}
	return config.SyncRule{}, false
}

func (h Host) backupName() string {
	return fmt.Sprintf("posts-%s.json", h.Clock.Now().UTC().Format(backupTimeFormat))
}

// BackupRemotePosts copies the remote posts file into the backups directory
// before it's overwritten. It does nothing if the host has no posts yet.
func (h Host) BackupRemotePosts() steps.Step {
	return steps.Step{
		Name: "back up remote posts",
		Run: func(ctx context.Context) error {
			posts := remote.Quote(config.PostsFile)
			backups := remote.Quote(config.BackupsDir)
			backup := remote.Quote(path.Join(config.BackupsDir, h.backupName()))
			_, err := h.run(ctx, fmt.Sprintf("if [ -f %s ]; then mkdir -p %s && cp -p %s %s; fi",
				posts, backups, posts, backup))
			return err
		},
	}
}

// BackupLocalPosts copies the local posts file into the backups directory
// before it's overwritten. It does nothing if there are no local posts yet.
func (h Host) BackupLocalPosts() steps.Step {
	return steps.Step{
		Name: "back up local posts",
		Run: func(context.Context) error {
			rule, ok := h.postsRule()
			if !ok {
				return nil
			}

			src := h.localPath(rule.From)
			contents, err := afero.ReadFile(fs, src)
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return errors.WithContext(err, "read posts")
			}

			fi, err := fs.Stat(src)
			if err != nil {
				return errors.WithContext(err, "stat posts")
			}

			backupDir := h.localPath(config.BackupsDir)
			if err := fs.MkdirAll(backupDir, 0755); err != nil {
				return errors.WithContext(err, "create backups directory")
			}

			dst := filepath.Join(backupDir, h.backupName())
			if err := afero.WriteFile(fs, dst, contents, fi.Mode()); err != nil {
				return errors.WithContext(err, "write backup")
			}
			log.WithField("path", dst).Info("Backed up local posts")
			return nil
		},
	}
}

// Install runs the project's install commands from within the remote path.
func (h Host) Install() steps.Step {
	return steps.Step{
		Name: "install dependencies",
		Skip: len(h.Project.Install) == 0,
		Run: func(ctx context.Context) error {
			for _, command := range h.Project.Install {
				if _, err := h.run(ctx, command); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// Restart restarts the blog's service, and then checks that it came back up.
func (h Host) Restart() []steps.Step {
	service := remote.Quote(h.Target.Service)
	return []steps.Step{
		{
			Name: "restart service",
			Run: func(ctx context.Context) error {
				_, err := h.Remote.Run(ctx, "sudo -n systemctl restart "+service)
				return err
			},
		},
		{
			Name: "check service",
			Run: func(ctx context.Context) error {
				_, err := h.Remote.Run(ctx, "systemctl is-active --quiet "+service)
				if err == nil {
					return nil
				}
				if _, ok := errors.RootCause(err).(errors.RemoteCommandError); ok {
					return errors.NewFriendlyError("The %s service isn't running "+
						"after the restart.\nCheck its logs with "+
						"`ssh %s journalctl -u %s`.",
						h.Target.Service, h.Target.Host, h.Target.Service)
				}
				return err
			},
		},
	}
}
