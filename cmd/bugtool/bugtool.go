package bugtool

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ghodss/yaml"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sidkik/blogctl/cmd/util"
	"github.com/sidkik/blogctl/pkg/config"
	"github.com/sidkik/blogctl/pkg/errors"
	"github.com/sidkik/blogctl/pkg/host"
	"github.com/sidkik/blogctl/pkg/release"
	"github.com/sidkik/blogctl/pkg/remote"
	"github.com/sidkik/blogctl/pkg/version"
)

// Mocked out for unit testing.
var (
	fs                     = afero.NewOsFs()
	stdout       io.Writer = os.Stdout
	loadConfig             = config.Load
	connect                = util.ConnectRemote
	readGitState           = release.ReadGitState
)

// New creates a new `bug-tool` command.
func New() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "bug-tool [HOST]",
		Short: "Generate an archive for debugging the blog and blogctl",
		Run: func(_ *cobra.Command, args []string) {
			ctx, cancel := util.SignalContext()
			defer cancel()

			if err := run(ctx, args, out); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "path for archive")
	return cmd
}

func run(ctx context.Context, args []string, out string) error {
	tmpdir, err := afero.TempDir(fs, "", "blogctl-bug-tool")
	if err != nil {
		return errors.NewFriendlyError("Failed to create out directory:\n%s", err)
	}
	defer func() {
		if err := fs.RemoveAll(tmpdir); err != nil {
			log.WithError(err).WithField("path", tmpdir).Warn("Failed to remove temporary directory")
		}
	}()

	setupInfo(ctx, tmpdir, args)

	if out == "" {
		out = fmt.Sprintf("blogctl-bug-info-%s.tar.gz",
			time.Now().Format("Jan_02_2006-15-04-05"))
	}
	if err := tarDirectory(tmpdir, out); err != nil {
		return errors.NewFriendlyError("Failed to tar:\n%s", err)
	}

	msg := `Created bug information archive at '%s'.
You may want to edit the archive before sharing it, since the logs may
contain sensitive information.
The archive contains:
 * The version of blogctl, and the git state of the workspace.
 * The blogctl user and project configs.
 * The release record, service status, and service logs from the host.
 * The disk usage and file listing of the remote path.
`
	fmt.Fprintf(stdout, msg, out)
	return nil
}

// setupInfo writes everything that can be collected into `root`. Failures
// are logged rather than returned so that a partial archive is still
// created.
func setupInfo(ctx context.Context, root string, args []string) {
	if err := setupVersion(root); err != nil {
		log.WithError(err).Warn("Failed to setup version info")
	}

	if err := setupUserConfig(root); err != nil {
		log.WithError(err).Warn("Failed to setup user config")
	}

	target, project, err := loadConfig(args)
	if err != nil {
		log.WithError(err).Error("Failed to resolve host")
		return
	}

	if err := setupProject(root, target, project); err != nil {
		log.WithError(err).Warn("Failed to setup project info")
	}

	h, err := connect(ctx, target, project)
	if err != nil {
		log.WithError(err).Error("Failed to connect to host")
		return
	}
	defer h.Remote.Close()

	for name, command := range remoteCommands(h) {
		if err := setupRemoteOutput(ctx, filepath.Join(root, name), h.Remote, command); err != nil {
			log.WithError(err).WithField("file", name).Warn("Failed to collect host info")
		}
	}
}

func setupVersion(root string) error {
	contents := fmt.Sprintf("blogctl version: %s\nrelease build: %t\n",
		version.Version, version.IsRelease())
	return afero.WriteFile(fs, filepath.Join(root, "version.txt"), []byte(contents), 0644)
}

func setupUserConfig(root string) error {
	path, err := config.GetUserConfigPath()
	if err != nil {
		return errors.WithContext(err, "get user config path")
	}
	return copyFile(path, filepath.Join(root, "user-config.yaml"))
}

func setupProject(root string, target config.Target, project config.Project) error {
	targetYAML, err := yaml.Marshal(target)
	if err != nil {
		return errors.WithContext(err, "marshal target")
	}
	if err := afero.WriteFile(fs, filepath.Join(root, "target.yaml"), targetYAML, 0644); err != nil {
		return errors.WithContext(err, "write target")
	}

	projectYAML, err := yaml.Marshal(project)
	if err != nil {
		return errors.WithContext(err, "marshal project")
	}
	if err := afero.WriteFile(fs, filepath.Join(root, "project.yaml"), projectYAML, 0644); err != nil {
		return errors.WithContext(err, "write project")
	}

	state, err := readGitState(target.Workspace)
	if err != nil {
		return errors.WithContext(err, "read git state")
	}
	gitInfo := fmt.Sprintf("commit: %s\ndirty: %t\n", state.Commit, state.Dirty)
	return afero.WriteFile(fs, filepath.Join(root, "git.txt"), []byte(gitInfo), 0644)
}

// remoteCommands returns the diagnostic commands run on the host, keyed by
// the file their output is written to.
func remoteCommands(h host.Host) map[string]string {
	service := remote.Quote(h.Target.Service)
	remotePath := remote.QuotePath(h.Target.RemotePath)
	return map[string]string{
		"release.json":       release.ReadCommand(h.Target.RemotePath),
		"service-status.txt": "systemctl status --no-pager -l " + service,
		"service.log":        "journalctl --no-pager -u " + service + " -n 1000",
		"disk.txt":           "df -h " + remotePath,
		"files.txt":          "ls -la " + remotePath,
	}
}

// setupRemoteOutput writes the output of `command` to `path`. Commands that
// exit non-zero still have their output written, followed by the error.
func setupRemoteOutput(ctx context.Context, path string, c remote.Client, command string) error {
	out, err := c.Run(ctx, command)
	if err != nil {
		if _, ok := errors.RootCause(err).(errors.RemoteCommandError); !ok {
			return err
		}
		out = append(out, []byte(fmt.Sprintf("\n# %s\n", err))...)
	}
	return afero.WriteFile(fs, path, out, 0644)
}

func copyFile(src, dst string) error {
	srcFile, err := fs.Open(src)
	if err != nil {
		return errors.WithContext(err, "open")
	}
	defer srcFile.Close()

	dstFile, err := fs.Create(dst)
	if err != nil {
		return errors.WithContext(err, "open destination")
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return errors.WithContext(err, "copy")
	}
	return nil
}

func tarDirectory(src, outPath string) error {
	out, err := fs.Create(outPath)
	if err != nil {
		return errors.WithContext(err, "open destination")
	}
	defer out.Close()

	gzw := gzip.NewWriter(out)
	defer gzw.Close()

	tw := tar.NewWriter(gzw)
	defer tw.Close()

	return afero.Walk(fs, src, func(file string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		header, err := tar.FileInfoHeader(fi, fi.Name())
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("make header %s", file))
		}

		relPath, err := filepath.Rel(src, file)
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("get relative path of %s to %s", file, src))
		}

		header.Name = filepath.Join("blogctl-bug-info", relPath)
		if err := tw.WriteHeader(header); err != nil {
			return errors.WithContext(err, fmt.Sprintf("write %s header", file))
		}

		// Directories only get a header.
		if !fi.Mode().IsRegular() {
			return nil
		}

		f, err := fs.Open(file)
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("open %s", file))
		}
		defer f.Close()

		if _, err := io.Copy(tw, f); err != nil {
			return errors.WithContext(err, fmt.Sprintf("copy %s", file))
		}
		return nil
	})
}
