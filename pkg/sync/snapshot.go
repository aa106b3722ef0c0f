package sync

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/sidkik/blogctl/pkg/config"
	"github.com/sidkik/blogctl/pkg/errors"
	"github.com/sidkik/blogctl/pkg/remote"
)

// A File is a file tracked by one of the data rules.
type File struct {
	// Path is the destination of the file, relative to the remote path.
	Path string

	// ContentsPath is the path to the file that can be opened by the blogctl
	// process. It's only set for local files.
	ContentsPath string

	FileAttributes
}

// Snapshot is a collection of tracked files, keyed by destination path.
type Snapshot map[string]File

// Add updates the Snapshot.
func (snapshot Snapshot) Add(f File) {
	snapshot[f.Path] = f
}

// Changes describes how two snapshots differ. All paths are destination paths,
// and each list is sorted.
type Changes struct {
	OnlyLocal  []string
	OnlyRemote []string
	Changed    []string
}

// Empty returns whether the snapshots were identical.
func (c Changes) Empty() bool {
	return len(c.OnlyLocal) == 0 && len(c.OnlyRemote) == 0 && len(c.Changed) == 0
}

// Diff returns the files that differ between the local snapshot and the
// remote snapshot.
func (local Snapshot) Diff(remote Snapshot) (changes Changes) {
	for path, exp := range local {
		curr, ok := remote[path]
		switch {
		case !ok:
			changes.OnlyLocal = append(changes.OnlyLocal, path)
		case !curr.FileAttributes.Equal(exp.FileAttributes):
			changes.Changed = append(changes.Changed, path)
		}
	}

	for path := range remote {
		if _, ok := local[path]; !ok {
			changes.OnlyRemote = append(changes.OnlyRemote, path)
		}
	}

	sort.Strings(changes.OnlyLocal)
	sort.Strings(changes.OnlyRemote)
	sort.Strings(changes.Changed)
	return changes
}

// SnapshotSource returns the information on the local files that are tracked
// by the rules. Relative rule sources are resolved relative to `relativeTo`.
// Sources that don't exist are skipped, since a fresh blog may not have any
// uploads yet.
func SnapshotSource(rules []config.SyncRule, relativeTo string) (Snapshot, error) {
	files := Snapshot{}
	for _, rule := range rules {
		toSnapshot := rule.From
		if !filepath.IsAbs(rule.From) {
			toSnapshot = filepath.Join(relativeTo, rule.From)
		}

		fi, err := fs.Stat(toSnapshot)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.WithContext(err, "open path")
		}

		if !fi.IsDir() {
			f, err := snapshotFile(rule, rule.From, toSnapshot, fi)
			if err != nil {
				return nil, errors.WithContext(err, fmt.Sprintf("version path %q", toSnapshot))
			}
			files.Add(f)
			continue
		}

		rule := rule
		err = afero.Walk(fs, toSnapshot, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			if fi.IsDir() {
				return nil
			}

			relativePath, err := filepath.Rel(toSnapshot, path)
			if err != nil || strings.HasPrefix(relativePath, "..") {
				return errors.WithContext(err, "normalized path")
			}
			normalizedPath := filepath.Join(rule.From, relativePath)

			if !AppliesTo(rule, normalizedPath) {
				return nil
			}

			f, err := snapshotFile(rule, normalizedPath, path, fi)
			if err != nil {
				return err
			}
			files.Add(f)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func snapshotFile(rule config.SyncRule, normalizedPath, contentsPath string,
	fi os.FileInfo) (File, error) {

	dst, ok := destination(rule, normalizedPath)
	if !ok {
		return File{}, errors.New("path is not tracked by the rule")
	}

	contentsHash, err := HashFile(contentsPath)
	if err != nil {
		return File{}, err
	}

	return File{
		Path:         dst,
		ContentsPath: contentsPath,
		FileAttributes: FileAttributes{
			ContentsHash: contentsHash,
			ModTime:      fi.ModTime(),
			Mode:         fi.Mode(),
		},
	}, nil
}

// ManifestCommand returns the shell command that prints the remote manifest
// for the rules. It's run from within the remote path.
func ManifestCommand(rules []config.SyncRule) string {
	var paths []string
	for _, rule := range rules {
		paths = append(paths, remote.Quote(rule.To))
	}
	return fmt.Sprintf("for p in %s; do "+
		`if [ -e "$p" ]; then find "$p" -type f -exec sha512sum {} +; fi; `+
		"done", strings.Join(paths, " "))
}

// ParseManifest parses the output of ManifestCommand. Files that aren't
// tracked by any of the rules are dropped, so that exceptions apply to both
// sides of the comparison.
func ParseManifest(rules []config.SyncRule, manifest []byte) (Snapshot, error) {
	files := Snapshot{}
	scanner := bufio.NewScanner(bytes.NewReader(manifest))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		// Lines have the form "<hash>  <path>", or "<hash> *<path>" when
		// sha512sum reads in binary mode. Paths containing a backslash or a
		// newline are escaped, and the line is prefixed with a backslash.
		escaped := strings.HasPrefix(line, `\`)
		if escaped {
			line = line[1:]
		}
		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 || len(fields[1]) < 2 {
			return nil, errors.New(fmt.Sprintf("malformed manifest line %q", line))
		}
		hash := fields[0]
		path := fields[1][1:]
		if escaped {
			path = manifestUnescaper.Replace(path)
		}
		path = filepath.Clean(path)

		if !tracked(rules, path) {
			continue
		}
		files.Add(File{
			Path:           path,
			FileAttributes: FileAttributes{ContentsHash: hash},
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.WithContext(err, "read manifest")
	}
	return files, nil
}

var manifestUnescaper = strings.NewReplacer(`\\`, `\`, `\n`, "\n", `\r`, "\r")

func tracked(rules []config.SyncRule, path string) bool {
	for _, rule := range rules {
		if appliesToDestination(rule, path) {
			return true
		}
	}
	return false
}
