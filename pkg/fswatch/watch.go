package fswatch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/blogctl/pkg/config"
	"github.com/sidkik/blogctl/pkg/errors"
	"github.com/sidkik/blogctl/pkg/sync"
)

var fs = afero.NewOsFs()

// Watcher delivers a notification whenever a file tracked by the data rules
// changes.
type Watcher struct {
	// Changes receives a value after one or more file changes. Bursts of
	// changes are combined into a single notification.
	Changes chan struct{}

	watcher    *fsnotify.Watcher
	rules      []config.SyncRule
	relativeTo string
}

// Watch watches for changes in files tracked by `rules`.
// Relative paths are resolved relative to `relativeTo`. For example, if the
// blog at `path/to/blog` has the rule `uploads`, we will watch
// `path/to/blog/uploads`.
func Watch(rules []config.SyncRule, relativeTo string) (*Watcher, error) {
	pathsToWatch, err := getPathsToWatch(rules, relativeTo)
	if err != nil {
		return nil, errors.WithContext(err, "get paths")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WithContext(err, "create watcher")
	}

	for _, path := range pathsToWatch {
		if err := watcher.Add(path); err != nil {
			// Close the watcher so that we release the file handlers for the
			// previously added paths.
			if err := watcher.Close(); err != nil {
				log.WithError(err).Warn("Failed to close file watcher")
			}

			return nil, errors.WithContext(err, fmt.Sprintf("watch %q", path))
		}
	}

	go func() {
		for err := range watcher.Errors {
			log.WithError(err).Debug("File watcher error")
		}
	}()

	w := &Watcher{watcher: watcher, rules: rules, relativeTo: relativeTo}
	w.Changes = combineUpdates(watcher.Events, w.watchCreated)
	return w, nil
}

// Close stops watching. Changes is closed once the pending events drain.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// watchCreated starts watching directories created after Watch, such as a
// new month's uploads directory.
func (w *Watcher) watchCreated(event fsnotify.Event) {
	if event.Op&fsnotify.Create == 0 {
		return
	}

	fi, err := fs.Stat(event.Name)
	if err != nil || !fi.IsDir() {
		return
	}

	for _, rule := range w.rules {
		root := rule.From
		if !filepath.IsAbs(root) {
			root = filepath.Join(w.relativeTo, rule.From)
		}

		relativePath, err := filepath.Rel(root, event.Name)
		if err != nil || relativePath == "." || strings.HasPrefix(relativePath, "..") {
			continue
		}
		if !sync.AppliesTo(rule, filepath.Join(rule.From, relativePath)) {
			return
		}

		children, err := getChildren(rule, root, event.Name)
		if err != nil {
			log.WithError(err).WithField("path", event.Name).Debug("Failed to list new directory")
		}
		for _, path := range append([]string{event.Name}, children...) {
			if err := w.watcher.Add(path); err != nil {
				log.WithError(err).WithField("path", path).Debug("Failed to watch new path")
			}
		}
		return
	}
}

// combineUpdates calls `onEvent` for each update before notifying, so that a
// receiver of the notification sees its effects.
func combineUpdates(updates <-chan fsnotify.Event, onEvent func(fsnotify.Event)) chan struct{} {
	combined := make(chan struct{}, 1)
	go func() {
		defer close(combined)
		for event := range updates {
			if onEvent != nil {
				onEvent(event)
			}
			select {
			case combined <- struct{}{}:
			default:
			}
		}
	}()
	return combined
}

func getPathsToWatch(rules []config.SyncRule, relativeTo string) (paths []string, err error) {
	for _, rule := range rules {
		path := rule.From
		if !filepath.IsAbs(rule.From) {
			path = filepath.Join(relativeTo, rule.From)
		}

		fi, err := fs.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				log.WithField("path", path).Debug("Not watching missing path")
				continue
			}
			return nil, errors.WithContext(err, "stat")
		}

		paths = append(paths, path)
		if fi.Mode().IsDir() {
			// Because fsnotify doesn't watch directories recursively, we walk
			// the directory's contents and add all subdirectories and files.
			subpaths, err := getChildren(rule, path, path)
			if err != nil {
				return nil, errors.WithContext(err, "get subdirs")
			}
			paths = append(paths, subpaths...)
		} else {
			// If the path is a file, then watch its parent directory as well
			// as the file itself. Editors and `pull` replace the file, which
			// drops the file's own watch.
			paths = append(paths, filepath.Dir(path))
		}
	}

	if len(paths) == 0 {
		return nil, errors.NewFriendlyError("None of the synced paths exist, " +
			"so there's nothing to watch.")
	}
	return paths, nil
}

// getChildren returns the paths under `dir` that `rule` applies to. `root` is
// the local path of `rule.From`.
func getChildren(rule config.SyncRule, root, dir string) (paths []string, err error) {
	err = afero.Walk(fs, dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return errors.WithContext(err, "walk error")
		}

		if path == dir {
			return nil
		}

		// Normalize the path to be relative to `rule.From` before applying the
		// sync rule. This way, `blogctl sync --watch` can be run from anywhere
		// on the filesystem.
		relativePath, err := filepath.Rel(root, path)
		if err != nil || strings.HasPrefix(relativePath, "..") {
			// This shouldn't happen because `path` is always a child of `dir`.
			return errors.WithContext(err, "normalized path")
		}
		normalizedPath := filepath.Join(rule.From, relativePath)

		if sync.AppliesTo(rule, normalizedPath) {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}
