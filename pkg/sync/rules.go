package sync

import (
	"crypto/sha512"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/sidkik/blogctl/pkg/config"
	"github.com/sidkik/blogctl/pkg/errors"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// FileAttributes contains some metadata used to compare whether two files are
// equal.
type FileAttributes struct {
	// ContentsHash is the hex encoded sha512 hash of the contents of the
	// file, in the same format that `sha512sum` prints.
	ContentsHash string

	// Mode is the file mode of the file. It's only known for local files.
	Mode os.FileMode

	// ModTime is the time of the last file modification. It's only known
	// for local files.
	ModTime time.Time
}

// Equal returns whether two files have the same contents. The mode and
// modification time aren't compared because the remote manifest doesn't
// include them.
func (f FileAttributes) Equal(otherFile FileAttributes) bool {
	return f.ContentsHash == otherFile.ContentsHash
}

// HashFile returns the sha512 hash of the file at the given path.
func HashFile(path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", errors.WithContext(err, "open")
	}
	defer f.Close()

	hasher := sha512.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", errors.WithContext(err, "read")
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// AppliesTo returns whether the given path applies to the sync rule.
// In other words, whether it matches `rule.From`, and isn't ignored.
func AppliesTo(rule config.SyncRule, path string) bool {
	return appliesTo(rule.From, rule.Except, path)
}

// appliesToDestination is the equivalent of AppliesTo for paths on the host.
func appliesToDestination(rule config.SyncRule, path string) bool {
	return appliesTo(rule.To, rule.Except, path)
}

func appliesTo(root string, except []string, path string) bool {
	if _, ok := matchPattern(path, root); !ok {
		return false
	}

	// Ensure that the path doesn't match any of the exclusions.
	for _, exception := range except {
		excludePattern := filepath.Join(root, exception)
		if _, ok := matchPattern(path, excludePattern); ok {
			return false
		}

		// Exceptions without a slash also match by name at any depth, the
		// same way rsync treats them.
		if !strings.Contains(exception, "/") {
			if matched, _ := filepath.Match(exception, filepath.Base(path)); matched {
				return false
			}
		}
	}
	return true
}

// destination returns the path the given file is synced to, relative to the
// remote path.
func destination(rule config.SyncRule, path string) (string, bool) {
	if !AppliesTo(rule, path) {
		return "", false
	}

	remaining, ok := matchPattern(path, rule.From)
	if !ok {
		return "", false
	}

	// E.g. if the path is "data/posts.json", and the rule is
	// "data/posts.json -> data/posts.json".
	if perfectMatch := remaining == ""; perfectMatch {
		return rule.To, true
	}

	// E.g. if the path is "uploads/hero.png", and the rule is
	// "uploads -> uploads".
	return filepath.Join(rule.To, remaining), true
}

// matchPattern returns true if `path` is either an exact match, or a child of
// `pattern`.
// For example, `/foo`, `/foo/bar`, and `/foo/bar/baz` match `/foo`.
// `foo` does not match `/foo` because it's a relative path.
// `foo` matches `.` because they're both relative paths, but `/foo` doesn't
// match `.`.
func matchPattern(path string, pattern string) (remaining string, ok bool) {
	relativePath, err := filepath.Rel(pattern, path)
	if err != nil || strings.HasPrefix(relativePath, "..") {
		return "", false
	}

	if relativePath == "." {
		return "", true
	}
	return relativePath, true
}
