// Package release describes what was deployed to the blog host, and when.
package release

import (
	"encoding/json"
	"os/user"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	git "gopkg.in/src-d/go-git.v4"
	"gopkg.in/src-d/go-git.v4/plumbing"

	"github.com/sidkik/blogctl/pkg/errors"
	"github.com/sidkik/blogctl/pkg/remote"
	"github.com/sidkik/blogctl/pkg/version"
)

// RecordPath is where the release record is written, relative to the remote
// path.
const RecordPath = ".blogctl/release.json"

// Record is written to the host after every successful deploy.
type Record struct {
	ID         string    `json:"id"`
	Commit     string    `json:"commit,omitempty"`
	Dirty      bool      `json:"dirty"`
	DeployedAt time.Time `json:"deployedAt"`
	DeployedBy string    `json:"deployedBy,omitempty"`
	Version    string    `json:"blogctlVersion"`
}

// GitState is the state of the workspace's git checkout.
type GitState struct {
	// Commit is the hash of HEAD. It's empty if the workspace isn't a git
	// repository.
	Commit string
	Dirty  bool
}

// Mocked out for unit testing.
var (
	getCurrentUser = user.Current
	newID          = func() string { return uuid.New().String() }
)

// New creates the record for a deploy of `state` happening now.
func New(clock clockwork.Clock, state GitState) Record {
	var deployedBy string
	if u, err := getCurrentUser(); err == nil {
		deployedBy = u.Username
	}

	return Record{
		ID:         newID(),
		Commit:     state.Commit,
		Dirty:      state.Dirty,
		DeployedAt: clock.Now().UTC(),
		DeployedBy: deployedBy,
		Version:    version.Version,
	}
}

// Marshal encodes the record.
func (r Record) Marshal() ([]byte, error) {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, errors.WithContext(err, "marshal")
	}
	return append(out, '\n'), nil
}

// Parse decodes a record read from the host.
func Parse(contents []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(contents, &r); err != nil {
		return Record{}, errors.WithContext(err, "parse release record")
	}
	return r, nil
}

// WriteCommand returns the remote shell command that stores `contents` as
// the record under `remotePath`.
func WriteCommand(remotePath string, contents []byte) string {
	recordPath := path.Join(remotePath, RecordPath)
	return "mkdir -p " + remote.QuotePath(path.Dir(recordPath)) +
		" && printf '%s' " + remote.Quote(string(contents)) + " > " + remote.QuotePath(recordPath)
}

// ReadCommand returns the remote shell command that prints the record under
// `remotePath`.
func ReadCommand(remotePath string) string {
	return "cat " + remote.QuotePath(path.Join(remotePath, RecordPath))
}

// ReadGitState inspects the git repository containing `dir`.
func ReadGitState(dir string) (GitState, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if err == git.ErrRepositoryNotExists {
			return GitState{}, nil
		}
		return GitState{}, errors.WithContext(err, "open repository")
	}

	// A repository without commits has no HEAD yet.
	var commit string
	head, err := repo.Head()
	switch {
	case err == plumbing.ErrReferenceNotFound:
	case err != nil:
		return GitState{}, errors.WithContext(err, "get HEAD")
	default:
		commit = head.Hash().String()
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return GitState{}, errors.WithContext(err, "get worktree")
	}

	status, err := worktree.Status()
	if err != nil {
		return GitState{}, errors.WithContext(err, "get status")
	}

	return GitState{
		Commit: commit,
		Dirty:  !status.IsClean(),
	}, nil
}
