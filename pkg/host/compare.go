package host

import (
	"context"

	"github.com/sidkik/blogctl/pkg/config"
	"github.com/sidkik/blogctl/pkg/errors"
	"github.com/sidkik/blogctl/pkg/posts"
	"github.com/sidkik/blogctl/pkg/remote"
	"github.com/sidkik/blogctl/pkg/sync"
)

// Mocked out for unit testing.
var snapshotSource = sync.SnapshotSource

// Report is the result of comparing the workspace with the host.
type Report struct {
	Posts posts.Diff

	// Files lists the differences in the data rules other than the posts
	// file.
	Files sync.Changes
}

// Empty returns whether the workspace and the host have the same content.
func (r Report) Empty() bool {
	return r.Posts.Empty() && r.Files.Empty()
}

// Compare compares the content owned by the blog app in the workspace with
// the content on the host.
func (h Host) Compare(ctx context.Context) (Report, error) {
	var report Report
	var fileRules []config.SyncRule
	postsRule, hasPosts := h.postsRule()
	for _, rule := range h.Project.Data {
		if hasPosts && rule.To == postsRule.To {
			continue
		}
		fileRules = append(fileRules, rule)
	}

	if hasPosts {
		local, err := posts.Load(fs, h.localPath(postsRule.From))
		if err != nil {
			return Report{}, errors.WithContext(err, "load local posts")
		}

		p := remote.Quote(postsRule.To)
		out, err := h.run(ctx, "if [ -f "+p+" ]; then cat "+p+"; fi")
		if err != nil {
			return Report{}, errors.WithContext(err, "read remote posts")
		}
		remotePosts, err := posts.Parse(out)
		if err != nil {
			return Report{}, errors.WithContext(err, "load remote posts")
		}

		report.Posts, err = posts.Compare(local, remotePosts)
		if err != nil {
			return Report{}, errors.WithContext(err, "compare posts")
		}
	}

	if len(fileRules) != 0 {
		local, err := snapshotSource(fileRules, h.Target.Workspace)
		if err != nil {
			return Report{}, errors.WithContext(err, "snapshot local files")
		}

		manifest, err := h.run(ctx, sync.ManifestCommand(fileRules))
		if err != nil {
			return Report{}, errors.WithContext(err, "get remote manifest")
		}

		remoteFiles, err := sync.ParseManifest(fileRules, manifest)
		if err != nil {
			return Report{}, errors.WithContext(err, "parse remote manifest")
		}
		report.Files = local.Diff(remoteFiles)
	}
	return report, nil
}
