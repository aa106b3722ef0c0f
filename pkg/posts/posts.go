// Package posts reads the posts file written by the blog app, and compares
// two versions of it.
//
// The file is a JSON array of post objects keyed by slug. blogctl never writes
// it, so unknown fields are preserved by keeping the raw JSON of each post.
package posts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/afero"

	"github.com/sidkik/blogctl/pkg/errors"
)

// Post holds the fields blogctl reports on.
type Post struct {
	Slug    string   `json:"slug"`
	Title   string   `json:"title"`
	Tags    []string `json:"tags"`
	Author  string   `json:"author"`
	Image   string   `json:"image"`
	Created string   `json:"created"`
	Updated string   `json:"updated"`

	// raw is the post exactly as it appears in the file.
	raw json.RawMessage
}

// Raw returns the post exactly as it appeared in the file.
func (p Post) Raw() json.RawMessage {
	return p.raw
}

// Indented returns the post as indented JSON with sorted keys, which is
// stable across the two sides of a diff.
func (p Post) Indented() (string, error) {
	var fields map[string]interface{}
	decoder := json.NewDecoder(bytes.NewReader(p.raw))
	decoder.UseNumber()
	if err := decoder.Decode(&fields); err != nil {
		return "", errors.WithContext(err, "decode post")
	}

	// encoding/json sorts map keys.
	out, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return "", errors.WithContext(err, "encode post")
	}
	return string(out) + "\n", nil
}

// Load reads the posts file at `path`. A file that doesn't exist has no
// posts.
func Load(fs afero.Fs, path string) ([]Post, error) {
	contents, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.WithContext(err, "read")
	}
	return Parse(contents)
}

// Parse parses the contents of a posts file.
func Parse(contents []byte) ([]Post, error) {
	if len(bytes.TrimSpace(contents)) == 0 {
		return nil, nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(contents, &raws); err != nil {
		return nil, errors.WithContext(err, "parse posts")
	}

	var posts []Post
	for i, raw := range raws {
		var p Post
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, errors.WithContext(err, fmt.Sprintf("parse post %d", i))
		}
		if p.Slug == "" {
			return nil, errors.WithContext(errors.MissingFieldError{Field: "slug"},
				fmt.Sprintf("parse post %d", i))
		}
		p.raw = raw
		posts = append(posts, p)
	}
	return posts, nil
}

// Change is a post that exists on both sides, but differs.
type Change struct {
	Local, Remote Post
}

// Diff describes how the local posts differ from the remote posts. Each list
// is sorted by slug.
type Diff struct {
	// Added are posts that only exist locally.
	Added []Post

	// Removed are posts that only exist on the host.
	Removed []Post

	Changed []Change
}

// Empty returns whether both sides have the same posts.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Compare returns the differences between the local and remote posts.
// Posts are matched by slug, and compared by their JSON content, ignoring
// formatting and key order.
func Compare(local, remote []Post) (Diff, error) {
	remoteBySlug := map[string]Post{}
	for _, p := range remote {
		remoteBySlug[p.Slug] = p
	}
	localBySlug := map[string]Post{}
	for _, p := range local {
		localBySlug[p.Slug] = p
	}

	var diff Diff
	for _, l := range local {
		r, ok := remoteBySlug[l.Slug]
		if !ok {
			diff.Added = append(diff.Added, l)
			continue
		}

		equal, err := sameContent(l, r)
		if err != nil {
			return Diff{}, errors.WithContext(err, fmt.Sprintf("compare %q", l.Slug))
		}
		if !equal {
			diff.Changed = append(diff.Changed, Change{Local: l, Remote: r})
		}
	}

	for _, r := range remote {
		if _, ok := localBySlug[r.Slug]; !ok {
			diff.Removed = append(diff.Removed, r)
		}
	}

	sort.Slice(diff.Added, func(i, j int) bool { return diff.Added[i].Slug < diff.Added[j].Slug })
	sort.Slice(diff.Removed, func(i, j int) bool { return diff.Removed[i].Slug < diff.Removed[j].Slug })
	sort.Slice(diff.Changed, func(i, j int) bool {
		return diff.Changed[i].Local.Slug < diff.Changed[j].Local.Slug
	})
	return diff, nil
}

func sameContent(a, b Post) (bool, error) {
	aIndented, err := a.Indented()
	if err != nil {
		return false, err
	}
	bIndented, err := b.Indented()
	if err != nil {
		return false, err
	}
	return aIndented == bIndented, nil
}
