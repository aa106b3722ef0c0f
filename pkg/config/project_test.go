package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"

	"github.com/sidkik/blogctl/pkg/errors"
)

func TestParseProject(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		exp      Project
		expError error
	}{
		{
			name: "No config file",
			exp: Project{
				Version: SupportedProjectConfigVersion,
				Install: DefaultInstall,
				Data: []SyncRule{
					{From: "data/posts.json", To: "data/posts.json", Except: []string{".DS_Store"}},
					{From: "uploads", To: "uploads", Except: []string{".DS_Store"}},
				},
			},
		},
		{
			name: "Overrides",
			contents: `
service: myblog
exclude: ["node_modules/"]
install: []
data:
- from: ./content/posts.json
  to: data/posts.json
- from: uploads/
  except: [tmp/]
`,
			exp: Project{
				Version: SupportedProjectConfigVersion,
				Service: "myblog",
				Exclude: []string{"node_modules/"},
				Install: []string{},
				Data: []SyncRule{
					{From: "content/posts.json", To: "data/posts.json", Except: []string{".DS_Store"}},
					{From: "uploads", To: "uploads", Except: []string{"tmp", ".DS_Store"}},
				},
				path: "/blog/blogctl.yaml",
			},
		},
		{
			name: "Absolute destination",
			contents: `
data:
- from: uploads
  to: /var/www/uploads
`,
			expError: errors.NewFriendlyError(
				"The data rule for %q in %q has an absolute destination.\n"+
					"Destinations are relative to the remote path.",
				"uploads", "/blog/blogctl.yaml"),
		},
		{
			name: "Missing from",
			contents: `
data:
- to: uploads
`,
			expError: errors.NewFriendlyError(
				"A data rule in %q is missing the `from` field.", "/blog/blogctl.yaml"),
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			fs = afero.NewMemMapFs()
			if test.contents != "" {
				assert.NoError(t, afero.WriteFile(fs, "/blog/blogctl.yaml",
					[]byte(test.contents), 0644))
			}

			project, err := ParseProject("/blog")
			assert.Equal(t, test.expError, err)
			assert.Equal(t, test.exp, project)
		})
	}
}

func TestCodeExcludes(t *testing.T) {
	project := Project{Exclude: []string{"notes/"}}
	excludes := project.CodeExcludes()
	assert.Contains(t, excludes, "/data/")
	assert.Contains(t, excludes, "/uploads/")
	assert.Contains(t, excludes, "/blogctl.yaml")
	assert.Contains(t, excludes, "/.blogctl/")
	assert.Equal(t, "notes/", excludes[len(excludes)-1])

	// Make sure the defaults weren't modified.
	assert.NotContains(t, Project{}.CodeExcludes(), "notes/")
}
