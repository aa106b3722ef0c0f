package sync

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"

	"github.com/sidkik/blogctl/pkg/config"
)

var testRules = []config.SyncRule{
	{From: "data/posts.json", To: "data/posts.json"},
	{From: "uploads", To: "uploads", Except: []string{"tmp", ".DS_Store"}},
}

func TestSnapshotSource(t *testing.T) {
	fs = afero.NewMemMapFs()
	modTime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	files := map[string]string{
		"/blog/data/posts.json":        "[]",
		"/blog/data/users.json":        "[]",
		"/blog/uploads/hero.png":       "hero",
		"/blog/uploads/2024/cat.jpg":   "cat",
		"/blog/uploads/tmp/upload":     "partial",
		"/blog/uploads/2024/.DS_Store": "junk",
	}
	for path, contents := range files {
		assert.NoError(t, afero.WriteFile(fs, path, []byte(contents), 0644))
		assert.NoError(t, fs.Chtimes(path, modTime, modTime))
	}

	snapshot, err := SnapshotSource(testRules, "/blog")
	assert.NoError(t, err)

	var paths []string
	for path, f := range snapshot {
		paths = append(paths, path)
		assert.Equal(t, "/blog/"+path, f.ContentsPath)
		assert.True(t, f.ModTime.Equal(modTime))

		expHash, err := HashFile(f.ContentsPath)
		assert.NoError(t, err)
		assert.Equal(t, expHash, f.ContentsHash)
	}
	assert.ElementsMatch(t, []string{
		"data/posts.json", "uploads/hero.png", "uploads/2024/cat.jpg",
	}, paths)
}

func TestSnapshotSourceMissing(t *testing.T) {
	fs = afero.NewMemMapFs()
	snapshot, err := SnapshotSource(testRules, "/blog")
	assert.NoError(t, err)
	assert.Empty(t, snapshot)
}

func TestParseManifest(t *testing.T) {
	manifest := []byte(`aaaa  data/posts.json
bbbb  uploads/hero.png
cccc *uploads/2024/cat.jpg
dddd  uploads/tmp/upload

`)
	snapshot, err := ParseManifest(testRules, manifest)
	assert.NoError(t, err)
	assert.Equal(t, Snapshot{
		"data/posts.json": {
			Path:           "data/posts.json",
			FileAttributes: FileAttributes{ContentsHash: "aaaa"},
		},
		"uploads/hero.png": {
			Path:           "uploads/hero.png",
			FileAttributes: FileAttributes{ContentsHash: "bbbb"},
		},
		"uploads/2024/cat.jpg": {
			Path:           "uploads/2024/cat.jpg",
			FileAttributes: FileAttributes{ContentsHash: "cccc"},
		},
	}, snapshot)

	_, err = ParseManifest(testRules, []byte("garbage\n"))
	assert.Error(t, err)
}

func TestParseManifestEscapedNames(t *testing.T) {
	manifest := []byte(`\eeee  uploads/back\\slash.png
\ffff  uploads/two\nlines.png
`)
	snapshot, err := ParseManifest(testRules, manifest)
	assert.NoError(t, err)
	assert.Equal(t, Snapshot{
		`uploads/back\slash.png`: {
			Path:           `uploads/back\slash.png`,
			FileAttributes: FileAttributes{ContentsHash: "eeee"},
		},
		"uploads/two\nlines.png": {
			Path:           "uploads/two\nlines.png",
			FileAttributes: FileAttributes{ContentsHash: "ffff"},
		},
	}, snapshot)
}

func TestDiff(t *testing.T) {
	local := Snapshot{}
	local.Add(File{Path: "data/posts.json", FileAttributes: FileAttributes{ContentsHash: "new"}})
	local.Add(File{Path: "uploads/same.png", FileAttributes: FileAttributes{
		ContentsHash: "same", Mode: 0644, ModTime: time.Now()}})
	local.Add(File{Path: "uploads/added.png", FileAttributes: FileAttributes{ContentsHash: "added"}})

	remote := Snapshot{}
	remote.Add(File{Path: "data/posts.json", FileAttributes: FileAttributes{ContentsHash: "old"}})
	remote.Add(File{Path: "uploads/same.png", FileAttributes: FileAttributes{ContentsHash: "same"}})
	remote.Add(File{Path: "uploads/removed.png", FileAttributes: FileAttributes{ContentsHash: "gone"}})
	remote.Add(File{Path: "uploads/also-removed.png", FileAttributes: FileAttributes{ContentsHash: "gone"}})

	changes := local.Diff(remote)
	assert.Equal(t, Changes{
		OnlyLocal:  []string{"uploads/added.png"},
		OnlyRemote: []string{"uploads/also-removed.png", "uploads/removed.png"},
		Changed:    []string{"data/posts.json"},
	}, changes)
	assert.False(t, changes.Empty())
	assert.True(t, local.Diff(local).Empty())
}

func TestManifestCommand(t *testing.T) {
	cmd := ManifestCommand(testRules)
	assert.Equal(t, `for p in 'data/posts.json' 'uploads'; do `+
		`if [ -e "$p" ]; then find "$p" -type f -exec sha512sum {} +; fi; done`, cmd)
}
