package sync

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"

	"github.com/sidkik/blogctl/pkg/config"
)

func TestAppliesTo(t *testing.T) {
	tests := []struct {
		rule config.SyncRule
		path string
		exp  bool
	}{
		{
			rule: config.SyncRule{From: "data/posts.json", To: "data/posts.json"},
			path: "data/posts.json",
			exp:  true,
		},
		{
			rule: config.SyncRule{From: "uploads", To: "uploads", Except: []string{"tmp"}},
			path: "uploads/hero.png",
			exp:  true,
		},
		{
			rule: config.SyncRule{From: ".", To: "uploads"},
			path: "hero.png",
			exp:  true,
		},
		{
			rule: config.SyncRule{From: "uploads", To: "uploads", Except: []string{"tmp"}},
			path: "uploads/tmp/partial.png",
			exp:  false,
		},
		{
			rule: config.SyncRule{From: "uploads", To: "uploads", Except: []string{".DS_Store"}},
			path: "uploads/2024/.DS_Store",
			exp:  false,
		},
		{
			rule: config.SyncRule{From: "uploads", To: "uploads", Except: []string{"*.part"}},
			path: "uploads/2024/hero.png.part",
			exp:  false,
		},
		{
			rule: config.SyncRule{From: "data/posts.json", To: "data/posts.json"},
			path: "data/users.json",
			exp:  false,
		},
	}
	for _, test := range tests {
		assert.Equal(t, test.exp, AppliesTo(test.rule, test.path), test.path)
	}
}

func TestDestination(t *testing.T) {
	tests := []struct {
		rule   config.SyncRule
		path   string
		expDst string
		expOK  bool
	}{
		{
			rule:   config.SyncRule{From: "data/posts.json", To: "data/posts.json"},
			path:   "data/posts.json",
			expDst: "data/posts.json",
			expOK:  true,
		},
		{
			rule:   config.SyncRule{From: "content/posts.json", To: "data/posts.json"},
			path:   "content/posts.json",
			expDst: "data/posts.json",
			expOK:  true,
		},
		{
			rule:   config.SyncRule{From: "media", To: "uploads"},
			path:   "media/2024/hero.png",
			expDst: "uploads/2024/hero.png",
			expOK:  true,
		},
		{
			rule:   config.SyncRule{From: ".", To: "uploads"},
			path:   "hero.png",
			expDst: "uploads/hero.png",
			expOK:  true,
		},
		{
			rule:  config.SyncRule{From: "uploads", To: "uploads", Except: []string{"tmp"}},
			path:  "uploads/tmp",
			expOK: false,
		},
		{
			rule:  config.SyncRule{From: "data/posts.json", To: "data/posts.json"},
			path:  "another-file",
			expOK: false,
		},
	}
	for _, test := range tests {
		dst, ok := destination(test.rule, test.path)
		assert.Equal(t, test.expOK, ok)
		assert.Equal(t, test.expDst, dst)
	}
}

func TestHashFile(t *testing.T) {
	fs = afero.NewMemMapFs()

	assert.NoError(t, afero.WriteFile(fs, "red", []byte("red"), 0644))
	assert.NoError(t, afero.WriteFile(fs, "another-red", []byte("red"), 0644))
	assert.NoError(t, afero.WriteFile(fs, "blue", []byte("blue"), 0644))

	redHash, err := HashFile("red")
	assert.NoError(t, err)

	anotherRedHash, err := HashFile("another-red")
	assert.NoError(t, err)

	blueHash, err := HashFile("blue")
	assert.NoError(t, err)

	assert.Equal(t, redHash, anotherRedHash)
	assert.NotEqual(t, redHash, blueHash)

	// The hash must match what `sha512sum` prints on the host.
	emptyHash := "cf83e1357eefb8bdf1542850d66d8007d620e4050b5715dc83f4a921d36ce9ce" +
		"47d0d13c5d85f2b0ff8318d2877eec2f63b931bd47417a81a538327af927da3e"
	assert.NoError(t, afero.WriteFile(fs, "empty", nil, 0644))
	hash, err := HashFile("empty")
	assert.NoError(t, err)
	assert.Equal(t, emptyHash, hash)
}
