package config

import (
	"fmt"
	"os"

	"github.com/ghodss/yaml"
	"github.com/spf13/afero"

	"github.com/sidkik/blogctl/pkg/errors"
)

// invalidConfigTemplate is shown when a config file isn't valid YAML for its
// schema. The yaml library drops the position of the offending field, so the
// parser's message is all we can show.
const invalidConfigTemplate = "blogctl couldn't read the config file %q.\n" +
	"Check that:\n" +
	" - every field has the right type (lists for `exclude` and `install`)\n" +
	" - there are no misspelled or unknown fields\n\n" +
	"The parser reported:\n" +
	"%s"

// versioned is implemented by every on-disk config schema.
type versioned interface {
	getVersion() string
}

type versionMismatchError struct {
	file, want, got string
}

func (err versionMismatchError) Error() string {
	return err.FriendlyMessage()
}

func (err versionMismatchError) FriendlyMessage() string {
	return fmt.Sprintf("%q was written for a different version of blogctl.\n"+
		"This binary reads config version %q, but the file declares %q.",
		err.file, err.want, err.got)
}

// decodeFile reads the YAML file at `path` into `into`. The version is
// checked before unknown fields so that files from a newer schema get the
// version error rather than a confusing field error.
func decodeFile(path string, into versioned, want string) error {
	contents, err := afero.ReadFile(fs, path)
	switch {
	case os.IsNotExist(err):
		return errors.FileNotFound{Path: path}
	case err != nil:
		return errors.WithContext(err, "read file")
	}

	if err := yaml.Unmarshal(contents, into); err != nil {
		return errors.NewFriendlyError(invalidConfigTemplate, path, err)
	}

	if got := into.getVersion(); got != want {
		return versionMismatchError{file: path, want: want, got: got}
	}

	if err := yaml.UnmarshalStrict(contents, into, yaml.DisallowUnknownFields); err != nil {
		return errors.NewFriendlyError(invalidConfigTemplate, path, err)
	}
	return nil
}
