package config

import (
	"os"

	"github.com/spf13/afero"
)

// Mocked out for unit testing.
var (
	fs                  = afero.NewOsFs()
	getenv              = os.Getenv
	getWorkingDirectory = os.Getwd
)
