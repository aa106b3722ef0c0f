package version

// Unset is the value of Version in binaries built without the release
// ldflags, such as `go test` binaries.
const Unset = "dev"

// Version is the git tag blogctl was built from, injected with
// `-ldflags "-X github.com/sidkik/blogctl/pkg/version.Version=<tag>"`.
var Version = Unset

// IsRelease reports whether this binary was built from a tagged release.
func IsRelease() bool {
	return Version != Unset
}
