package remote

import "strings"

// Quote quotes `s` so that the remote shell treats it as a single word.
func Quote(s string) string {
	return "'" + strings.Replace(s, "'", `'\''`, -1) + "'"
}

// QuotePath is like Quote, but leaves a leading `~/` unquoted so that the
// remote shell still expands it to the login user's home directory.
func QuotePath(path string) string {
	switch {
	case path == "~":
		return path
	case strings.HasPrefix(path, "~/"):
		rest := strings.TrimPrefix(path, "~/")
		if rest == "" {
			return "~/"
		}
		return "~/" + Quote(rest)
	default:
		return Quote(path)
	}
}
