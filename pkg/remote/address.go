package remote

import (
	"net"
	"os/user"
	"strings"

	"github.com/kevinburke/ssh_config"
	homedir "github.com/mitchellh/go-homedir"

	"github.com/sidkik/blogctl/pkg/errors"
)

const defaultPort = "22"

// Mocked out for unit testing.
var (
	sshConfigGet   = ssh_config.Get
	getCurrentUser = user.Current
)

// Address is a parsed SSH destination.
type Address struct {
	// Alias is the host as written by the operator. It may be an alias
	// defined in ~/.ssh/config.
	Alias string

	// User is the login user. It's empty when the operator didn't specify
	// one, in which case the ssh config, and then the local user, decide.
	User string

	// Port is the explicitly requested port, if any.
	Port string
}

// ParseAddress parses a destination of the form [user@]host[:port].
func ParseAddress(dest string) (Address, error) {
	if dest == "" {
		return Address{}, errors.MissingFieldError{Field: "host"}
	}

	var addr Address
	hostPort := dest
	if i := strings.LastIndex(dest, "@"); i >= 0 {
		addr.User = dest[:i]
		hostPort = dest[i+1:]
	}

	addr.Alias = hostPort
	if strings.HasPrefix(hostPort, "[") || strings.Count(hostPort, ":") == 1 {
		host, port, err := net.SplitHostPort(hostPort)
		if err != nil {
			return Address{}, errors.WithContext(err, "parse host")
		}
		addr.Alias, addr.Port = host, port
	}

	if addr.Alias == "" {
		return Address{}, errors.NewFriendlyError("Host %q has an empty hostname.", dest)
	}
	return addr, nil
}

// RsyncHost returns the host portion of an rsync destination. The port can't
// be part of it, so it's passed through RsyncShell instead.
func (a Address) RsyncHost() string {
	host := a.Alias
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if a.User != "" {
		return a.User + "@" + host
	}
	return host
}

// RsyncShell returns the remote shell rsync should connect with.
func (a Address) RsyncShell() string {
	if a.Port == "" {
		return "ssh"
	}
	return "ssh -p " + a.Port
}

// resolved is an Address after applying the operator's ssh config.
type resolved struct {
	hostname      string
	user          string
	port          string
	identityFiles []string
}

func (a Address) resolve() (resolved, error) {
	r := resolved{
		hostname: a.Alias,
		user:     a.User,
		port:     a.Port,
	}

	if hostname := sshConfigGet(a.Alias, "HostName"); hostname != "" {
		r.hostname = hostname
	}
	if r.user == "" {
		r.user = sshConfigGet(a.Alias, "User")
	}
	if r.user == "" {
		current, err := getCurrentUser()
		if err != nil {
			return resolved{}, errors.WithContext(err, "get current user")
		}
		r.user = current.Username
	}
	if r.port == "" {
		r.port = sshConfigGet(a.Alias, "Port")
	}
	if r.port == "" {
		r.port = defaultPort
	}

	identityFiles := []string{"~/.ssh/id_ed25519", "~/.ssh/id_ecdsa", "~/.ssh/id_rsa"}
	if configured := sshConfigGet(a.Alias, "IdentityFile"); configured != "" {
		identityFiles = append([]string{configured}, identityFiles...)
	}
	for _, path := range identityFiles {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return resolved{}, errors.WithContext(err, "expand identity file")
		}
		r.identityFiles = append(r.identityFiles, expanded)
	}
	return r, nil
}

func (r resolved) dialAddress() string {
	return net.JoinHostPort(r.hostname, r.port)
}
