package casdoor

import (
	"net"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"
)

// RuntimeHints are the observations used to decide whether the process runs
// inside a container. They are gathered once at start by DetectRuntime.
type RuntimeHints struct {
	Hostname          string
	DockerContainer   string
	ComposeService    string
	DockerEnvFile     bool
	Cgroup            string
	LoopbackReachable bool
	LoopbackProbed    bool
}

var containerIDPattern = regexp.MustCompile(`^[0-9a-f]{12}([0-9a-f]{52})?$`)

// InContainer reports whether hints describe a containerized process.
func InContainer(h RuntimeHints) bool {
	switch {
	case containerIDPattern.MatchString(h.Hostname):
		return true
	case strings.EqualFold(h.DockerContainer, "true"):
		return true
	case h.ComposeService != "":
		return true
	case h.DockerEnvFile:
		return true
	case strings.Contains(h.Cgroup, "docker"),
		strings.Contains(h.Cgroup, "containerd"),
		strings.Contains(h.Cgroup, "kubepods"):
		return true
	case h.LoopbackProbed && !h.LoopbackReachable:
		return true
	}
	return false
}

// ResolveEndpoint returns the identity provider base address to use. When the
// configured address points at the loopback host and hints describe a
// container, the host is replaced by serviceHost and the scheme, port and path
// are kept.
func ResolveEndpoint(configured, serviceHost string, hints RuntimeHints) string {
	configured = strings.TrimRight(configured, "/")
	if serviceHost == "" || !InContainer(hints) {
		return configured
	}

	u, err := url.Parse(configured)
	if err != nil || !isLoopback(u.Hostname()) {
		return configured
	}

	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(serviceHost, port)
	} else {
		u.Host = serviceHost
	}
	return u.String()
}

// DetectRuntime collects RuntimeHints from the environment, the filesystem and
// a single dial against the configured loopback address.
func DetectRuntime(configured string) RuntimeHints {
	hints := RuntimeHints{
		Hostname:        os.Getenv("HOSTNAME"),
		DockerContainer: os.Getenv("DOCKER_CONTAINER"),
		ComposeService:  os.Getenv("COMPOSE_SERVICE"),
	}

	if _, err := os.Stat("/.dockerenv"); err == nil {
		hints.DockerEnvFile = true
	}
	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		hints.Cgroup = string(data)
	}

	if u, err := url.Parse(configured); err == nil && isLoopback(u.Hostname()) {
		hints.LoopbackProbed = true
		hints.LoopbackReachable = dialable(u, 2*time.Second)
	}

	return hints
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func dialable(u *url.URL, timeout time.Duration) bool {
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(u.Hostname(), port), timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
