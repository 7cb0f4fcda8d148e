package casdoor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInContainer(t *testing.T) {
	tests := []struct {
		name  string
		hints RuntimeHints
		want  bool
	}{
		{"no hints", RuntimeHints{}, false},
		{"plain hostname", RuntimeHints{Hostname: "dev-laptop"}, false},
		{"short container id hostname", RuntimeHints{Hostname: "3f9a1c2b7d4e"}, true},
		{"full container id hostname", RuntimeHints{Hostname: "3f9a1c2b7d4e3f9a1c2b7d4e3f9a1c2b7d4e3f9a1c2b7d4e3f9a1c2b7d4e1234"}, true},
		{"uppercase hex is not a container id", RuntimeHints{Hostname: "3F9A1C2B7D4E"}, false},
		{"docker container flag", RuntimeHints{DockerContainer: "true"}, true},
		{"docker container flag false", RuntimeHints{DockerContainer: "false"}, false},
		{"compose service", RuntimeHints{ComposeService: "academic"}, true},
		{"dockerenv file", RuntimeHints{DockerEnvFile: true}, true},
		{"docker cgroup", RuntimeHints{Cgroup: "12:pids:/docker/abc"}, true},
		{"containerd cgroup", RuntimeHints{Cgroup: "0::/system.slice/containerd.service"}, true},
		{"kubernetes cgroup", RuntimeHints{Cgroup: "1:name=systemd:/kubepods/burstable/pod1"}, true},
		{"host cgroup", RuntimeHints{Cgroup: "0::/user.slice/user-1000.slice"}, false},
		{"loopback unreachable", RuntimeHints{LoopbackProbed: true, LoopbackReachable: false}, true},
		{"loopback reachable", RuntimeHints{LoopbackProbed: true, LoopbackReachable: true}, false},
		{"loopback not probed", RuntimeHints{LoopbackProbed: false}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InContainer(tt.hints))
		})
	}
}

func TestResolveEndpoint(t *testing.T) {
	container := RuntimeHints{DockerEnvFile: true}
	host := RuntimeHints{}

	tests := []struct {
		name        string
		configured  string
		serviceHost string
		hints       RuntimeHints
		want        string
	}{
		{"host keeps localhost", "http://localhost:8000", "casdoor", host, "http://localhost:8000"},
		{"container rewrites localhost", "http://localhost:8000", "casdoor", container, "http://casdoor:8000"},
		{"container rewrites 127.0.0.1", "http://127.0.0.1:8000", "casdoor", container, "http://casdoor:8000"},
		{"container keeps path", "https://localhost/auth/", "casdoor", container, "https://casdoor/auth"},
		{"container keeps remote host", "https://id.example.edu", "casdoor", container, "https://id.example.edu"},
		{"host with localhost in name untouched", "http://localhost.example.edu:8000", "casdoor", container, "http://localhost.example.edu:8000"},
		{"empty service host disables rewrite", "http://localhost:8000", "", container, "http://localhost:8000"},
		{"trailing slash trimmed", "http://localhost:8000/", "casdoor", host, "http://localhost:8000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveEndpoint(tt.configured, tt.serviceHost, tt.hints))
		})
	}
}

func TestDetectRuntimeSkipsProbeForRemoteHost(t *testing.T) {
	hints := DetectRuntime("https://id.example.edu")
	assert.False(t, hints.LoopbackProbed)
}
