package config

import (
	"os"
	"strings"
	"sync"
)

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// dockerHostAlias reaches services published on the Docker host.
const dockerHostAlias = "host.docker.internal"

// IsRunningInDocker returns true if the application is running inside a Docker container.
// Detection is based on the presence of /.dockerenv file which exists in all Docker containers.
// The result is cached after the first call.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveServerForDocker rewrites local SQL Server addresses so a containerized
// process can reach an instance running on the host machine. Instance
// ("host\SQLEXPRESS") and port ("host,1433") suffixes are preserved.
func ResolveServerForDocker(server string) string {
	return resolveLocalServer(server, IsRunningInDocker())
}

func resolveLocalServer(server string, inDocker bool) string {
	if !inDocker {
		return server
	}

	host, suffix := server, ""
	if i := strings.IndexAny(server, `\,`); i >= 0 {
		host, suffix = server[:i], server[i:]
	}

	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", ".", "(local)":
		return dockerHostAlias + suffix
	}
	return server
}
