// Package testingh starts a disposable Redpanda broker for integration tests.
package testingh

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/ory/dockertest"
	"github.com/ory/dockertest/docker"
)

const (
	kafkaPort      = "9092/tcp"
	redpandaImage  = "redpandadata/redpanda"
	defaultVersion = "v23.1.13"
)

var hostName = os.Getenv("OVERRIDE_HOSTNAME")

func init() {
	const defaultHostName = "localhost"

	if hostName == "" {
		hostName = defaultHostName
	}
}

type Container struct {
	resource *dockertest.Resource
}

// NewContainer runs a single node broker and retries connectFn with the
// advertised address until it succeeds.
func NewContainer(connectFn func(connURL string) error) (*Container, error) {
	hostPort, err := FreePort()
	if err != nil {
		return nil, fmt.Errorf("could not get free port: %w", err)
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, fmt.Errorf("could not connect to docker: %w", err)
	}

	version := os.Getenv("REDPANDA_VERSION")
	if version == "" {
		version = defaultVersion
	}

	resource, err := pool.RunWithOptions(
		&dockertest.RunOptions{
			Repository: redpandaImage,
			Tag:        version,
			PortBindings: map[docker.Port][]docker.PortBinding{
				kafkaPort: {{
					HostIP:   hostName,
					HostPort: strconv.Itoa(hostPort),
				}},
			},
			Cmd: []string{
				"redpanda", "start",
				"--overprovisioned",
				"--smp", "1",
				"--memory", "1G",
				"--reserve-memory", "0M",
				"--node-id", "0",
				"--check=false",
				"--kafka-addr", "0.0.0.0:9092",
				"--advertise-kafka-addr", fmt.Sprintf("%s:%d", hostName, hostPort),
			},
		}, func(config *docker.HostConfig) {
			config.AutoRemove = true
			config.RestartPolicy = docker.RestartPolicy{
				Name: "no",
			}
		})
	if err != nil {
		return nil, fmt.Errorf("could not create a container: %w", err)
	}

	container := &Container{
		resource: resource,
	}
	addr := net.JoinHostPort(hostName, resource.GetPort(kafkaPort))
	if err := pool.Retry(func() error {
		return connectFn(addr)
	}); err != nil {
		_ = resource.Close()
		return nil, fmt.Errorf("broker did not become ready: %w", err)
	}

	return container, nil
}

func (c *Container) Purge() error {
	return c.resource.Close()
}

// FreePort asks the kernel for an unused local TCP port.
func FreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// DockerAvailable reports whether a docker daemon answers, so integration
// suites can skip on machines without one.
func DockerAvailable() bool {
	pool, err := dockertest.NewPool("")
	if err != nil {
		return false
	}
	return pool.Client.Ping() == nil
}
