package clickhouse

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/ory/dockertest"
	"github.com/ory/dockertest/docker"
)

const (
	nativePort     = "9000/tcp"
	serverImage    = "clickhouse/clickhouse-server"
	defaultVersion = "23.3-alpine"
)

var hostName = os.Getenv("OVERRIDE_HOSTNAME")

func init() {
	const defaultHostName = "localhost"

	if hostName == "" {
		hostName = defaultHostName
	}
}

// Container is a throwaway ClickHouse server for integration tests. The
// database and credentials match ContainerConfig.
type Container struct {
	resource *dockertest.Resource
}

// ContainerConfig returns the connection settings for a container listening
// on addr.
func ContainerConfig(addr string) Config {
	return Config{
		Addr:     addr,
		DB:       "test_db",
		Username: "su",
		Password: "su",
	}
}

func NewContainer(connectFn func(connURL string) error) (*Container, error) {
	hostPort, err := getFreePort()
	if err != nil {
		return nil, fmt.Errorf("could not get free port: %w", err)
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, fmt.Errorf("could not connect to docker: %w", err)
	}

	resource, err := pool.RunWithOptions(
		&dockertest.RunOptions{
			Repository: serverImage,
			Tag:        defaultVersion,
			Env: []string{
				"CLICKHOUSE_DB=test_db",
				"CLICKHOUSE_DEFAULT_ACCESS_MANAGEMENT=1",
				"CLICKHOUSE_USER=su",
				"CLICKHOUSE_PASSWORD=su",
			},
			PortBindings: map[docker.Port][]docker.PortBinding{
				nativePort: {{
					HostIP:   hostName,
					HostPort: strconv.Itoa(hostPort),
				}},
			},
		}, func(config *docker.HostConfig) {
			config.AutoRemove = true
			config.RestartPolicy = docker.RestartPolicy{
				Name: "no",
			}
			config.Ulimits = []docker.ULimit{{Name: "nofile", Soft: 262144, Hard: 262144}}
		})
	if err != nil {
		return nil, fmt.Errorf("could not create a container: %w", err)
	}

	container := &Container{
		resource: resource,
	}
	addr := net.JoinHostPort(hostName, resource.GetPort(nativePort))
	if err := pool.Retry(func() error {
		return connectFn(addr)
	}); err != nil {
		_ = resource.Close()
		return nil, fmt.Errorf("clickhouse did not become ready: %w", err)
	}

	return container, nil
}

func (c *Container) Purge() error {
	return c.resource.Close()
}

func getFreePort() (int, error) {
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
