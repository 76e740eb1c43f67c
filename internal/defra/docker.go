package defra

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

const (
	DefaultImage         = "sourcenetwork/defradb:latest"
	DefaultContainerName = "promptshelf-defra"
	ContainerNamePrefix  = "promptshelf-defra-"
	DefaultPort          = "9181"
	ContainerPort        = "9181/tcp"
	DataDir              = "/data"
	Label                = "promptshelf-defra"

	defaultReadyTimeout = 30 * time.Second
)

// GenerateContainerName derives a stable container name from a home directory
// so separate homes on one machine get separate stores.
func GenerateContainerName(homePath string) string {
	sum := sha256.Sum256([]byte(homePath))
	return ContainerNamePrefix + hex.EncodeToString(sum[:])[:8]
}

// ContainerStatus represents the state of the DefraDB container.
type ContainerStatus string

const (
	StatusRunning   ContainerStatus = "running"
	StatusStopped   ContainerStatus = "stopped"
	StatusNotFound  ContainerStatus = "not_found"
	StatusUnhealthy ContainerStatus = "unhealthy"
	StatusStarting  ContainerStatus = "starting"
)

// ErrContainerNotFound is returned by operations that need an existing container.
var ErrContainerNotFound = errors.New("defra container not found")

// ReadyFunc runs against a healthy store after every Start, e.g. to apply
// the collection schemas. It must be idempotent.
type ReadyFunc func(ctx context.Context, c *Client) error

// DockerConfig holds configuration for the Docker manager.
type DockerConfig struct {
	// ContainerName wins over a name derived from HomePath.
	ContainerName string
	HomePath      string
	Image         string
	DataPath      string
	HostPort      string
	Labels        map[string]string // extra labels, used for test cleanup
	// OnReady provisions the store once it answers health checks.
	// Failures are retried before Start gives up.
	OnReady ReadyFunc
}

// DockerManager runs the store promptshelf keeps its prompts in: one DefraDB
// container per home directory, provisioned on every Start.
type DockerManager struct {
	cli     *client.Client
	spec    containerSpec
	onReady ReadyFunc

	readyTimeout   time.Duration
	provisionTries uint
	provisionDelay time.Duration
}

// NewDockerManager creates a new Docker manager for DefraDB.
func NewDockerManager(cfg DockerConfig) (*DockerManager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &DockerManager{
		cli:            cli,
		spec:           newContainerSpec(cfg),
		onReady:        cfg.OnReady,
		readyTimeout:   defaultReadyTimeout,
		provisionTries: 5,
		provisionDelay: 500 * time.Millisecond,
	}, nil
}

// ContainerName returns the name of the managed container.
func (m *DockerManager) ContainerName() string { return m.spec.name }

// URL returns the DefraDB API URL.
func (m *DockerManager) URL() string {
	return fmt.Sprintf("http://localhost:%s", m.spec.hostPort)
}

// Client returns a GraphQL client for the managed store.
func (m *DockerManager) Client() *Client {
	return NewClient(m.URL())
}

// Close closes the Docker client.
func (m *DockerManager) Close() error {
	return m.cli.Close()
}

// Start brings the container up, creating it if needed, waits for it to
// answer health checks and then runs OnReady. Starting a running container
// only re-runs the readiness steps.
func (m *DockerManager) Start(ctx context.Context) error {
	if _, err := m.cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker is not running: %w", err)
	}

	ref, err := m.lookup(ctx)
	if err != nil {
		return err
	}
	switch ref.status {
	case StatusRunning:
	case StatusStopped:
		if err := m.cli.ContainerStart(ctx, ref.id, container.StartOptions{}); err != nil {
			return fmt.Errorf("failed to start existing container: %w", err)
		}
	case StatusNotFound:
		if err := m.create(ctx); err != nil {
			return err
		}
	default:
		return fmt.Errorf("container %s in unexpected state: %s", m.spec.name, ref.status)
	}

	return m.provision(ctx)
}

// provision waits for the health check and then applies OnReady, retrying
// it while the store finishes opening.
func (m *DockerManager) provision(ctx context.Context) error {
	if err := m.waitForReady(ctx, m.readyTimeout); err != nil {
		return err
	}
	if m.onReady == nil {
		return nil
	}
	c := m.Client()
	err := retry.Do(
		func() error { return m.onReady(ctx, c) },
		retry.Context(ctx),
		retry.Attempts(m.provisionTries),
		retry.Delay(m.provisionDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("failed to provision DefraDB: %w", err)
	}
	return nil
}

// Stop stops the container. A missing container is not an error.
func (m *DockerManager) Stop(ctx context.Context) error {
	ref, err := m.lookup(ctx)
	if err != nil || ref.status == StatusNotFound {
		return err
	}
	timeout := 10
	if err := m.cli.ContainerStop(ctx, ref.id, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	return nil
}

// Remove stops and removes the container. Data on the host is kept.
func (m *DockerManager) Remove(ctx context.Context) error {
	ref, err := m.lookup(ctx)
	if err != nil || ref.status == StatusNotFound {
		return err
	}
	if ref.status == StatusRunning {
		if err := m.Stop(ctx); err != nil {
			return err
		}
	}
	if err := m.cli.ContainerRemove(ctx, ref.id, container.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}
	return nil
}

// Status returns the current status of the DefraDB container.
func (m *DockerManager) Status(ctx context.Context) (ContainerStatus, error) {
	ref, err := m.lookup(ctx)
	return ref.status, err
}

// Logs returns the last tail lines of the container's stdout and stderr.
func (m *DockerManager) Logs(ctx context.Context, tail string) (string, error) {
	ref, err := m.lookup(ctx)
	if err != nil {
		return "", err
	}
	if ref.status == StatusNotFound {
		return "", fmt.Errorf("%w: %s", ErrContainerNotFound, m.spec.name)
	}

	rc, err := m.cli.ContainerLogs(ctx, ref.id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       tail,
	})
	if err != nil {
		return "", fmt.Errorf("failed to get logs: %w", err)
	}
	defer rc.Close()

	var out bytes.Buffer
	if _, err := stdcopy.StdCopy(&out, &out, rc); err != nil {
		return "", fmt.Errorf("failed to read logs: %w", err)
	}
	return out.String(), nil
}

// ValidateExisting reports every way an existing container differs from the
// configured port and data mount. A missing container is compatible.
func (m *DockerManager) ValidateExisting(ctx context.Context) error {
	ref, err := m.lookup(ctx)
	if err != nil || ref.status == StatusNotFound {
		return err
	}
	info, err := m.cli.ContainerInspect(ctx, ref.id)
	if err != nil {
		return fmt.Errorf("failed to inspect container: %w", err)
	}
	return m.spec.mismatches(info)
}

// WaitReady waits for DefraDB to answer health checks.
func (m *DockerManager) WaitReady(ctx context.Context, timeout time.Duration) error {
	return m.waitForReady(ctx, timeout)
}

// waitForReady polls the health endpoint once a second until timeout.
func (m *DockerManager) waitForReady(ctx context.Context, timeout time.Duration) error {
	attempts := uint(timeout / time.Second)
	if attempts == 0 {
		attempts = 1
	}
	c := m.Client()
	c.httpClient = &http.Client{Timeout: 2 * time.Second}
	return c.WaitHealthy(ctx, attempts, time.Second)
}
