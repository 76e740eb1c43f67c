package testutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// CleanupLabel marks containers started by promptshelf tests. Its value is
// the owning test's name.
const CleanupLabel = "promptshelf-test"

// TestingT is the subset of testing.T the Docker helpers need.
type TestingT interface {
	Name() string
	Cleanup(func())
	Logf(format string, args ...any)
	Skipf(format string, args ...any)
	Helper()
}

// DockerEnv is a Docker connection scoped to one test. Every container it
// names is labeled with the test and removed when the test finishes.
type DockerEnv struct {
	t   TestingT
	cli *client.Client
}

// Docker connects to the local daemon, skipping the test when none is
// reachable, and removes leftovers from an interrupted run of the same test.
func Docker(t TestingT) *DockerEnv {
	t.Helper()

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		t.Skipf("docker client unavailable: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		t.Skipf("docker is not running: %v", err)
	}

	d := &DockerEnv{t: t, cli: cli}
	d.cleanup()
	t.Cleanup(func() {
		d.cleanup()
		cli.Close()
	})
	return d
}

// ContainerName returns a unique DefraDB container name for this test.
func (d *DockerEnv) ContainerName(prefix string) string {
	return fmt.Sprintf("%s-%s-%s-%s", CleanupLabel, prefix, sanitizeName(d.t.Name()), randString(4))
}

// Labels returns the labels that tie a container to this test.
func (d *DockerEnv) Labels() map[string]string {
	return map[string]string{CleanupLabel: d.t.Name()}
}

// DefraConfig returns a container name, free host port and labels for a
// DefraDB container owned by this test.
func (d *DockerEnv) DefraConfig(prefix string) (DefraTestConfig, error) {
	port, err := FindFreePort()
	if err != nil {
		return DefraTestConfig{}, fmt.Errorf("failed to find free port for DefraDB: %w", err)
	}
	return DefraTestConfig{
		ContainerName: d.ContainerName(prefix),
		HostPort:      port,
		Labels:        d.Labels(),
	}, nil
}

func (d *DockerEnv) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	selector := fmt.Sprintf("%s=%s", CleanupLabel, d.t.Name())
	if err := removeLabeled(ctx, d.cli, selector, d.t.Logf); err != nil {
		d.t.Logf("container cleanup: %v", err)
	}
}

// removeLabeled stops and removes containers matching a label selector and
// reports every failure.
func removeLabeled(ctx context.Context, cli *client.Client, selector string, logf func(string, ...any)) error {
	list, err := cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", selector)),
	})
	if err != nil {
		return fmt.Errorf("failed to list containers: %w", err)
	}

	var errs []error
	for _, c := range list {
		name := strings.TrimPrefix(firstName(c.Names), "/")
		timeout := 10
		_ = cli.ContainerStop(ctx, c.ID, container.StopOptions{Timeout: &timeout})
		if err := cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", name, err))
			continue
		}
		if logf != nil {
			logf("removed test container %s", name)
		}
	}
	return errors.Join(errs...)
}

func firstName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

func randString(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// sanitizeName keeps a test name usable inside a container name.
func sanitizeName(name string) string {
	out := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r == '/', r == '_', r == '-':
			return '-'
		default:
			return -1
		}
	}, name)
	if len(out) > 30 {
		out = out[:30]
	}
	return out
}
