package defra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/go-connections/nat"
)

// containerSpec is the container promptshelf expects for one home directory.
type containerSpec struct {
	name     string
	image    string
	dataPath string // host directory mounted at DataDir, optional
	hostPort string
	labels   map[string]string
}

func newContainerSpec(cfg DockerConfig) containerSpec {
	spec := containerSpec{
		name:     cfg.ContainerName,
		image:    cfg.Image,
		dataPath: cfg.DataPath,
		hostPort: cfg.HostPort,
		labels:   map[string]string{Label: "true"},
	}
	switch {
	case spec.name != "":
	case cfg.HomePath != "":
		spec.name = GenerateContainerName(cfg.HomePath)
	default:
		spec.name = DefaultContainerName
	}
	if spec.image == "" {
		spec.image = DefaultImage
	}
	if spec.hostPort == "" {
		spec.hostPort = DefaultPort
	}
	maps.Copy(spec.labels, cfg.Labels)
	return spec
}

// configs returns the create-time container and host configuration.
func (s containerSpec) configs() (*container.Config, *container.HostConfig) {
	cfg := &container.Config{
		Image: s.image,
		Cmd: []string{
			"start",
			"--no-keyring",
			"--url", "0.0.0.0:9181",
			"--store", "badger",
			"--rootdir", DataDir,
		},
		Labels:       s.labels,
		ExposedPorts: nat.PortSet{ContainerPort: struct{}{}},
		Healthcheck: &container.HealthConfig{
			Test:        []string{"CMD", "curl", "-sf", "http://localhost:9181/health-check"},
			Interval:    2 * time.Second,
			Timeout:     5 * time.Second,
			Retries:     10,
			StartPeriod: 5 * time.Second,
		},
	}
	host := &container.HostConfig{
		PortBindings: nat.PortMap{
			ContainerPort: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: s.hostPort}},
		},
	}
	if s.dataPath != "" {
		host.Mounts = []mount.Mount{{Type: mount.TypeBind, Source: s.dataPath, Target: DataDir}}
	}
	return cfg, host
}

// mismatches compares an inspected container against the spec.
func (s containerSpec) mismatches(info container.InspectResponse) error {
	var errs []error

	var bound string
	if info.ContainerJSONBase != nil && info.HostConfig != nil {
		if b := info.HostConfig.PortBindings[ContainerPort]; len(b) > 0 {
			bound = b[0].HostPort
		}
	}
	switch {
	case bound == "":
		errs = append(errs, fmt.Errorf("existing container has no port binding for %s", ContainerPort))
	case bound != s.hostPort:
		errs = append(errs, fmt.Errorf("existing container bound to port %s, expected %s", bound, s.hostPort))
	}

	if s.dataPath != "" {
		var source string
		for _, mnt := range info.Mounts {
			if mnt.Destination == DataDir {
				source = mnt.Source
				break
			}
		}
		switch {
		case source == "":
			errs = append(errs, fmt.Errorf("existing container has no mount for %s", DataDir))
		case source != s.dataPath:
			errs = append(errs, fmt.Errorf("existing container mounts %s, expected %s", source, s.dataPath))
		}
	}

	return errors.Join(errs...)
}

// containerRef is the observed state of the named container.
type containerRef struct {
	id     string
	status ContainerStatus
}

// statusFromState maps a Docker state string onto ContainerStatus.
func statusFromState(state string) ContainerStatus {
	switch state {
	case "running":
		return StatusRunning
	case "exited", "dead":
		return StatusStopped
	case "created", "restarting":
		return StatusStarting
	default:
		return ContainerStatus(state)
	}
}

func (m *DockerManager) lookup(ctx context.Context) (containerRef, error) {
	args := filters.NewArgs(filters.Arg("name", "^/"+m.spec.name+"$"))
	list, err := m.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return containerRef{}, fmt.Errorf("failed to list containers: %w", err)
	}
	if len(list) == 0 {
		return containerRef{status: StatusNotFound}, nil
	}
	return containerRef{id: list[0].ID, status: statusFromState(list[0].State)}, nil
}

// create pulls the image if needed, then creates and starts the container.
func (m *DockerManager) create(ctx context.Context) error {
	if err := m.ensureImage(ctx); err != nil {
		return err
	}
	cfg, host := m.spec.configs()
	resp, err := m.cli.ContainerCreate(ctx, cfg, host, nil, nil, m.spec.name)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}
	if err := m.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = m.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return fmt.Errorf("failed to start container: %w", err)
	}
	return nil
}

func (m *DockerManager) ensureImage(ctx context.Context) error {
	if _, err := m.cli.ImageInspect(ctx, m.spec.image); err == nil {
		return nil
	}
	reader, err := m.cli.ImagePull(ctx, m.spec.image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()

	// The pull completes only once the progress stream is drained.
	_, err = io.Copy(io.Discard, reader)
	return err
}
