package devserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"golang.org/x/sync/errgroup"

	"turing-log-tail/internal/model"
	"turing-log-tail/pkg/log"
)

// Container labels identifying which resource and component a container serves.
const (
	LabelProjectID  = "logtail.project_id"
	LabelResource   = "logtail.resource"
	LabelResourceID = "logtail.resource_id"
	LabelComponent  = "logtail.component"
)

// ContainerAPI is the subset of the Docker API the source uses.
type ContainerAPI interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerLogs(ctx context.Context, container string, options container.LogsOptions) (io.ReadCloser, error)
}

// DockerSource serves logs of local containers labeled as resource components.
type DockerSource struct {
	client      ContainerAPI
	concurrency int
}

// NewDockerSource connects to the Docker daemon configured by the environment.
func NewDockerSource() (*DockerSource, error) {
	c, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return NewDockerSourceWithClient(c), nil
}

// NewDockerSourceWithClient wraps an existing Docker API client.
func NewDockerSourceWithClient(c ContainerAPI) *DockerSource {
	return &DockerSource{client: c, concurrency: 4}
}

// Logs returns the records of every container of the resource component.
func (s *DockerSource) Logs(ctx context.Context, path model.LogsPath, q model.LogsQuery) ([]model.LogRecord, error) {
	filterArgs := filters.NewArgs()
	filterArgs.Add("label", fmt.Sprintf("%s=%s", LabelProjectID, path.ProjectID))
	filterArgs.Add("label", fmt.Sprintf("%s=%s", LabelResource, path.Resource))
	filterArgs.Add("label", fmt.Sprintf("%s=%s", LabelResourceID, path.ResourceID))
	if q.ComponentType != "" {
		filterArgs.Add("label", fmt.Sprintf("%s=%s", LabelComponent, q.ComponentType))
	}

	containers, err := s.client.ContainerList(ctx, container.ListOptions{All: true, Filters: filterArgs})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers for %s: %w", path, err)
	}

	opts := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Timestamps: true,
	}
	if q.TailLines != "" {
		opts.Tail = q.TailLines
	} else if q.SinceTime != "" {
		// Docker's since is inclusive; Select drops the boundary record.
		opts.Since = q.SinceTime
	}

	var (
		mu      sync.Mutex
		records []model.LogRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, c := range containers {
		c := c
		g.Go(func() error {
			recs, err := s.containerLogs(gctx, c, opts)
			if err != nil {
				log.Warn("failed to fetch container logs", "container_id", c.ID, "error", err)
				return nil
			}
			mu.Lock()
			records = append(records, recs...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *DockerSource) containerLogs(ctx context.Context, c container.Summary, opts container.LogsOptions) ([]model.LogRecord, error) {
	rc, err := s.client.ContainerLogs(ctx, c.ID, opts)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, rc); err != nil {
		return nil, fmt.Errorf("failed to demultiplex logs: %w", err)
	}

	pod := c.ID
	if len(c.Names) > 0 {
		pod = strings.TrimPrefix(c.Names[0], "/")
	}
	recs := parseLines(pod, &stdout)
	return append(recs, parseLines(pod, &stderr)...), nil
}

// parseLines converts "<RFC3339Nano> <message>" lines to records. Messages
// that are JSON objects become structured payloads.
func parseLines(pod string, r io.Reader) []model.LogRecord {
	var out []model.LogRecord
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		out = append(out, parseLine(pod, line))
	}
	// Partial logs are acceptable; the scanner error is ignored.
	return out
}

func parseLine(pod, line string) model.LogRecord {
	rec := model.LogRecord{PodName: pod}
	msg := line
	if sp := strings.SplitN(line, " ", 2); len(sp) == 2 {
		if ts, err := time.Parse(time.RFC3339Nano, sp[0]); err == nil {
			rec.Timestamp = ts.UTC().Format(time.RFC3339Nano)
			msg = sp[1]
		}
	}

	trimmed := strings.TrimSpace(msg)
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		rec.JSONPayload = json.RawMessage(trimmed)
		return rec
	}
	rec.TextPayload = msg
	return rec
}
