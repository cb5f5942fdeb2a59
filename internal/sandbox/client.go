// Package sandbox implements the Isolated Execution Harness described
// in spec.md section 4.3: a single-shot, resource-capped,
// network-denied container run that verifies an artifact's self-test.
// The container orchestration here is grounded in the teacher pack's
// Docker SDK client (Aureuma-si agents/shared/docker/client.go), and
// the isolation-contract defaults (network mode, capability drop,
// tmpfs scratch, resource caps) mirror codenerd's
// internal/tactile/docker.go DockerExecutor.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// Client is a minimal Docker Engine API wrapper covering exactly the
// container lifecycle operations the sandbox runner needs.
type Client struct {
	api *client.Client
}

// NewClient connects to the local Docker daemon using environment
// configuration, negotiating the API version like the teacher's
// NewClient.
func NewClient() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return &Client{api: cli}, nil
}

// Ping reports whether the Docker daemon is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.api == nil {
		return errors.New("sandbox: docker client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := c.api.Ping(ctx)
	return err
}

// ImageExists reports whether image is present in the local image
// store, without attempting to pull it.
func (c *Client) ImageExists(ctx context.Context, image string) bool {
	if c == nil || c.api == nil {
		return false
	}
	_, _, err := c.api.ImageInspectWithRaw(ctx, image)
	return err == nil
}

// Close releases the underlying HTTP client.
func (c *Client) Close() error {
	if c == nil || c.api == nil {
		return nil
	}
	return c.api.Close()
}

// CreateAndStart creates a container from cfg/hostCfg and starts it,
// returning its ID.
func (c *Client) CreateAndStart(ctx context.Context, cfg *container.Config, hostCfg *container.HostConfig) (string, error) {
	resp, err := c.api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("sandbox: create container: %w", err)
	}
	if err := c.api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("sandbox: start container: %w", err)
	}
	return resp.ID, nil
}

// Wait blocks until the container exits or ctx is cancelled, returning
// the exit code. If ctx is cancelled first the container is killed and
// an error is returned so the caller can treat the run as a timeout.
func (c *Client) Wait(ctx context.Context, containerID string) (int64, error) {
	statusCh, errCh := c.api.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return -1, err
	case status := <-statusCh:
		return status.StatusCode, nil
	case <-ctx.Done():
		_ = c.api.ContainerKill(context.Background(), containerID, "KILL")
		return -1, ctx.Err()
	}
}

// Logs returns the combined stdout+stderr of a finished container.
func (c *Client) Logs(ctx context.Context, containerID string) (string, error) {
	reader, err := c.api.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", err
	}
	defer reader.Close()

	var buf writerBuf
	if _, err := stdcopy.StdCopy(&buf, &buf, reader); err != nil && err != io.EOF {
		return buf.String(), nil
	}
	return buf.String(), nil
}

// Remove forcibly removes a container and its anonymous volumes. Any
// error here is logged by the caller, never treated as the decision.
func (c *Client) Remove(ctx context.Context, containerID string) error {
	return c.api.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true, RemoveVolumes: true})
}

// writerBuf is a tiny bytes.Buffer stand-in kept local to avoid an
// extra import line for such a small helper.
type writerBuf struct {
	data []byte
}

func (w *writerBuf) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	return len(p), nil
}

func (w *writerBuf) String() string { return string(w.data) }
