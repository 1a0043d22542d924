// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// DockerEngine implements the Engine interface using the Docker CLI.
// It embeds BaseCLIEngine for common CLI operations.
type DockerEngine struct {
	*BaseCLIEngine
}

// NewDockerEngine creates a new Docker engine.
func NewDockerEngine(opts ...BaseCLIEngineOption) *DockerEngine {
	path, _ := exec.LookPath("docker")

	allOpts := append([]BaseCLIEngineOption{WithName(string(EngineTypeDocker))}, opts...)

	return &DockerEngine{
		BaseCLIEngine: NewBaseCLIEngine(HostFilesystemPath(path), allOpts...),
	}
}

// Available checks if Docker is available.
func (e *DockerEngine) Available() bool {
	if e.BinaryPath() == "" {
		return false
	}
	cmd := e.CreateCommand(context.Background(), "version", "--format", "{{.Server.Version}}")
	return cmd.Run() == nil
}

// Version returns the Docker server version.
func (e *DockerEngine) Version(ctx context.Context) (string, error) {
	out, err := e.RunCommandWithOutput(ctx, "version", "--format", "{{.Server.Version}}")
	if err != nil {
		return "", fmt.Errorf("failed to get docker version: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// ImageExists checks if an image exists locally.
func (e *DockerEngine) ImageExists(ctx context.Context, image ImageTag) (bool, error) {
	err := e.RunCommandStatus(ctx, "image", "inspect", string(image))
	return err == nil, nil
}
