// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// PodmanEngine implements the Engine interface using the Podman CLI.
// It embeds BaseCLIEngine for common CLI operations.
type PodmanEngine struct {
	*BaseCLIEngine
}

// NewPodmanEngine creates a new Podman engine.
func NewPodmanEngine(opts ...BaseCLIEngineOption) *PodmanEngine {
	path, _ := exec.LookPath("podman")

	allOpts := append([]BaseCLIEngineOption{WithName(string(EngineTypePodman))}, opts...)

	return &PodmanEngine{
		BaseCLIEngine: NewBaseCLIEngine(HostFilesystemPath(path), allOpts...),
	}
}

// Available checks if Podman is available.
func (e *PodmanEngine) Available() bool {
	if e.BinaryPath() == "" {
		return false
	}
	cmd := e.CreateCommand(context.Background(), "version", "--format", "{{.Version}}")
	return cmd.Run() == nil
}

// Version returns the Podman version.
func (e *PodmanEngine) Version(ctx context.Context) (string, error) {
	out, err := e.RunCommandWithOutput(ctx, "version", "--format", "{{.Version}}")
	if err != nil {
		return "", fmt.Errorf("failed to get podman version: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// ImageExists checks if an image exists locally.
// Podman has a dedicated subcommand for existence checks.
func (e *PodmanEngine) ImageExists(ctx context.Context, image ImageTag) (bool, error) {
	err := e.RunCommandStatus(ctx, "image", "exists", string(image))
	return err == nil, nil
}
