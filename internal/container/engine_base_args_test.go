// SPDX-License-Identifier: MPL-2.0

package container

import (
	"path/filepath"
	"runtime"
	"slices"
	"testing"
)

func TestBaseCLIEngine_BuildArgs(t *testing.T) {
	t.Parallel()
	engine := NewBaseCLIEngine("/usr/bin/docker")

	tests := []struct {
		name          string
		opts          BuildOptions
		expected      []string
		skipOnWindows bool
	}{
		{
			name: "minimal build",
			opts: BuildOptions{
				ContextDir: ".",
			},
			expected: []string{"build", "."},
		},
		{
			name: "build with tag",
			opts: BuildOptions{
				ContextDir: "/build/base",
				Tag:        "interlacer-base:abc123",
			},
			expected: []string{"build", "-t", "interlacer-base:abc123", "/build/base"},
		},
		{
			name: "build with dockerfile",
			opts: BuildOptions{
				ContextDir: "/build/app",
				Dockerfile: "Dockerfile",
			},
			//nolint:gocritic // filepathJoin: testing that production code joins paths correctly
			expected: []string{"build", "-f", filepath.Join("/build/app", "Dockerfile"), "/build/app"},
		},
		{
			name: "build with absolute dockerfile",
			opts: BuildOptions{
				ContextDir: "/build/app",
				Dockerfile: "/tmp/Dockerfile.generated",
			},
			expected:      []string{"build", "-f", "/tmp/Dockerfile.generated", "/build/app"},
			skipOnWindows: true, // Unix-style absolute paths are not meaningful on Windows
		},
		{
			name: "build with no-cache",
			opts: BuildOptions{
				ContextDir: ".",
				NoCache:    true,
			},
			expected: []string{"build", "--no-cache", "."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.skipOnWindows && runtime.GOOS == "windows" {
				t.Skip("skipping: Unix-style absolute paths are not meaningful on Windows")
			}
			args := engine.BuildArgs(tt.opts)

			if !slices.Equal(args, tt.expected) {
				t.Errorf("BuildArgs() = %v, want %v", args, tt.expected)
			}
		})
	}
}

func TestBaseCLIEngine_BuildArgs_BuildArgFlags(t *testing.T) {
	t.Parallel()
	engine := NewBaseCLIEngine("/usr/bin/docker")

	args := engine.BuildArgs(BuildOptions{
		ContextDir: ".",
		BuildArgs:  map[string]string{"PYTHON_VERSION": "3.10"},
	})

	if !slices.Contains(args, "--build-arg") {
		t.Fatalf("expected --build-arg in args, got %v", args)
	}
	if !slices.Contains(args, "PYTHON_VERSION=3.10") {
		t.Fatalf("expected PYTHON_VERSION=3.10 in args, got %v", args)
	}
}

func TestBaseCLIEngine_RunArgs(t *testing.T) {
	t.Parallel()
	engine := NewBaseCLIEngine("/usr/bin/docker")

	tests := []struct {
		name     string
		opts     RunOptions
		expected []string
	}{
		{
			name: "image default command",
			opts: RunOptions{
				Image: "interlacer-app:abc123",
			},
			expected: []string{"run", "interlacer-app:abc123"},
		},
		{
			name: "remove after exit",
			opts: RunOptions{
				Image:  "interlacer-app:abc123",
				Remove: true,
			},
			expected: []string{"run", "--rm", "interlacer-app:abc123"},
		},
		{
			name: "named container with workdir",
			opts: RunOptions{
				Image:   "interlacer-app:abc123",
				Name:    "interlacer-test-42",
				WorkDir: "/app",
			},
			expected: []string{"run", "--name", "interlacer-test-42", "-w", "/app", "interlacer-app:abc123"},
		},
		{
			name: "explicit command",
			opts: RunOptions{
				Image:   "interlacer-app:abc123",
				Command: []string{"/opt/conda/envs/interlacer/bin/python", "tests/test_utils.py"},
			},
			expected: []string{"run", "interlacer-app:abc123", "/opt/conda/envs/interlacer/bin/python", "tests/test_utils.py"},
		},
		{
			name: "interactive tty",
			opts: RunOptions{
				Image:       "interlacer-app:abc123",
				Interactive: true,
				TTY:         true,
			},
			expected: []string{"run", "-i", "-t", "interlacer-app:abc123"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			args := engine.RunArgs(tt.opts)

			if !slices.Equal(args, tt.expected) {
				t.Errorf("RunArgs() = %v, want %v", args, tt.expected)
			}
		})
	}
}

func TestBaseCLIEngine_RunArgs_EnvFlags(t *testing.T) {
	t.Parallel()
	engine := NewBaseCLIEngine("/usr/bin/docker")

	args := engine.RunArgs(RunOptions{
		Image: "interlacer-app:abc123",
		Env:   map[string]string{"PYTHONUNBUFFERED": "1"},
	})

	if !slices.Contains(args, "-e") {
		t.Fatalf("expected -e in args, got %v", args)
	}
	if !slices.Contains(args, "PYTHONUNBUFFERED=1") {
		t.Fatalf("expected PYTHONUNBUFFERED=1 in args, got %v", args)
	}
}

func TestBaseCLIEngine_RemoveArgs(t *testing.T) {
	t.Parallel()
	engine := NewBaseCLIEngine("/usr/bin/docker")

	if got := engine.RemoveArgs("abc", false); !slices.Equal(got, []string{"rm", "abc"}) {
		t.Errorf("RemoveArgs() = %v", got)
	}
	if got := engine.RemoveArgs("abc", true); !slices.Equal(got, []string{"rm", "-f", "abc"}) {
		t.Errorf("RemoveArgs(force) = %v", got)
	}
}

func TestBaseCLIEngine_RemoveImageArgs(t *testing.T) {
	t.Parallel()
	engine := NewBaseCLIEngine("/usr/bin/docker")

	if got := engine.RemoveImageArgs("interlacer-base:abc", false); !slices.Equal(got, []string{"rmi", "interlacer-base:abc"}) {
		t.Errorf("RemoveImageArgs() = %v", got)
	}
	if got := engine.RemoveImageArgs("interlacer-base:abc", true); !slices.Equal(got, []string{"rmi", "-f", "interlacer-base:abc"}) {
		t.Errorf("RemoveImageArgs(force) = %v", got)
	}
}
