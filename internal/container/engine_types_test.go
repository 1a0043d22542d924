// SPDX-License-Identifier: MPL-2.0

package container

import (
	"errors"
	"testing"
)

func TestImageTagValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tag     ImageTag
		wantErr bool
	}{
		{name: "valid repo tag", tag: "interlacer-base:abc123", wantErr: false},
		{name: "valid bare repo", tag: "interlacer-app", wantErr: false},
		{name: "empty", tag: "", wantErr: true},
		{name: "whitespace only", tag: "   ", wantErr: true},
		{name: "embedded space", tag: "interlacer base", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.tag.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidImageTag) {
				t.Errorf("error should wrap ErrInvalidImageTag, got %v", err)
			}
		})
	}
}

func TestContainerNameValidate(t *testing.T) {
	t.Parallel()

	if err := ContainerName("").Validate(); err != nil {
		t.Errorf("zero value should be valid, got %v", err)
	}
	if err := ContainerName("interlacer-test-42").Validate(); err != nil {
		t.Errorf("valid name rejected: %v", err)
	}
	err := ContainerName("   ").Validate()
	if !errors.Is(err, ErrInvalidContainerName) {
		t.Errorf("whitespace-only name should wrap ErrInvalidContainerName, got %v", err)
	}
}

func TestHostFilesystemPathValidate(t *testing.T) {
	t.Parallel()

	if err := HostFilesystemPath("/usr/bin/docker").Validate(); err != nil {
		t.Errorf("valid path rejected: %v", err)
	}
	err := HostFilesystemPath("").Validate()
	if !errors.Is(err, ErrInvalidHostFilesystemPath) {
		t.Errorf("empty path should wrap ErrInvalidHostFilesystemPath, got %v", err)
	}
}

func TestBuildOptionsValidate(t *testing.T) {
	t.Parallel()

	valid := BuildOptions{ContextDir: "/build", Tag: "interlacer-base:abc"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid options rejected: %v", err)
	}

	invalid := BuildOptions{}
	err := invalid.Validate()
	if !errors.Is(err, ErrInvalidBuildOptions) {
		t.Fatalf("expected ErrInvalidBuildOptions, got %v", err)
	}

	var optsErr *InvalidBuildOptionsError
	if !errors.As(err, &optsErr) {
		t.Fatalf("expected *InvalidBuildOptionsError, got %T", err)
	}
	if len(optsErr.FieldErrs) != 2 {
		t.Errorf("expected 2 field errors (context dir, tag), got %d", len(optsErr.FieldErrs))
	}
}

func TestRunOptionsValidate(t *testing.T) {
	t.Parallel()

	valid := RunOptions{Image: "interlacer-app:abc"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid options rejected: %v", err)
	}

	err := RunOptions{}.Validate()
	if !errors.Is(err, ErrInvalidRunOptions) {
		t.Fatalf("expected ErrInvalidRunOptions, got %v", err)
	}
	if !errors.Is(err, ErrInvalidImageTag) {
		t.Fatalf("field error should wrap ErrInvalidImageTag, got %v", err)
	}
}

func TestNewEngineUnknownType(t *testing.T) {
	t.Parallel()

	if _, err := NewEngine("lxc"); err == nil {
		t.Fatal("expected error for unknown engine type")
	}
}
