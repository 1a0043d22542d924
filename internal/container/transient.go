// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"os/exec"
	"strings"
)

// IsTransientError reports whether err is a transient container engine error
// that may succeed on retry. Image builds for conda environments pull large
// amounts of repodata and packages over the network, so transient resolver
// and registry failures are common enough to be worth retrying.
//
// Context cancellation and deadline errors are explicitly non-transient because
// retrying a cancelled operation is never useful.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are never transient. The caller explicitly stopped the operation.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Exit code 125 is a generic container engine error (e.g., Podman/Docker
	// internal failure). These are often transient storage or cgroup issues.
	if exitErr, ok := errors.AsType[*exec.ExitError](err); ok && exitErr.ExitCode() == 125 {
		return true
	}

	errStr := err.Error()

	// Registry and resolver failures during image pull.
	if strings.Contains(errStr, "Temporary failure resolving") ||
		strings.Contains(errStr, "Could not resolve host") ||
		strings.Contains(errStr, "connection timed out") ||
		strings.Contains(errStr, "connection refused") {
		return true
	}

	// Conda channel fetch failures inside build layers.
	if strings.Contains(errStr, "CondaHTTPError") ||
		strings.Contains(errStr, "ChecksumMismatchError") {
		return true
	}

	// Storage driver errors (overlay mount races on rootless Podman).
	if strings.Contains(errStr, "error creating overlay mount") ||
		strings.Contains(errStr, "error mounting layer") {
		return true
	}

	return false
}
