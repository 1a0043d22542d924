// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsTransientError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "context canceled", err: context.Canceled, want: false},
		{name: "wrapped context canceled", err: fmt.Errorf("build: %w", context.Canceled), want: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: false},
		{name: "dns resolver failure", err: errors.New("Could not resolve host: conda.anaconda.org"), want: true},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), want: true},
		{name: "conda http error", err: errors.New("CondaHTTPError: HTTP 000 CONNECTION FAILED"), want: true},
		{name: "checksum mismatch", err: errors.New("ChecksumMismatchError: conda detected a mismatch"), want: true},
		{name: "overlay mount race", err: errors.New("error creating overlay mount to /var/lib/containers"), want: true},
		{name: "ordinary build failure", err: errors.New("exit status 1"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsTransientError(tt.err); got != tt.want {
				t.Errorf("IsTransientError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
