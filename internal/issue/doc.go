// SPDX-License-Identifier: MPL-2.0

// Package issue provides user-facing error types for the interlacer CLI.
//
// ActionableError carries the operation, the resource involved, and
// suggestions for fixing a failure. The Issue catalog maps well-known
// failure classes to rendered markdown help text.
package issue
