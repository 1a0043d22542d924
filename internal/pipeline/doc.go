// SPDX-License-Identifier: MPL-2.0

// Package pipeline runs named build steps in order, halting on the first
// failure. Each step is independently loggable so a failed environment
// build points at the exact operation that broke.
package pipeline
