// SPDX-License-Identifier: MPL-2.0

// Package config loads and validates the interlacer pipeline configuration.
//
// Configuration lives in an interlacer.cue file, found in the project
// directory (or passed explicitly via --config). Files are validated
// against an embedded CUE schema before being merged over defaults with
// Viper. The interpreter pin is a single configuration value consumed by
// both build stages, so the two stages can never diverge.
package config
