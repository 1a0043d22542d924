// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides shared helpers for parsing and validating CUE
// files against embedded schemas, with error messages formatted as
// <file-path>: <json-path>: <message> for terminal display.
package cueutil
