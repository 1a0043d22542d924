// SPDX-License-Identifier: MPL-2.0

// Package container provides an abstraction layer for container runtimes
// (Docker/Podman). The pipeline uses it to build stage images and to run
// the produced application image.
package container
