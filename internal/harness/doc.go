// SPDX-License-Identifier: MPL-2.0

// Package harness dispatches the built application image's test run.
//
// The app image's default command invokes the test entry file under the
// named environment's interpreter; the harness runs that command and
// propagates its exit code untouched, so the caller observes exactly what
// the test process reported. Transient container engine failures (exit
// codes 125/126) are retried; test failures are not.
package harness
