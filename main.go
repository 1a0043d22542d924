// SPDX-License-Identifier: MPL-2.0

// interlacer builds a reproducible two-stage conda environment image and
// dispatches the application's test harness inside it.
package main

import cmd "github.com/MiXaiLL76/interlacer/cmd/interlacer"

func main() {
	cmd.Execute()
}
