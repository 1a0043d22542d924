// SPDX-License-Identifier: MPL-2.0

// Package provision builds the two-stage container environment for the
// interlacer application.
//
// The base stage starts from a conda-enabled image, registers package
// channels, brings the package manager and installed set up to date, and
// installs a pinned interpreter. The app stage layers application assets
// and a named conda environment (resolved from the dependency manifest at
// the same interpreter pin) on top of the base image, then declares the
// test entry command as the image's default action.
//
// Both stages are cached by content digest: identical recipes and assets
// reuse the previously built image. The main entry point is StageBuilder:
//
//	builder := provision.NewStageBuilder(engine, cfg)
//	base, err := builder.BuildBase(ctx, baseRecipe)
//	app, err := builder.BuildApp(ctx, appRecipe)
package provision
