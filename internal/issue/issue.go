// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Id identifies a well-known failure class in the catalog.
type Id int

const (
	EngineNotFoundId Id = iota + 1
	ConfigParseErrorId
	AssetMissingId
	ManifestMissingId
	BaseBuildFailedId
	AppBuildFailedId
	HarnessRunFailedId
)

type MarkdownMsg string

type HttpLink string

// Renderer renders markdown help text for terminal display.
type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

// Issue is a catalog entry describing a well-known failure class with
// rendered help text.
type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // documentation links shown in the help footer
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also: "
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "]"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "]"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	engineNotFoundIssue = &Issue{
		id: EngineNotFoundId,
		mdMsg: `
# No container engine found!

interlacer needs Docker or Podman to build and run pipeline images.

## Things you can try:
- Install Docker or Podman and make sure it is on your PATH
- Check that the daemon is running:
~~~
$ docker version
~~~

- For rootless setups, ensure your user can reach the socket:
~~~
$ sudo usermod -aG docker $USER
~~~

- Select a specific engine explicitly:
~~~
$ interlacer --engine podman build
~~~`,
	}

	configParseErrorIssue = &Issue{
		id: ConfigParseErrorId,
		mdMsg: `
# Failed to parse configuration!

Your interlacer.cue contains syntax errors or invalid values.

## Common issues:
- Invalid CUE syntax (missing quotes, braces, etc.)
- Unknown field names
- Invalid values for known fields (e.g., engine must be "docker" or "podman")

## Things you can try:
- Check the error message above for the specific field
- Show the effective defaults:
~~~
$ interlacer config show
~~~

- Regenerate a valid starting point:
~~~
$ interlacer config init
~~~`,
	}

	assetMissingIssue = &Issue{
		id: AssetMissingId,
		mdMsg: `
# Application asset missing!

One of the declared source paths does not exist in the build context,
so the application layer cannot be built. No environment was created.

## Things you can try:
- Run interlacer from the project root (the directory containing the assets)
- Check the 'assets' list in your interlacer.cue
- List what the pipeline expects:
~~~
$ interlacer plan
~~~`,
	}

	manifestMissingIssue = &Issue{
		id: ManifestMissingId,
		mdMsg: `
# Dependency manifest not found!

The named environment is resolved from a requirements file that could
not be found in the build context.

## Things you can try:
- Create a requirements.txt in the project root
- Point 'manifest' in interlacer.cue at the right file`,
	}

	baseBuildFailedIssue = &Issue{
		id: BaseBuildFailedId,
		mdMsg: `
# Base environment build failed!

The package-manager stage could not be completed. This usually means a
channel was unreachable or a package version could not be resolved.

## Things you can try:
- Check your network connection (channel metadata is fetched at build time)
- Verify the pinned interpreter version exists on the configured channel
- Re-run with full build output:
~~~
$ interlacer --verbose build
~~~`,
	}

	appBuildFailedIssue = &Issue{
		id: AppBuildFailedId,
		mdMsg: `
# Application layer build failed!

The named environment could not be resolved, or an asset copy failed.

## Things you can try:
- Check the requirements file for unresolvable packages or conflicts
- Make sure the base image was built first:
~~~
$ interlacer build --stage base
~~~

- Force a clean rebuild:
~~~
$ interlacer build --force
~~~`,
	}

	harnessRunFailedIssue = &Issue{
		id: HarnessRunFailedId,
		mdMsg: `
# Test harness could not be started!

The produced image exists but the engine failed before the entry
command ran (this is different from the tests themselves failing).

## Things you can try:
- Check that the image is present:
~~~
$ docker image ls 'interlacer-app'
~~~

- Rebuild the pipeline:
~~~
$ interlacer build
~~~`,
	}

	issues = map[Id]*Issue{
		engineNotFoundIssue.Id():   engineNotFoundIssue,
		configParseErrorIssue.Id(): configParseErrorIssue,
		assetMissingIssue.Id():     assetMissingIssue,
		manifestMissingIssue.Id():  manifestMissingIssue,
		baseBuildFailedIssue.Id():  baseBuildFailedIssue,
		appBuildFailedIssue.Id():   appBuildFailedIssue,
		harnessRunFailedIssue.Id(): harnessRunFailedIssue,
	}
)

// Values returns all catalog entries.
func Values() []*Issue {
	return maps.Values(issues)
}

// Get returns the catalog entry for the given ID, or nil if unknown.
func Get(id Id) *Issue {
	return issues[id]
}
