// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestGet_KnownIds(t *testing.T) {
	ids := []Id{
		EngineNotFoundId,
		ConfigParseErrorId,
		AssetMissingId,
		ManifestMissingId,
		BaseBuildFailedId,
		AppBuildFailedId,
		HarnessRunFailedId,
	}

	for _, id := range ids {
		issue := Get(id)
		if issue == nil {
			t.Errorf("Get(%d) = nil, want catalog entry", id)
			continue
		}
		if issue.Id() != id {
			t.Errorf("Get(%d).Id() = %d", id, issue.Id())
		}
		if issue.MarkdownMsg() == "" {
			t.Errorf("Get(%d) has empty markdown message", id)
		}
	}
}

func TestGet_UnknownId(t *testing.T) {
	if got := Get(Id(9999)); got != nil {
		t.Errorf("Get(unknown) = %v, want nil", got)
	}
}

func TestValues_CoversCatalog(t *testing.T) {
	if got := len(Values()); got != len(issues) {
		t.Errorf("len(Values()) = %d, want %d", got, len(issues))
	}
}

func TestAppBuildFailed_SuggestsRealFlags(t *testing.T) {
	msg := string(Get(AppBuildFailedId).MarkdownMsg())
	if !strings.Contains(msg, "interlacer build --force") {
		t.Errorf("rebuild suggestion must use the --force flag:\n%s", msg)
	}
	if strings.Contains(msg, "--no-cache") {
		t.Errorf("suggestion references a flag the CLI does not define:\n%s", msg)
	}
}

func TestIssue_Render(t *testing.T) {
	// Stub the renderer so the test doesn't depend on terminal detection.
	orig := render
	render = func(in, _ string) (string, error) { return in, nil }
	defer func() { render = orig }()

	issue := Get(AssetMissingId)
	out, err := issue.Render("auto")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if out == "" {
		t.Error("Render() returned empty output")
	}
}
