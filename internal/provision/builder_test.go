// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MiXaiLL76/interlacer/internal/container"
)

// mockEngine implements container.Engine for testing builder logic without
// requiring real Docker/Podman.
type mockEngine struct {
	// imageExistsResult controls what ImageExists returns
	imageExistsResult bool
	// imageExistsErr controls the error ImageExists returns
	imageExistsErr error
	// buildErr controls the error Build returns
	buildErr error

	// buildCalls records Build invocations for assertion
	buildCalls []container.BuildOptions
	// imageExistsCalls records ImageExists invocations
	imageExistsCalls []string
	// removedImages records RemoveImage invocations
	removedImages []string
}

func newMockEngine() *mockEngine {
	return &mockEngine{
		buildCalls:       make([]container.BuildOptions, 0),
		imageExistsCalls: make([]string, 0),
	}
}

func (m *mockEngine) Name() string    { return "mock" }
func (m *mockEngine) Available() bool { return true }

func (m *mockEngine) Version(_ context.Context) (string, error) {
	return "mock-1.0.0", nil
}

func (m *mockEngine) Build(_ context.Context, opts container.BuildOptions) error {
	m.buildCalls = append(m.buildCalls, opts)
	return m.buildErr
}

func (m *mockEngine) Run(_ context.Context, _ container.RunOptions) (*container.RunResult, error) {
	return &container.RunResult{}, nil
}

func (m *mockEngine) Remove(_ context.Context, _ container.ContainerID, _ bool) error {
	return nil
}

func (m *mockEngine) ImageExists(_ context.Context, image container.ImageTag) (bool, error) {
	m.imageExistsCalls = append(m.imageExistsCalls, string(image))
	return m.imageExistsResult, m.imageExistsErr
}

func (m *mockEngine) RemoveImage(_ context.Context, image container.ImageTag, _ bool) error {
	m.removedImages = append(m.removedImages, string(image))
	return nil
}

// projectFixture creates a build context with the standard asset layout.
func projectFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	for _, sub := range []string{"scripts", "interlacer", "tests"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	files := map[string]string{
		"scripts/train.py":    "print('train')\n",
		"interlacer/core.py":  "VERSION = '1.0'\n",
		"tests/test_utils.py": "import sys; sys.exit(0)\n",
		"requirements.txt":    "pytest==8.0.0\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func testBuilderConfig(t *testing.T, projectDir string) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Apply(
		WithProjectDir(projectDir),
		WithCacheDir(t.TempDir()),
		WithBuildAttempts(1),
	)
	return cfg
}

func baseRecipeFixture() *BaseRecipe {
	return NewBaseRecipe("continuumio/miniconda3:latest").
		AddChannel("conda-forge").
		SelfUpdate().
		UpdateAll().
		InstallPinned("python", "3.10", "conda-forge")
}

func TestStageBuilder_BuildBase(t *testing.T) {
	t.Parallel()

	engine := newMockEngine()
	builder := NewStageBuilder(engine, testBuilderConfig(t, projectFixture(t)))

	result, err := builder.BuildBase(context.Background(), baseRecipeFixture())
	if err != nil {
		t.Fatalf("BuildBase() error = %v", err)
	}

	if result.Cached {
		t.Error("fresh build must not report cached")
	}
	if !strings.HasPrefix(result.ImageTag.String(), "interlacer-base:") {
		t.Errorf("tag = %q, want interlacer-base repo", result.ImageTag)
	}
	if len(engine.buildCalls) != 1 {
		t.Fatalf("expected 1 build call, got %d", len(engine.buildCalls))
	}
	if engine.buildCalls[0].Tag != result.ImageTag {
		t.Errorf("built tag %q != result tag %q", engine.buildCalls[0].Tag, result.ImageTag)
	}
}

func TestStageBuilder_BuildBase_CacheHit(t *testing.T) {
	t.Parallel()

	engine := newMockEngine()
	engine.imageExistsResult = true
	builder := NewStageBuilder(engine, testBuilderConfig(t, projectFixture(t)))

	result, err := builder.BuildBase(context.Background(), baseRecipeFixture())
	if err != nil {
		t.Fatalf("BuildBase() error = %v", err)
	}

	if !result.Cached {
		t.Error("expected cache hit")
	}
	if len(engine.buildCalls) != 0 {
		t.Errorf("cache hit must not build, got %d build calls", len(engine.buildCalls))
	}
}

func TestStageBuilder_BuildBase_ForceRebuildBypassesCache(t *testing.T) {
	t.Parallel()

	engine := newMockEngine()
	engine.imageExistsResult = true
	cfg := testBuilderConfig(t, projectFixture(t))
	cfg.Apply(WithForceRebuild(true))
	builder := NewStageBuilder(engine, cfg)

	result, err := builder.BuildBase(context.Background(), baseRecipeFixture())
	if err != nil {
		t.Fatalf("BuildBase() error = %v", err)
	}
	if result.Cached {
		t.Error("force rebuild must not report cached")
	}
	if len(engine.buildCalls) != 1 {
		t.Errorf("expected 1 build call, got %d", len(engine.buildCalls))
	}
}

func TestStageBuilder_BuildBase_DeterministicTag(t *testing.T) {
	t.Parallel()

	builder := NewStageBuilder(newMockEngine(), testBuilderConfig(t, projectFixture(t)))

	tag1, err := builder.BaseTag(baseRecipeFixture())
	if err != nil {
		t.Fatal(err)
	}
	tag2, err := builder.BaseTag(baseRecipeFixture())
	if err != nil {
		t.Fatal(err)
	}
	if tag1 != tag2 {
		t.Errorf("identical recipes produced different tags: %q vs %q", tag1, tag2)
	}

	otherPin, err := builder.BaseTag(
		NewBaseRecipe("continuumio/miniconda3:latest").
			AddChannel("conda-forge").
			SelfUpdate().
			UpdateAll().
			InstallPinned("python", "3.11", "conda-forge"))
	if err != nil {
		t.Fatal(err)
	}
	if otherPin == tag1 {
		t.Error("different interpreter pins must produce different tags")
	}
}

func TestStageBuilder_TagSuffix(t *testing.T) {
	t.Parallel()

	cfg := testBuilderConfig(t, projectFixture(t))
	cfg.Apply(WithTagSuffix("t42"))
	builder := NewStageBuilder(newMockEngine(), cfg)

	tag, err := builder.BaseTag(baseRecipeFixture())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(tag.String(), "-t42") {
		t.Errorf("tag %q missing suffix", tag)
	}
}

func TestStageBuilder_BuildApp(t *testing.T) {
	t.Parallel()

	engine := newMockEngine()
	builder := NewStageBuilder(engine, testBuilderConfig(t, projectFixture(t)))

	result, err := builder.BuildApp(context.Background(), appRecipeFixture())
	if err != nil {
		t.Fatalf("BuildApp() error = %v", err)
	}
	if !strings.HasPrefix(result.ImageTag.String(), "interlacer-app:") {
		t.Errorf("tag = %q, want interlacer-app repo", result.ImageTag)
	}
	if len(engine.buildCalls) != 1 {
		t.Fatalf("expected 1 build call, got %d", len(engine.buildCalls))
	}
}

func TestStageBuilder_BuildApp_MissingAssetAbortsBeforeBuild(t *testing.T) {
	t.Parallel()

	engine := newMockEngine()
	projectDir := projectFixture(t)
	if err := os.RemoveAll(filepath.Join(projectDir, "interlacer")); err != nil {
		t.Fatal(err)
	}
	builder := NewStageBuilder(engine, testBuilderConfig(t, projectDir))

	_, err := builder.BuildApp(context.Background(), appRecipeFixture())
	if !errors.Is(err, ErrAssetMissing) {
		t.Fatalf("expected ErrAssetMissing, got %v", err)
	}

	var assetErr *AssetMissingError
	if !errors.As(err, &assetErr) {
		t.Fatalf("expected *AssetMissingError, got %T", err)
	}
	if len(assetErr.Missing) != 1 || assetErr.Missing[0] != "interlacer" {
		t.Errorf("Missing = %v, want [interlacer]", assetErr.Missing)
	}

	// The environment is created during the image build, so no build call
	// means no environment was created.
	if len(engine.buildCalls) != 0 {
		t.Errorf("build must not run with missing assets, got %d calls", len(engine.buildCalls))
	}
}

func TestStageBuilder_BuildApp_AssetEditChangesTag(t *testing.T) {
	t.Parallel()

	projectDir := projectFixture(t)
	engine := newMockEngine()
	builder := NewStageBuilder(engine, testBuilderConfig(t, projectDir))

	first, err := builder.BuildApp(context.Background(), appRecipeFixture())
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(projectDir, "tests", "test_utils.py"),
		[]byte("import sys; sys.exit(1)\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	second, err := builder.BuildApp(context.Background(), appRecipeFixture())
	if err != nil {
		t.Fatal(err)
	}

	if first.ImageTag == second.ImageTag {
		t.Error("editing an asset must invalidate the app image tag")
	}
}

func TestStageBuilder_BuildApp_ContextContainsAssetsAndDockerfile(t *testing.T) {
	t.Parallel()

	// Capture the context contents before cleanup removes the temp dir.
	var seen []string
	captured := &capturingEngine{mockEngine: newMockEngine(), onBuild: func(opts container.BuildOptions) {
		entries, _ := os.ReadDir(opts.ContextDir.String())
		for _, e := range entries {
			seen = append(seen, e.Name())
		}
	}}

	if _, err := NewStageBuilder(captured, testBuilderConfig(t, projectFixture(t))).
		BuildApp(context.Background(), appRecipeFixture()); err != nil {
		t.Fatalf("BuildApp() error = %v", err)
	}

	for _, want := range []string{"Dockerfile", "scripts", "interlacer", "tests", "requirements.txt"} {
		found := false
		for _, name := range seen {
			if name == want {
				found = true
			}
		}
		if !found {
			t.Errorf("build context missing %q: %v", want, seen)
		}
	}
}

// capturingEngine wraps mockEngine to observe the build context while it
// still exists.
type capturingEngine struct {
	*mockEngine
	onBuild func(container.BuildOptions)
}

func (c *capturingEngine) Build(ctx context.Context, opts container.BuildOptions) error {
	c.onBuild(opts)
	return c.mockEngine.Build(ctx, opts)
}

func TestStageBuilder_BuildBase_PropagatesBuildError(t *testing.T) {
	t.Parallel()

	engine := newMockEngine()
	engine.buildErr = errors.New("conda update failed")
	builder := NewStageBuilder(engine, testBuilderConfig(t, projectFixture(t)))

	_, err := builder.BuildBase(context.Background(), baseRecipeFixture())
	if err == nil || !strings.Contains(err.Error(), "conda update failed") {
		t.Fatalf("expected build error to propagate, got %v", err)
	}
}
