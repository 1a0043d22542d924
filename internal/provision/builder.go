// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/opencontainers/go-digest"

	"github.com/MiXaiLL76/interlacer/internal/container"
)

// shortKeyLen is how many digest characters go into an image tag.
const shortKeyLen = 12

type (
	// StageResult contains the output of building one stage.
	StageResult struct {
		// ImageTag is the tag of the built (or cache-hit) image
		ImageTag container.ImageTag

		// CacheKey is the content digest the tag was derived from
		CacheKey digest.Digest

		// Cached reports whether an existing image was reused
		Cached bool

		// Dockerfile is the rendered stage recipe
		Dockerfile string
	}

	// StageBuilder builds stage images from recipes, caching them by
	// content digest. A base stage's digest covers its rendered recipe; an
	// app stage's digest additionally covers every copied asset, so editing
	// an asset invalidates the app image but not the base image.
	StageBuilder struct {
		engine container.Engine
		config *Config
		logger *log.Logger
	}
)

// NewStageBuilder creates a StageBuilder.
func NewStageBuilder(engine container.Engine, cfg *Config) *StageBuilder {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &StageBuilder{
		engine: engine,
		config: cfg,
		logger: log.Default(),
	}
}

// Config returns the builder's configuration.
func (b *StageBuilder) Config() *Config {
	return b.config
}

// BuildBase builds the base stage image, reusing a cached image when an
// identical recipe was built before.
func (b *StageBuilder) BuildBase(ctx context.Context, recipe *BaseRecipe) (*StageResult, error) {
	dockerfile, err := recipe.Render()
	if err != nil {
		return nil, err
	}

	cacheKey := digest.FromString(dockerfile)
	tag := b.stageTag(b.config.BaseRepo.String(), cacheKey)

	if cached, result := b.cachedResult(ctx, tag, cacheKey, dockerfile); cached {
		b.logger.Debug("base image cached", "tag", tag)
		return result, nil
	}

	if err := b.buildImage(ctx, dockerfile, tag, nil); err != nil {
		return nil, fmt.Errorf("base stage build failed: %w", err)
	}

	return &StageResult{ImageTag: tag, CacheKey: cacheKey, Dockerfile: dockerfile}, nil
}

// BuildApp builds the app stage image on top of a built base image.
// Every declared asset is verified to exist before any build work starts,
// so a missing asset aborts the stage before the named environment is
// created.
func (b *StageBuilder) BuildApp(ctx context.Context, recipe *AppRecipe) (*StageResult, error) {
	assets := recipe.Assets()
	if err := VerifyAssets(b.config.ProjectDir, assets); err != nil {
		return nil, err
	}

	dockerfile, err := recipe.Render()
	if err != nil {
		return nil, err
	}

	cacheKey, err := b.appCacheKey(dockerfile, assets)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate cache key: %w", err)
	}
	tag := b.stageTag(b.config.AppRepo.String(), cacheKey)

	if cached, result := b.cachedResult(ctx, tag, cacheKey, dockerfile); cached {
		b.logger.Debug("app image cached", "tag", tag)
		return result, nil
	}

	if err := b.buildImage(ctx, dockerfile, tag, assets); err != nil {
		return nil, fmt.Errorf("app stage build failed: %w", err)
	}

	return &StageResult{ImageTag: tag, CacheKey: cacheKey, Dockerfile: dockerfile}, nil
}

// BaseTag returns the tag the base stage would use without building it.
func (b *StageBuilder) BaseTag(recipe *BaseRecipe) (container.ImageTag, error) {
	dockerfile, err := recipe.Render()
	if err != nil {
		return "", err
	}
	return b.stageTag(b.config.BaseRepo.String(), digest.FromString(dockerfile)), nil
}

// StageTags returns the tags both stages would use without building them.
// Useful for cache inspection and cleanup.
func (b *StageBuilder) StageTags(baseRecipe *BaseRecipe, appRecipe *AppRecipe) (base, app container.ImageTag, err error) {
	baseDockerfile, err := baseRecipe.Render()
	if err != nil {
		return "", "", err
	}
	appDockerfile, err := appRecipe.Render()
	if err != nil {
		return "", "", err
	}
	appKey, err := b.appCacheKey(appDockerfile, appRecipe.Assets())
	if err != nil {
		return "", "", err
	}
	return b.stageTag(b.config.BaseRepo.String(), digest.FromString(baseDockerfile)),
		b.stageTag(b.config.AppRepo.String(), appKey),
		nil
}

// cachedResult checks for a previously built image under tag.
func (b *StageBuilder) cachedResult(ctx context.Context, tag container.ImageTag, key digest.Digest, dockerfile string) (bool, *StageResult) {
	if b.config.ForceRebuild {
		return false, nil
	}
	exists, _ := b.engine.ImageExists(ctx, tag) //nolint:errcheck // Error treated as "not found"
	if !exists {
		return false, nil
	}
	return true, &StageResult{ImageTag: tag, CacheKey: key, Cached: true, Dockerfile: dockerfile}
}

// appCacheKey digests the rendered recipe plus every asset's content so
// that asset edits produce a new app image.
func (b *StageBuilder) appCacheKey(dockerfile string, assets []string) (digest.Digest, error) {
	digester := digest.SHA256.Digester()
	fmt.Fprintf(digester.Hash(), "dockerfile:%s\n", dockerfile)
	for _, asset := range assets {
		hash, err := CalculatePathHash(filepath.Join(b.config.ProjectDir, asset))
		if err != nil {
			return "", fmt.Errorf("failed to hash asset %s: %w", asset, err)
		}
		fmt.Fprintf(digester.Hash(), "asset:%s:%s\n", asset, hash)
	}
	return digester.Digest(), nil
}

// stageTag constructs the image tag with optional suffix.
// When TagSuffix is set, the tag format is "<repo>:<hash>-<suffix>".
func (b *StageBuilder) stageTag(repo string, key digest.Digest) container.ImageTag {
	short := key.Encoded()[:shortKeyLen]
	if b.config.TagSuffix != "" {
		return container.ImageTag(fmt.Sprintf("%s:%s-%s", repo, short, b.config.TagSuffix))
	}
	return container.ImageTag(fmt.Sprintf("%s:%s", repo, short))
}

// buildImage materializes a build context and runs the engine build,
// retrying when the failure looks transient (registry or channel network
// errors happen routinely while conda resolves environments).
func (b *StageBuilder) buildImage(ctx context.Context, dockerfile string, tag container.ImageTag, assets []string) error {
	buildCtx, cleanup, err := b.prepareBuildContext(dockerfile, assets)
	if err != nil {
		return err
	}
	defer cleanup()

	attempts := b.config.BuildAttempts
	if attempts < 1 {
		attempts = 1
	}

	return container.RetryWithBackoff(ctx, attempts, 2*time.Second, func(attempt int) (bool, error) {
		if attempt > 0 {
			b.logger.Warn("retrying stage build", "tag", tag, "attempt", attempt+1)
		}
		buildErr := b.engine.Build(ctx, container.BuildOptions{
			ContextDir: container.HostFilesystemPath(buildCtx),
			Dockerfile: "Dockerfile",
			Tag:        tag,
			Stdout:     os.Stderr, // Show build progress on stderr
			Stderr:     os.Stderr,
		})
		return container.IsTransientError(buildErr), buildErr
	})
}

// prepareBuildContext creates a temporary directory holding the Dockerfile
// and a copy of every asset.
//
// Note: Docker installed via Snap has limited filesystem access. It cannot
// see /tmp or hidden directories like ~/.cache, but it CAN access visible
// directories in $HOME. The build context therefore lives under a visible
// home directory when one is available.
func (b *StageBuilder) prepareBuildContext(dockerfile string, assets []string) (buildContextDir string, cleanup func(), err error) {
	var parent string

	// Try HOME first, but verify it actually exists (handles misconfigured
	// environments and test harnesses that point HOME at a missing path)
	if home, homeErr := os.UserHomeDir(); homeErr == nil {
		if _, statErr := os.Stat(home); statErr == nil {
			parent = filepath.Join(home, "interlacer-build")
		}
	}

	if parent == "" {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			parent = filepath.Join(cwd, ".interlacer-build")
		} else {
			// Last resort: use system temp (may fail with Snap Docker)
			parent = filepath.Join(os.TempDir(), "interlacer-build")
		}
	}

	if mkdirErr := os.MkdirAll(parent, 0o755); mkdirErr != nil {
		return "", nil, fmt.Errorf("failed to create build context parent directory: %w", mkdirErr)
	}

	tmpDir, err := os.MkdirTemp(parent, "ctx-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	cleanup = func() {
		_ = os.RemoveAll(tmpDir) // Cleanup temp dir; error non-critical
	}

	for _, asset := range assets {
		src := filepath.Join(b.config.ProjectDir, asset)
		dst := filepath.Join(tmpDir, asset)
		if err := CopyPath(src, dst); err != nil {
			cleanup()
			return "", nil, fmt.Errorf("failed to copy asset %s: %w", asset, err)
		}
	}

	dockerfilePath := filepath.Join(tmpDir, "Dockerfile")
	if err := os.WriteFile(dockerfilePath, []byte(dockerfile), 0o644); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to write Dockerfile: %w", err)
	}

	return tmpDir, cleanup, nil
}
