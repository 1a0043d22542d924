// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/MiXaiLL76/interlacer/internal/config"
	"github.com/MiXaiLL76/interlacer/internal/container"
	"github.com/MiXaiLL76/interlacer/internal/pipeline"
)

// StageSelect names which part of the pipeline to run.
type StageSelect string

const (
	// StageAll builds both stages and writes the lockfile.
	StageAll StageSelect = "all"
	// StageBase builds only the base environment image.
	StageBase StageSelect = "base"
	// StageApp builds the app image (the base stage still runs first; a
	// previously built base is a cache hit).
	StageApp StageSelect = "app"
)

type (
	// BuildOutput collects the results of a pipeline run.
	BuildOutput struct {
		Base         *StageResult
		App          *StageResult
		LockfilePath string
	}

	// BuildPlan describes what a run would build, without building it.
	BuildPlan struct {
		BaseTag        container.ImageTag
		BaseDockerfile string
		AppDockerfile  string
		EntryCommand   []string
		Assets         []string
	}

	// Orchestrator turns a pipeline configuration into recipes and drives
	// the staged build through a pipeline runner, so a failure names the
	// exact stage and step that broke.
	Orchestrator struct {
		builder *StageBuilder
		runner  *pipeline.Runner
		appCfg  *config.Config
		logger  *log.Logger
	}
)

// NewOrchestrator creates an Orchestrator for the given engine and pipeline
// configuration. Build behavior (repos, cache dir, force rebuild, tag
// suffix) is derived from cfg and can be overridden with options.
func NewOrchestrator(engine container.Engine, cfg *config.Config, opts ...Option) *Orchestrator {
	pcfg := DefaultConfig()
	if cfg.Images.Base != "" {
		pcfg.BaseRepo = cfg.Images.Base
	}
	if cfg.Images.App != "" {
		pcfg.AppRepo = cfg.Images.App
	}
	if cfg.Build.CacheDir != "" {
		pcfg.CacheDir = cfg.Build.CacheDir.String()
	}
	if cfg.Build.TagSuffix != "" {
		pcfg.TagSuffix = cfg.Build.TagSuffix
	}
	pcfg.ForceRebuild = cfg.Build.ForceRebuild
	pcfg.Apply(opts...)

	logger := log.Default()
	return &Orchestrator{
		builder: NewStageBuilder(engine, pcfg),
		runner:  pipeline.NewRunner(pipeline.WithLogger(logger)),
		appCfg:  cfg,
		logger:  logger,
	}
}

// Builder returns the underlying stage builder.
func (o *Orchestrator) Builder() *StageBuilder {
	return o.builder
}

// BaseRecipe composes the base stage recipe from the pipeline configuration.
// The interpreter pin comes from the single shared config value, the same
// one AppRecipe uses, so the two stages cannot request different versions.
func (o *Orchestrator) BaseRecipe() *BaseRecipe {
	return NewBaseRecipe(container.ImageTag(o.appCfg.BaseImage)).
		AddChannel(o.appCfg.Channel).
		SelfUpdate().
		UpdateAll().
		InstallPinned("python", o.appCfg.Python, o.appCfg.Channel)
}

// AppRecipe composes the app stage recipe on top of the given base image.
func (o *Orchestrator) AppRecipe(baseTag container.ImageTag) *AppRecipe {
	r := NewAppRecipe(baseTag).
		SetWorkingDirectory(o.appCfg.Workdir).
		CopyAssets(o.appCfg.Assets...).
		CreateNamedEnvironment(o.appCfg.EnvName, o.appCfg.Manifest, o.appCfg.Python)

	return r.
		PrependSearchPath(r.EnvironmentBinDir()).
		Activate(o.appCfg.EnvName).
		DeclareEntryCommand(r.InterpreterEntryCommand(o.appCfg.Entry)...)
}

// Run executes the selected part of the pipeline. The base stage always
// runs; when sel is StageBase the app stage is skipped. A full run records
// the produced images in the lockfile under the cache directory.
func (o *Orchestrator) Run(ctx context.Context, sel StageSelect) (*BuildOutput, error) {
	out := &BuildOutput{}
	baseRecipe := o.BaseRecipe()

	stages := []pipeline.Stage{{
		Name: "base",
		Steps: []pipeline.Step{
			{Name: "compose recipe", Run: func(ctx context.Context) error {
				_, err := baseRecipe.Render()
				return err
			}},
			{Name: "build image", Run: func(ctx context.Context) error {
				result, err := o.builder.BuildBase(ctx, baseRecipe)
				if err != nil {
					return err
				}
				out.Base = result
				return nil
			}},
		},
	}}

	if sel != StageBase {
		var appRecipe *AppRecipe
		stages = append(stages, pipeline.Stage{
			Name: "app",
			Steps: []pipeline.Step{
				{Name: "compose recipe", Run: func(ctx context.Context) error {
					appRecipe = o.AppRecipe(out.Base.ImageTag)
					_, err := appRecipe.Render()
					return err
				}},
				{Name: "verify assets", Run: func(ctx context.Context) error {
					return VerifyAssets(o.builder.Config().ProjectDir, appRecipe.Assets())
				}},
				{Name: "build image", Run: func(ctx context.Context) error {
					result, err := o.builder.BuildApp(ctx, appRecipe)
					if err != nil {
						return err
					}
					out.App = result
					return nil
				}},
				{Name: "write lockfile", Run: func(ctx context.Context) error {
					path, err := WriteLockfile(o.builder.Config().CacheDir, &Lockfile{
						GeneratedAt: time.Now().UTC(),
						Python:      o.appCfg.Python.String(),
						Channel:     o.appCfg.Channel,
						Base:        NewStageLock(out.Base),
						App:         NewStageLock(out.App),
					})
					if err != nil {
						return err
					}
					out.LockfilePath = path
					return nil
				}},
			},
		})
	}

	if err := o.runner.RunStages(ctx, stages...); err != nil {
		return nil, err
	}
	return out, nil
}

// Plan renders both stage recipes without building anything. The app image
// tag is omitted because it depends on asset contents that a dry run does
// not require to exist.
func (o *Orchestrator) Plan() (*BuildPlan, error) {
	baseRecipe := o.BaseRecipe()
	baseDockerfile, err := baseRecipe.Render()
	if err != nil {
		return nil, err
	}
	baseTag, err := o.builder.BaseTag(baseRecipe)
	if err != nil {
		return nil, err
	}

	appRecipe := o.AppRecipe(baseTag)
	appDockerfile, err := appRecipe.Render()
	if err != nil {
		return nil, err
	}

	return &BuildPlan{
		BaseTag:        baseTag,
		BaseDockerfile: baseDockerfile,
		AppDockerfile:  appDockerfile,
		EntryCommand:   appRecipe.InterpreterEntryCommand(o.appCfg.Entry),
		Assets:         appRecipe.Assets(),
	}, nil
}

// Clean removes the images the current configuration would produce plus the
// lockfile. Images built under other configurations are left alone.
func (o *Orchestrator) Clean(ctx context.Context, engine container.Engine) error {
	plan, err := o.Plan()
	if err != nil {
		return err
	}

	if lf, err := ReadLockfile(o.builder.Config().CacheDir); err == nil {
		for _, image := range []string{lf.App.Image, lf.Base.Image} {
			if rmErr := engine.RemoveImage(ctx, container.ImageTag(image), true); rmErr != nil {
				o.logger.Debug("image removal skipped", "image", image, "err", rmErr)
			}
		}
	}

	// The current base tag may differ from the lockfile's (config edited
	// since the last build); try it too.
	if rmErr := engine.RemoveImage(ctx, plan.BaseTag, true); rmErr != nil {
		o.logger.Debug("image removal skipped", "image", plan.BaseTag, "err", rmErr)
	}

	lockPath := o.builder.Config().CacheDir + "/" + LockfileName
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lockfile: %w", err)
	}
	return nil
}
