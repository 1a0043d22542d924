// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/MiXaiLL76/interlacer/internal/config"
)

var (
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialize configuration",
	}

	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Long: `Print the effective configuration (defaults merged with the config
file) as TOML.`,
		Args: cobra.NoArgs,
		RunE: runConfigShow,
	}

	configPathCmd = &cobra.Command{
		Use:   "path",
		Short: "Show which config file is in use",
		Args:  cobra.NoArgs,
		RunE:  runConfigPath,
	}

	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Write a starter interlacer.cue to the current directory",
		Args:  cobra.NoArgs,
		RunE:  runConfigInit,
	}
)

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
}

// configView is the TOML projection of the effective configuration.
type configView struct {
	BaseImage string   `toml:"base_image"`
	Channel   string   `toml:"channel"`
	Python    string   `toml:"python"`
	EnvName   string   `toml:"env_name"`
	Manifest  string   `toml:"manifest"`
	Workdir   string   `toml:"workdir"`
	Assets    []string `toml:"assets"`
	Entry     string   `toml:"entry"`
	Engine    string   `toml:"engine,omitempty"`
	Images    struct {
		Base string `toml:"base"`
		App  string `toml:"app"`
	} `toml:"images"`
	Build struct {
		ForceRebuild bool   `toml:"force_rebuild"`
		CacheDir     string `toml:"cache_dir,omitempty"`
		TagSuffix    string `toml:"tag_suffix,omitempty"`
	} `toml:"build"`
}

func newConfigView(cfg *config.Config) *configView {
	v := &configView{
		BaseImage: cfg.BaseImage,
		Channel:   cfg.Channel,
		Python:    cfg.Python.String(),
		EnvName:   cfg.EnvName.String(),
		Manifest:  cfg.Manifest,
		Workdir:   cfg.Workdir,
		Assets:    cfg.Assets,
		Entry:     cfg.Entry,
		Engine:    cfg.Engine.String(),
	}
	v.Images.Base = cfg.Images.Base.String()
	v.Images.App = cfg.Images.App.String()
	v.Build.ForceRebuild = cfg.Build.ForceRebuild
	v.Build.CacheDir = cfg.Build.CacheDir.String()
	v.Build.TagSuffix = cfg.Build.TagSuffix
	return v
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return err
	}

	data, err := toml.Marshal(newConfigView(cfg))
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	_, path, err := config.LoadWithPath(cmd.Context(), config.LoadOptions{ConfigFilePath: cfgFile})
	if err != nil {
		return err
	}
	if path == "" {
		fmt.Fprintln(cmd.OutOrStdout(), SubtitleStyle.Render("(built-in defaults, no config file found)"))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

// starterConfig is the template written by 'config init'.
const starterConfig = `// interlacer pipeline configuration
base_image: "continuumio/miniconda3:latest"
channel:    "conda-forge"
python:     "3.10"
env_name:   "interlacer"
manifest:   "requirements.txt"
workdir:    "/app"
assets: ["scripts", "interlacer", "tests/test_utils.py"]
entry: "tests/test_utils.py"
`

func runConfigInit(cmd *cobra.Command, _ []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	path := filepath.Join(cwd, config.ConfigFileName+".cue")

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	if err := os.WriteFile(path, []byte(starterConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("✓ created ")+CmdStyle.Render(path))
	return nil
}
