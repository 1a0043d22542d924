// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// LockfileName is the file written next to the build cache after a
// successful full build, recording what was produced and from what inputs.
const LockfileName = "interlacer.lock.toml"

type (
	// Lockfile records the outcome of a full two-stage build so that a
	// later run (or a human) can see exactly which images a given
	// configuration produced.
	Lockfile struct {
		GeneratedAt time.Time `toml:"generated_at"`
		Python      string    `toml:"python"`
		Channel     string    `toml:"channel"`
		Base        StageLock `toml:"base"`
		App         StageLock `toml:"app"`
	}

	// StageLock records one stage's produced image.
	StageLock struct {
		Image    string `toml:"image"`
		CacheKey string `toml:"cache_key"`
		Cached   bool   `toml:"cached"`
	}
)

// NewStageLock converts a StageResult into its lockfile form.
func NewStageLock(result *StageResult) StageLock {
	return StageLock{
		Image:    result.ImageTag.String(),
		CacheKey: result.CacheKey.String(),
		Cached:   result.Cached,
	}
}

// WriteLockfile marshals lf as TOML into dir/interlacer.lock.toml,
// creating dir if needed. It returns the written path.
func WriteLockfile(dir string, lf *Lockfile) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create lockfile directory: %w", err)
	}

	data, err := toml.Marshal(lf)
	if err != nil {
		return "", fmt.Errorf("failed to marshal lockfile: %w", err)
	}

	path := filepath.Join(dir, LockfileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write lockfile: %w", err)
	}
	return path, nil
}

// ReadLockfile parses the lockfile at dir/interlacer.lock.toml.
func ReadLockfile(dir string) (*Lockfile, error) {
	data, err := os.ReadFile(filepath.Join(dir, LockfileName))
	if err != nil {
		return nil, err
	}

	var lf Lockfile
	if err := toml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("failed to parse lockfile: %w", err)
	}
	return &lf, nil
}
