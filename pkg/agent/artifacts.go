package agent

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/devicelab-dev/qa-pilot/pkg/logger"
	"github.com/devicelab-dev/qa-pilot/pkg/vision"
)

// Artifacts writes debug overlays for one run. A nil *Artifacts or an
// empty directory disables writing.
type Artifacts struct {
	dir string
}

// NewArtifacts creates a sink writing under dir.
func NewArtifacts(dir string) *Artifacts {
	return &Artifacts{dir: dir}
}

// Dir returns the output directory.
func (a *Artifacts) Dir() string {
	if a == nil {
		return ""
	}
	return a.dir
}

func (a *Artifacts) enabled() bool {
	return a != nil && a.dir != ""
}

// SaveGrid stores a grid overlay as <name>_grid.png.
func (a *Artifacts) SaveGrid(name string, grid []byte) string {
	return a.write(name+"_grid.png", grid)
}

// SaveTap renders and stores tap_<n>.png.
func (a *Artifacts) SaveTap(screenshot []byte, mark vision.TapMark) string {
	if !a.enabled() {
		return ""
	}
	overlay, err := vision.TapOverlay(screenshot, mark)
	if err != nil {
		logger.Warn("failed to render tap overlay #%d: %v", mark.Index, err)
		return ""
	}
	return a.write(fmt.Sprintf("tap_%d.png", mark.Index), overlay)
}

func (a *Artifacts) write(name string, data []byte) string {
	if !a.enabled() {
		return ""
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		logger.Warn("failed to create artifact dir %s: %v", a.dir, err)
		return ""
	}
	path := filepath.Join(a.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logger.Warn("failed to write artifact %s: %v", path, err)
		return ""
	}
	logger.Debug("saved artifact %s", path)
	return path
}
