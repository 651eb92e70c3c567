package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputManager places the output files of each archive
type OutputManager struct {
	BaseOutputDir string
}

// NewOutputManager creates a new output manager. An empty base directory
// writes every output next to its archive.
func NewOutputManager(baseOutputDir string) *OutputManager {
	return &OutputManager{
		BaseOutputDir: baseOutputDir,
	}
}

// ArchiveStem is the archive file name without any extension:
// "runs/job.fea.json.gz" -> "job"
func ArchiveStem(path string) string {
	base := filepath.Base(path)
	if i := strings.Index(base, "."); i > 0 {
		return base[:i]
	}
	return base
}

// OutputPath returns "<dir>/<prefix>_<stem><ext>" for an archive, creating dir
func (om *OutputManager) OutputPath(archivePath, prefix, ext string) (string, error) {
	dir := om.BaseOutputDir
	if dir == "" {
		dir = filepath.Dir(archivePath)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	name := ArchiveStem(archivePath) + ext
	if prefix != "" {
		name = prefix + "_" + name
	}
	return filepath.Join(dir, name), nil
}
