package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go-fea-pipeline/internal/errs"
	"go-fea-pipeline/internal/model"
)

// DefaultArchivePatterns match plain and compressed archive documents
var DefaultArchivePatterns = []string{"*.json", "*.json.gz"}

// DiscoverArchives expands the archive source of a run into a sorted list of
// files. Explicit paths may be globs; Root is walked recursively for files
// matching Pattern when no paths are given; files starting with
// skipPrefix (earlier exports) are ignored during the walk.
func DiscoverArchives(src model.ArchiveSource, skipPrefix string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, p := range src.Paths {
		if !strings.ContainsAny(p, "*?[") {
			if _, err := os.Stat(p); err != nil {
				return nil, fmt.Errorf("archive %s: %w", p, err)
			}
			add(p)
			continue
		}
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("%w: bad archive pattern %q: %v", errs.ErrInvalidConfig, p, err)
		}
		for _, m := range matches {
			add(m)
		}
	}

	if len(src.Paths) == 0 && src.Root != "" {
		patterns := DefaultArchivePatterns
		if src.Pattern != "" {
			patterns = []string{src.Pattern}
		}
		err := filepath.WalkDir(src.Root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || (skipPrefix != "" && strings.HasPrefix(d.Name(), skipPrefix)) {
				return nil
			}
			for _, pat := range patterns {
				if ok, _ := filepath.Match(pat, d.Name()); ok {
					add(path)
					break
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", src.Root, err)
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no archives found", errs.ErrInvalidConfig)
	}
	sort.Strings(out)
	return out, nil
}
