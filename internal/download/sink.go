package download

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirSink writes payloads into a directory, creating it on first use.
type DirSink struct {
	dir string
}

// NewDirSink creates a sink rooted at dir.
func NewDirSink(dir string) *DirSink {
	return &DirSink{dir: dir}
}

// Save writes data to <dir>/<name>. The name is flattened to its base
// component so a crafted track title cannot escape the directory.
func (s *DirSink) Save(name string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == string(filepath.Separator) {
		return fmt.Errorf("invalid file name %q", name)
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
