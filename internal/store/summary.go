package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Summarize concatenates every active task into one digest, each task under
// a "# <name>" header, in List order. It fails with ErrNoTasks when there is
// nothing active.
func (s *Store) Summarize() (string, error) {
	names, err := s.List(Active)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", ErrNoTasks
	}
	blocks := make([]string, 0, len(names))
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(s.Dir(Active), name))
		if err != nil {
			return "", fmt.Errorf("read %s: %w", name, err)
		}
		block := "# " + name
		if body := strings.TrimSpace(string(b)); body != "" {
			block += "\n\n" + body
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n\n") + "\n", nil
}
