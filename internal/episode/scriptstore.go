package episode

import (
	"context"
	"os"
	"path/filepath"
)

// FSScriptStore reads and writes scripts under <root>/<name>/script.md,
// the layout reviewed episodes live in.
type FSScriptStore struct {
	root string
}

// NewFSScriptStore creates a store rooted at dir.
func NewFSScriptStore(dir string) *FSScriptStore {
	return &FSScriptStore{root: dir}
}

func (s *FSScriptStore) Script(ctx context.Context, name string) (string, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoScript
		}
		return "", err
	}
	return string(data), nil
}

func (s *FSScriptStore) SaveScript(ctx context.Context, name, script string) error {
	path := s.path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(script), 0o644)
}

func (s *FSScriptStore) path(name string) string {
	return filepath.Join(s.root, name, "script.md")
}
