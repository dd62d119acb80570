package artifact

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
)

// localStore keeps artifacts in a directory, as the file tracking backend
// lays them out.
type localStore struct {
	root string
}

func (s *localStore) uri() string { return "file://" + filepath.ToSlash(s.root) }

func (s *localStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *localStore) put(_ context.Context, key string, f *os.File) error {
	dest := s.path(key)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, f); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (s *localStore) get(_ context.Context, key string, w io.Writer) error {
	f, err := os.Open(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return notFound(key)
	}
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

func (s *localStore) list(_ context.Context, prefix string) ([]string, error) {
	base := s.path(prefix)
	info, err := os.Stat(base)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var keys []string
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	return keys, err
}

// NewLocal returns a Repository rooted at a local directory.
func NewLocal(root string) Repository {
	return newRepository(&localStore{root: root}, nil)
}
