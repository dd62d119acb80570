// Package artifact stores and fetches run artifacts (the logged model,
// report plots) under a run's artifact URI.
//
// The scheme of the URI selects the backend: a local directory, the MLflow
// tracking server's artifact proxy, Google Cloud Storage or S3. All
// backends share the same file-tree semantics, implemented once on top of
// a small object-store abstraction.
package artifact

//go:generate mockgen -destination mocks/artifact_mock.go -package mocks github.com/YuminosukeSato/greentaxi/artifact Repository

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
	"github.com/YuminosukeSato/greentaxi/pkg/log"
)

// Repository is a tree of artifacts rooted at one artifact URI.
type Repository interface {
	// Upload copies a local file or directory to artifactPath.
	Upload(ctx context.Context, localPath, artifactPath string) error

	// Download copies artifactPath (a file or a directory) into localDir
	// and returns the local path of the copy.
	Download(ctx context.Context, artifactPath, localDir string) (string, error)
}

// objectStore is the per-backend primitive set. Keys are slash separated
// and relative to the repository root.
type objectStore interface {
	put(ctx context.Context, key string, f *os.File) error
	get(ctx context.Context, key string, w io.Writer) error
	// list returns every file key below prefix, recursively.
	list(ctx context.Context, prefix string) ([]string, error)
	uri() string
}

type objectRepository struct {
	store  objectStore
	logger log.Logger
}

func newRepository(store objectStore, logger log.Logger) *objectRepository {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &objectRepository{store: store, logger: logger}
}

func cleanKey(p string) string {
	p = path.Clean("/" + filepath.ToSlash(p))
	return strings.TrimPrefix(p, "/")
}

func joinKey(elem ...string) string {
	return cleanKey(path.Join(elem...))
}

// Upload implements Repository.
func (r *objectRepository) Upload(ctx context.Context, localPath, artifactPath string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return errors.Wrapf(err, "artifact upload %s", localPath)
	}
	if !info.IsDir() {
		return r.putFile(ctx, localPath, joinKey(artifactPath, filepath.Base(localPath)))
	}

	return filepath.WalkDir(localPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localPath, p)
		if err != nil {
			return err
		}
		return r.putFile(ctx, p, joinKey(artifactPath, rel))
	})
}

func (r *objectRepository) putFile(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrapf(err, "artifact upload %s", localPath)
	}
	defer f.Close()

	if err := r.store.put(ctx, key, f); err != nil {
		return errors.WrapRegistryError("artifacts/upload", err)
	}
	r.logger.Debug("artifact uploaded", log.PathKey, key, log.URLKey, r.store.uri())
	return nil
}

// Download implements Repository.
func (r *objectRepository) Download(ctx context.Context, artifactPath, localDir string) (string, error) {
	prefix := cleanKey(artifactPath)
	dest := filepath.Join(localDir, filepath.FromSlash(prefix))

	dirPrefix := prefix
	if dirPrefix != "" {
		dirPrefix += "/"
	}
	keys, err := r.store.list(ctx, dirPrefix)
	if err != nil {
		return "", errors.WrapRegistryError("artifacts/list", err)
	}

	if len(keys) == 0 {
		if prefix == "" {
			return "", notFound(r.store.uri())
		}
		if err := r.getFile(ctx, prefix, dest); err != nil {
			return "", err
		}
		return dest, nil
	}

	for _, key := range keys {
		rel := strings.TrimPrefix(key, dirPrefix)
		if err := r.getFile(ctx, key, filepath.Join(dest, filepath.FromSlash(rel))); err != nil {
			return "", err
		}
	}
	return dest, nil
}

func (r *objectRepository) getFile(ctx context.Context, key, dest string) (err error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrapf(err, "artifact download %s", key)
	}
	f, err := os.Create(dest)
	if err != nil {
		return errors.Wrapf(err, "artifact download %s", key)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.WithStack(cerr)
		}
		if err != nil {
			_ = os.Remove(dest)
		}
	}()

	if err := r.store.get(ctx, key, f); err != nil {
		return errors.WrapRegistryError("artifacts/download", err)
	}
	return nil
}

func notFound(key string) error {
	return errors.NewRegistryError("artifacts/download", 404, errors.CodeResourceDoesNotExist,
		"artifact "+key+" not found")
}
