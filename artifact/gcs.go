package artifact

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
)

// gcsStore keeps artifacts in a Google Cloud Storage bucket through the
// JSON API.
type gcsStore struct {
	service *storage.Service
	bucket  string
	prefix  string
}

func (s *gcsStore) uri() string { return "gs://" + s.bucket + "/" + s.prefix }

func (s *gcsStore) object(key string) string { return joinKey(s.prefix, key) }

func (s *gcsStore) put(ctx context.Context, key string, f *os.File) error {
	_, err := s.service.Objects.Insert(s.bucket, &storage.Object{Name: s.object(key)}).
		Media(f).
		Context(ctx).
		Do()
	return err
}

func (s *gcsStore) get(ctx context.Context, key string, w io.Writer) error {
	resp, err := s.service.Objects.Get(s.bucket, s.object(key)).Context(ctx).Download()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return notFound(s.object(key))
		}
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(w, resp.Body)
	return err
}

func (s *gcsStore) list(ctx context.Context, prefix string) ([]string, error) {
	full := s.object(prefix)
	if full != "" {
		full += "/"
	}

	var keys []string
	err := s.service.Objects.List(s.bucket).Prefix(full).Pages(ctx, func(objs *storage.Objects) error {
		for _, o := range objs.Items {
			if strings.HasSuffix(o.Name, "/") {
				continue
			}
			keys = append(keys, relativeKey(s.prefix, o.Name))
		}
		return nil
	})
	return keys, err
}

// relativeKey strips the repository prefix from an object name.
func relativeKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return strings.TrimPrefix(name, prefix+"/")
}

// GCSOption configures the storage service.
type GCSOption = option.ClientOption

// NewGCS returns a Repository for a gs://bucket/prefix URI. Credentials
// come from opts or from GOOGLE_APPLICATION_CREDENTIALS.
func NewGCS(ctx context.Context, artifactURI string, opts ...GCSOption) (Repository, error) {
	bucket, prefix, err := splitBucketURI(artifactURI, "gs")
	if err != nil {
		return nil, err
	}
	service, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create storage service")
	}
	return newRepository(&gcsStore{service: service, bucket: bucket, prefix: prefix}, nil), nil
}

// splitBucketURI splits scheme://bucket/prefix.
func splitBucketURI(uri, scheme string) (bucket, prefix string, err error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != scheme || u.Host == "" {
		return "", "", errors.NewValidationError("artifact_uri", "expected "+scheme+"://bucket/prefix", uri)
	}
	return u.Host, cleanKey(u.Path), nil
}
