package artifact

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/go-http-utils/headers"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
)

const proxyPrefix = "/api/2.0/mlflow-artifacts/artifacts"

// Server is the tracking server an mlflow-artifacts URI is served by.
// *rest.Client satisfies it.
type Server interface {
	BaseURL() string
	HTTPClient() *http.Client
	Authorize(req *http.Request)
}

// proxyStore talks to the artifact proxy of an MLflow tracking server.
type proxyStore struct {
	server Server
	base   string
	root   string
}

type proxyFile struct {
	Path     string `json:"path"`
	IsDir    bool   `json:"is_dir"`
	FileSize int64  `json:"file_size"`
}

type proxyListing struct {
	Files []proxyFile `json:"files"`
}

func (s *proxyStore) uri() string { return "mlflow-artifacts:/" + s.root }

func (s *proxyStore) endpoint(key string) string {
	return s.base + proxyPrefix + "/" + (&url.URL{Path: joinKey(s.root, key)}).EscapedPath()
}

func (s *proxyStore) send(req *http.Request) (*http.Response, error) {
	s.server.Authorize(req)
	resp, err := s.server.HTTPClient().Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		code := ""
		if resp.StatusCode == http.StatusNotFound {
			code = errors.CodeResourceDoesNotExist
		}
		return nil, errors.NewRegistryError("mlflow-artifacts", resp.StatusCode, code, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

func (s *proxyStore) put(ctx context.Context, key string, f *os.File) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.endpoint(key), f)
	if err != nil {
		return err
	}
	req.Header.Set(headers.ContentType, "application/octet-stream")
	resp, err := s.send(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (s *proxyStore) get(ctx context.Context, key string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint(key), nil)
	if err != nil {
		return err
	}
	resp, err := s.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(w, resp.Body)
	return err
}

func (s *proxyStore) list(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	if err := s.walk(ctx, strings.TrimSuffix(prefix, "/"), &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// walk lists dir on the server and descends into subdirectories. Entry
// paths come back relative to the listed directory.
func (s *proxyStore) walk(ctx context.Context, dir string, keys *[]string) error {
	q := url.Values{}
	if full := joinKey(s.root, dir); full != "" {
		q.Set("path", full)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+proxyPrefix+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set(headers.Accept, "application/json")
	resp, err := s.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var listing proxyListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return errors.Wrap(err, "decode artifact listing")
	}
	for _, f := range listing.Files {
		key := joinKey(dir, path.Base(f.Path))
		if f.IsDir {
			if err := s.walk(ctx, key, keys); err != nil {
				return err
			}
			continue
		}
		*keys = append(*keys, key)
	}
	return nil
}

// NewProxy returns a Repository for an mlflow-artifacts URI. A URI with a
// host (mlflow-artifacts://host:port/path) overrides the server address.
func NewProxy(server Server, artifactURI string) (Repository, error) {
	u, err := url.Parse(artifactURI)
	if err != nil || u.Scheme != "mlflow-artifacts" {
		return nil, errors.NewValidationError("artifact_uri", "not an mlflow-artifacts URI", artifactURI)
	}
	if server == nil {
		return nil, errors.NewValidationError("artifact_uri", "mlflow-artifacts requires an HTTP tracking server", artifactURI)
	}
	base := server.BaseURL()
	if u.Host != "" {
		scheme := "http"
		if strings.HasPrefix(base, "https://") {
			scheme = "https"
		}
		base = scheme + "://" + u.Host
	}
	return newRepository(&proxyStore{
		server: server,
		base:   strings.TrimRight(base, "/"),
		root:   cleanKey(u.Path),
	}, nil), nil
}
