package artifact

import (
	"context"
	"net/url"
	"strings"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
	"github.com/YuminosukeSato/greentaxi/pkg/log"
	"github.com/YuminosukeSato/greentaxi/tracking"
)

// Resolver opens the Repository behind an artifact URI.
type Resolver struct {
	client  tracking.Client
	server  Server
	gcsOpts []GCSOption
	s3      S3Config
	logger  log.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithServer enables mlflow-artifacts URIs.
func WithServer(s Server) ResolverOption {
	return func(r *Resolver) { r.server = s }
}

// WithGCSOptions passes client options to the storage service.
func WithGCSOptions(opts ...GCSOption) ResolverOption {
	return func(r *Resolver) { r.gcsOpts = append(r.gcsOpts, opts...) }
}

// WithS3Config sets the S3 endpoint and credentials.
func WithS3Config(cfg S3Config) ResolverOption {
	return func(r *Resolver) { r.s3 = cfg }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver returns a Resolver. client resolves runs:/ URIs.
func NewResolver(client tracking.Client, opts ...ResolverOption) *Resolver {
	r := &Resolver{client: client, logger: log.GetLogger()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open returns a Repository rooted at uri.
func (r *Resolver) Open(ctx context.Context, uri string) (Repository, error) {
	if strings.HasPrefix(uri, "runs:/") {
		root, err := r.runArtifactURI(ctx, uri)
		if err != nil {
			return nil, err
		}
		uri = root
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, errors.NewValidationError("artifact_uri", "malformed URI", uri)
	}
	r.logger.Debug("opening artifact repository", log.URLKey, uri)

	switch u.Scheme {
	case "", "file":
		p := u.Path
		if u.Scheme == "" {
			p = uri
		}
		return newRepository(&localStore{root: p}, r.logger), nil
	case "mlflow-artifacts":
		repo, err := NewProxy(r.server, uri)
		if err != nil {
			return nil, err
		}
		repo.(*objectRepository).logger = r.logger
		return repo, nil
	case "gs":
		return NewGCS(ctx, uri, r.gcsOpts...)
	case "s3":
		return NewS3(uri, r.s3)
	default:
		return nil, errors.NewValidationError("artifact_uri", "unsupported scheme "+u.Scheme, uri)
	}
}

// runArtifactURI maps runs:/{id}/{path} to the run's artifact root joined
// with path.
func (r *Resolver) runArtifactURI(ctx context.Context, uri string) (string, error) {
	runID, p, err := tracking.ParseRunsURI(uri)
	if err != nil {
		return "", err
	}
	if r.client == nil {
		return "", errors.NewValidationError("artifact_uri", "runs:/ URIs need a tracking client", uri)
	}
	run, err := r.client.GetRun(ctx, runID)
	if err != nil {
		return "", err
	}
	root := strings.TrimRight(run.ArtifactURI, "/")
	if p == "" {
		return root, nil
	}
	return root + "/" + strings.Trim(p, "/"), nil
}
