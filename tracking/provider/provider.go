// Package provider selects the tracking backend for a tracking URI and
// builds the matching artifact resolver.
package provider

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/api/option"

	"github.com/YuminosukeSato/greentaxi/artifact"
	"github.com/YuminosukeSato/greentaxi/pkg/errors"
	"github.com/YuminosukeSato/greentaxi/pkg/log"
	"github.com/YuminosukeSato/greentaxi/tracking"
	"github.com/YuminosukeSato/greentaxi/tracking/filestore"
	"github.com/YuminosukeSato/greentaxi/tracking/rest"
	"github.com/YuminosukeSato/greentaxi/tracking/sqlstore"
)

// Environment variables honored for the tracking server, as the MLflow
// client reads them.
const (
	EnvTrackingToken    = "MLFLOW_TRACKING_TOKEN"
	EnvTrackingUsername = "MLFLOW_TRACKING_USERNAME"
	EnvTrackingPassword = "MLFLOW_TRACKING_PASSWORD"
	EnvS3EndpointURL    = "MLFLOW_S3_ENDPOINT_URL"
	EnvCredentials      = "GOOGLE_APPLICATION_CREDENTIALS"
)

// Options describe how to reach the tracking backend and its artifacts.
type Options struct {
	TrackingURI string
	// ArtifactRoot is the default artifact location for database
	// backends. Defaults to ./mlruns.
	ArtifactRoot string

	Token    string
	Username string
	Password string

	// CredentialsFile is passed to the GCS client when set.
	CredentialsFile string
	S3              artifact.S3Config
}

// FromEnv fills unset credentials from the MLFLOW_* environment.
func (o Options) FromEnv() Options {
	if o.Token == "" {
		o.Token = os.Getenv(EnvTrackingToken)
	}
	if o.Username == "" {
		o.Username = os.Getenv(EnvTrackingUsername)
	}
	if o.Password == "" {
		o.Password = os.Getenv(EnvTrackingPassword)
	}
	if o.S3.Endpoint == "" {
		o.S3.Endpoint = os.Getenv(EnvS3EndpointURL)
	}
	if o.CredentialsFile == "" {
		o.CredentialsFile = os.Getenv(EnvCredentials)
	}
	return o
}

// Backend is an opened tracking client with its artifact resolver.
type Backend struct {
	Client    tracking.Client
	Artifacts *artifact.Resolver
	Kind      string
}

// Backend kinds.
const (
	KindREST = "rest"
	KindFile = "file"
	KindSQL  = "sql"
)

// Kind reports which backend serves uri.
func Kind(uri string) (string, error) {
	if uri == "" {
		return KindFile, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", errors.NewValidationError("tracking.uri", "malformed URI", uri)
	}
	scheme, _, _ := strings.Cut(u.Scheme, "+")
	switch scheme {
	case "http", "https":
		return KindREST, nil
	case "", "file":
		return KindFile, nil
	case "postgres", "postgresql", "mysql":
		return KindSQL, nil
	}
	// Windows drive letters parse as a one-letter scheme.
	if len(u.Scheme) == 1 && filepath.VolumeName(uri) != "" {
		return KindFile, nil
	}
	return "", errors.NewValidationError("tracking.uri", "unsupported scheme "+u.Scheme, uri)
}

// Open connects to the backend named by opts.TrackingURI. An empty URI
// means a file store in ./mlruns.
func Open(opts Options, logger log.Logger) (*Backend, error) {
	if logger == nil {
		logger = log.GetLogger()
	}
	kind, err := Kind(opts.TrackingURI)
	if err != nil {
		return nil, err
	}

	var (
		client   tracking.Client
		resolver []artifact.ResolverOption
	)
	switch kind {
	case KindREST:
		restOpts := []rest.Option{rest.WithLogger(logger)}
		if opts.Token != "" {
			restOpts = append(restOpts, rest.WithToken(opts.Token))
		} else if opts.Username != "" {
			restOpts = append(restOpts, rest.WithBasicAuth(opts.Username, opts.Password))
		}
		rc := rest.New(opts.TrackingURI, restOpts...)
		client = rc
		resolver = append(resolver, artifact.WithServer(rc))
	case KindFile:
		root := opts.TrackingURI
		if root == "" {
			root = "mlruns"
		}
		client, err = filestore.New(root, logger)
	case KindSQL:
		root := opts.ArtifactRoot
		if root == "" {
			root = "./mlruns"
		}
		client, err = sqlstore.Open(opts.TrackingURI, root, logger)
	}
	if err != nil {
		return nil, err
	}

	if opts.CredentialsFile != "" {
		resolver = append(resolver, artifact.WithGCSOptions(option.WithCredentialsFile(opts.CredentialsFile)))
	}
	resolver = append(resolver, artifact.WithS3Config(opts.S3), artifact.WithLogger(logger))

	logger.Info("tracking backend opened", log.ComponentKey, kind, log.URLKey, redact(opts.TrackingURI))
	return &Backend{
		Client:    client,
		Artifacts: artifact.NewResolver(client, resolver...),
		Kind:      kind,
	}, nil
}

// redact hides the password of a URI for logging.
func redact(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.User == nil {
		return uri
	}
	return u.Redacted()
}
