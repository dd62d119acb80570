package artifact

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/go-http-utils/headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/YuminosukeSato/greentaxi/tracking/rest"
)

// objects is an in-memory bucket shared by the fake servers.
type objects struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newObjects() *objects { return &objects{data: map[string][]byte{}} }

func (o *objects) put(key string, b []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.data[key] = b
}

func (o *objects) get(key string) ([]byte, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	b, ok := o.data[key]
	return b, ok
}

func (o *objects) keys(prefix string) []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var keys []string
	for k := range o.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// proxyServer fakes the mlflow-artifacts endpoints of a tracking server.
func proxyServer(t *testing.T, store *objects) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get(headers.Authorization))

		if r.URL.Path == proxyPrefix {
			dir := r.URL.Query().Get("path")
			seen := map[string]bool{}
			listing := proxyListing{Files: []proxyFile{}}
			for _, k := range store.keys(dir + "/") {
				rest := strings.TrimPrefix(k, dir+"/")
				name, _, isDir := strings.Cut(rest, "/")
				if seen[name] {
					continue
				}
				seen[name] = true
				listing.Files = append(listing.Files, proxyFile{Path: name, IsDir: isDir})
			}
			if len(listing.Files) == 0 {
				_, _ = w.Write([]byte(`{}`))
				return
			}
			_ = json.NewEncoder(w).Encode(listing)
			return
		}

		key := strings.TrimPrefix(r.URL.Path, proxyPrefix+"/")
		switch r.Method {
		case http.MethodPut:
			b, _ := io.ReadAll(r.Body)
			store.put(key, b)
			_, _ = w.Write([]byte(`{}`))
		case http.MethodGet:
			b, ok := store.get(key)
			if !ok {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			_, _ = w.Write(b)
		}
	}))
}

func TestProxyRepository(t *testing.T) {
	store := newObjects()
	srv := proxyServer(t, store)
	defer srv.Close()

	server := rest.New(srv.URL, rest.WithToken("tok"))
	repo, err := NewProxy(server, "mlflow-artifacts:/0/r1/artifacts")
	require.NoError(t, err)

	exerciseRepository(t, repo)
	_, ok := store.get("0/r1/artifacts/model/sub/x.txt")
	assert.True(t, ok)
}

func TestNewProxy_HostOverride(t *testing.T) {
	server := rest.New("https://tracking.example.com")
	repo, err := NewProxy(server, "mlflow-artifacts://artifacts.example.com:5000/0/r1/artifacts")
	require.NoError(t, err)
	ps := repo.(*objectRepository).store.(*proxyStore)
	assert.Equal(t, "https://artifacts.example.com:5000", ps.base)
	assert.Equal(t, "0/r1/artifacts", ps.root)

	_, err = NewProxy(server, "s3://bucket/x")
	assert.Error(t, err)
}

type s3Contents struct {
	Key  string `xml:"Key"`
	Size int    `xml:"Size"`
}

type s3Listing struct {
	XMLName     xml.Name     `xml:"ListBucketResult"`
	Name        string       `xml:"Name"`
	Prefix      string       `xml:"Prefix"`
	KeyCount    int          `xml:"KeyCount"`
	IsTruncated bool         `xml:"IsTruncated"`
	Contents    []s3Contents `xml:"Contents"`
}

// s3Server fakes the path-style S3 REST API for one bucket.
func s3Server(store *objects) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
		if bucket != "mlflow" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch {
		case r.Method == http.MethodGet && key == "":
			prefix := r.URL.Query().Get("prefix")
			out := s3Listing{Name: bucket, Prefix: prefix}
			for _, k := range store.keys(prefix) {
				b, _ := store.get(k)
				out.Contents = append(out.Contents, s3Contents{Key: k, Size: len(b)})
			}
			out.KeyCount = len(out.Contents)
			w.Header().Set(headers.ContentType, "application/xml")
			_ = xml.NewEncoder(w).Encode(out)
		case r.Method == http.MethodPut:
			b, _ := io.ReadAll(r.Body)
			store.put(key, b)
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodGet:
			b, ok := store.get(key)
			if !ok {
				w.Header().Set(headers.ContentType, "application/xml")
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprintf(w, `<Error><Code>NoSuchKey</Code><Message>missing</Message><Key>%s</Key></Error>`, key)
				return
			}
			_, _ = w.Write(b)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
}

func TestS3Repository(t *testing.T) {
	store := newObjects()
	srv := s3Server(store)
	defer srv.Close()

	repo, err := NewS3("s3://mlflow/1/r1/artifacts", S3Config{
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		AccessKey: "minio",
		SecretKey: "minio123",
	})
	require.NoError(t, err)

	exerciseRepository(t, repo)
	b, ok := store.get("1/r1/artifacts/model/MLmodel")
	require.True(t, ok)
	assert.Equal(t, modelTree["MLmodel"], string(b))
}

// gcsServer fakes the Cloud Storage JSON API endpoints used by gcsStore.
func gcsServer(t *testing.T, store *objects) *httptest.Server {
	const objectsPath = "/b/mlflow/o"
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headers.ContentType, "application/json")
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, objectsPath):
			_, params, err := mime.ParseMediaType(r.Header.Get(headers.ContentType))
			require.NoError(t, err)
			mr := multipart.NewReader(r.Body, params["boundary"])
			meta, err := mr.NextPart()
			require.NoError(t, err)
			var obj struct {
				Name string `json:"name"`
			}
			require.NoError(t, json.NewDecoder(meta).Decode(&obj))
			media, err := mr.NextPart()
			require.NoError(t, err)
			b, _ := io.ReadAll(media)
			store.put(obj.Name, b)
			_ = json.NewEncoder(w).Encode(map[string]string{"bucket": "mlflow", "name": obj.Name})
		case strings.HasSuffix(r.URL.Path, objectsPath):
			items := []map[string]string{}
			for _, k := range store.keys(r.URL.Query().Get("prefix")) {
				items = append(items, map[string]string{"name": k})
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"kind": "storage#objects", "items": items})
		case strings.Contains(r.URL.Path, objectsPath+"/"):
			name := r.URL.Path[strings.Index(r.URL.Path, objectsPath+"/")+len(objectsPath)+1:]
			b, ok := store.get(name)
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"error":{"code":404,"message":"No such object"}}`))
				return
			}
			w.Header().Set(headers.ContentType, "application/octet-stream")
			_, _ = w.Write(b)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestGCSRepository(t *testing.T) {
	store := newObjects()
	srv := gcsServer(t, store)
	defer srv.Close()

	repo, err := NewGCS(context.Background(), "gs://mlflow/2/r9/artifacts",
		option.WithEndpoint(srv.URL+"/storage/v1/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)

	exerciseRepository(t, repo)
	_, ok := store.get(path.Join("2/r9/artifacts", "plots", "prediction_vs_actual.png"))
	assert.True(t, ok)
}
