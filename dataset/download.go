package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-http-utils/headers"
	"github.com/schollz/progressbar/v3"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
	"github.com/YuminosukeSato/greentaxi/pkg/log"
)

const userAgent = "greentaxi-trainer"

// Downloader fetches trip files into the local cache.
type Downloader struct {
	client   *http.Client
	progress io.Writer
	logger   log.Logger
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c *http.Client) DownloaderOption {
	return func(d *Downloader) { d.client = c }
}

// WithProgress renders a byte progress bar on w.
func WithProgress(w io.Writer) DownloaderOption {
	return func(d *Downloader) { d.progress = w }
}

// WithLogger sets the logger; the process logger is used otherwise.
func WithLogger(l log.Logger) DownloaderOption {
	return func(d *Downloader) { d.logger = l }
}

// NewDownloader はオプションを適用した Downloader を返す
func NewDownloader(opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		client: http.DefaultClient,
		logger: log.GetLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// EnsureLocal returns the cached path of src, downloading it first when
// the file is absent. A failed download leaves no file behind.
func (d *Downloader) EnsureLocal(ctx context.Context, src Source) (string, error) {
	path := src.LocalPath()
	logger := d.logger.With(log.PathKey, path, log.URLKey, src.URL())

	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		logger.Debug("dataset already cached", log.BytesKey, info.Size())
		return path, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.Wrapf(err, "create data dir %s", filepath.Dir(path))
	}

	start := time.Now()
	n, err := d.fetch(ctx, src.URL(), path)
	if err != nil {
		logger.Error("dataset download failed", log.ErrorKey, err)
		return "", err
	}
	logger.Info("dataset downloaded",
		log.BytesKey, n,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return path, nil
}

func (d *Downloader) fetch(ctx context.Context, url, path string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, errors.NewDownloadError(url, 0, err)
	}
	req.Header.Set(headers.UserAgent, userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, errors.NewDownloadError(url, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, errors.NewDownloadError(url, resp.StatusCode, nil)
	}

	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, errors.Wrapf(err, "create %s", tmp)
	}

	var dst io.Writer = f
	if d.progress != nil {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(d.progress),
			progressbar.OptionSetDescription("downloading "+filepath.Base(path)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(d.progress) }),
		)
		defer bar.Finish()
		dst = io.MultiWriter(f, bar)
	}

	n, err := io.Copy(dst, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return n, errors.NewDownloadError(url, 0, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return n, errors.Wrapf(err, "rename %s", tmp)
	}
	return n, nil
}
