package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-http-utils/headers"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
)

const (
	// SidecarPath is the Evidently dataset endpoint for green taxi rides.
	SidecarPath = "/iterate/green_taxi_data"

	mimeJSON = "application/json"
)

// HTTPForwarder posts events to the Evidently monitoring service.
type HTTPForwarder struct {
	url    string
	client *http.Client
}

// NewHTTPForwarder returns a forwarder for the sidecar at baseURL. Each
// forward is bounded by timeout.
func NewHTTPForwarder(baseURL string, timeout time.Duration) *HTTPForwarder {
	return &HTTPForwarder{
		url:    strings.TrimRight(baseURL, "/") + SidecarPath,
		client: &http.Client{Timeout: timeout},
	}
}

func (h *HTTPForwarder) Name() string { return "evidently" }

// URL is the endpoint events are posted to.
func (h *HTTPForwarder) URL() string { return h.url }

func (h *HTTPForwarder) Forward(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.WithStack(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set(headers.ContentType, mimeJSON)

	resp, err := h.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "post %s", h.url)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return errors.Newf("post %s: unexpected status %d", h.url, resp.StatusCode)
	}
	return nil
}
