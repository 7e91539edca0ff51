package upload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Transfer is one PUT of a payload to a presigned URL.
type Transfer struct {
	URL         string
	ContentType string
	Body        io.Reader
	Size        int64
}

// Transport sends a Transfer and returns the store's ETag header, which is
// empty when the store sent none.
type Transport interface {
	Put(ctx context.Context, t Transfer) (string, error)
}

// StatusError is a non-2xx answer from the object store.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("store responded %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("store responded %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// HTTPTransport PUTs payloads with an explicit Content-Length, which
// presigned URLs require.
type HTTPTransport struct {
	Client *http.Client
}

func (h *HTTPTransport) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return http.DefaultClient
}

func (h *HTTPTransport) Put(ctx context.Context, t Transfer) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.URL, t.Body)
	if err != nil {
		return "", err
	}
	req.ContentLength = t.Size
	if t.Size == 0 {
		req.Body = http.NoBody
	}
	if t.ContentType != "" {
		req.Header.Set("Content-Type", t.ContentType)
	}

	resp, err := h.client().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.Header.Get("ETag"), nil
}
