package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seenRequest struct {
	method        string
	contentLength int64
	contentType   string
	body          string
}

func newStoreServer(t *testing.T, h func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, chan seenRequest) {
	t.Helper()
	seen := make(chan seenRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seen <- seenRequest{
			method:        r.Method,
			contentLength: r.ContentLength,
			contentType:   r.Header.Get("Content-Type"),
			body:          string(b),
		}
		h(w, r)
	}))
	t.Cleanup(func() {
		srv.Client().CloseIdleConnections()
		srv.Close()
	})
	return srv, seen
}

func TestHTTPTransportPut(t *testing.T) {
	srv, seen := newStoreServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"abc"`)
	})
	tr := &HTTPTransport{Client: srv.Client()}

	etag, err := tr.Put(context.Background(), Transfer{
		URL:         srv.URL + "/media/a.png",
		ContentType: "image/png",
		Body:        strings.NewReader("hello"),
		Size:        5,
	})
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, etag)

	got := <-seen
	assert.Equal(t, http.MethodPut, got.method)
	assert.Equal(t, int64(5), got.contentLength)
	assert.Equal(t, "image/png", got.contentType)
	assert.Equal(t, "hello", got.body)
}

func TestHTTPTransportNoContentType(t *testing.T) {
	srv, seen := newStoreServer(t, func(w http.ResponseWriter, r *http.Request) {})
	tr := &HTTPTransport{Client: srv.Client()}

	etag, err := tr.Put(context.Background(), Transfer{URL: srv.URL, Body: strings.NewReader(""), Size: 0})
	require.NoError(t, err)
	assert.Empty(t, etag)

	got := <-seen
	assert.Empty(t, got.contentType)
	assert.Zero(t, got.contentLength)
}

func TestHTTPTransportStatusError(t *testing.T) {
	srv, _ := newStoreServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "<Error><Code>AccessDenied</Code></Error>", http.StatusForbidden)
	})
	tr := &HTTPTransport{Client: srv.Client()}

	_, err := tr.Put(context.Background(), Transfer{URL: srv.URL, Body: strings.NewReader("x"), Size: 1})

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
	assert.Contains(t, se.Body, "AccessDenied")
	assert.Contains(t, err.Error(), "403 Forbidden")
}
