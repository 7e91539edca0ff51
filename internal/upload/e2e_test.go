package upload_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gostones/mediavault/internal/client"
	"github.com/gostones/mediavault/internal/config"
	"github.com/gostones/mediavault/internal/server"
	"github.com/gostones/mediavault/internal/store"
	"github.com/gostones/mediavault/internal/types"
	"github.com/gostones/mediavault/internal/upload"
)

type stack struct {
	srv    *httptest.Server
	mem    *store.MemoryStore
	client *client.Client
}

func newStack(t *testing.T, serverMultipart bool) *stack {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewUnstartedServer(mux)
	base := "http://" + srv.Listener.Addr().String() + "/objects"

	mem := store.NewMemoryStore(base, time.Minute, time.Minute)
	cfg := &config.Config{
		PublicBaseURL:   base,
		ObjectPrefix:    "media/",
		MaxFileSize:     1 << 20,
		ServerMultipart: serverMultipart,
	}
	api := server.New(cfg, mem, zerolog.Nop(), prometheus.NewRegistry())

	mux.Handle("/objects/", http.StripPrefix("/objects", mem.Handler()))
	mux.Handle("/", api.Router())
	srv.Start()
	t.Cleanup(func() {
		srv.Client().CloseIdleConnections()
		srv.Close()
	})

	return &stack{srv: srv, mem: mem, client: client.New(srv.URL)}
}

func (s *stack) uploader() *upload.Uploader {
	return upload.New(s.client, upload.Limits{
		MaxFileSize:      1 << 20,
		ChunkThreshold:   4 << 10,
		MaxFilesPerBatch: 5,
		ChunkSize:        1 << 10,
		ChunkingEnabled:  true,
	}, upload.WithTransport(&upload.HTTPTransport{Client: s.srv.Client()}))
}

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 7)
	}
	return b
}

func source(name string, data []byte) upload.Source {
	return upload.Source{Name: name, ContentType: "image/png", Size: int64(len(data)), Data: bytes.NewReader(data)}
}

func TestUploadEndToEnd(t *testing.T) {
	s := newStack(t, true)
	u := s.uploader()

	small := payload(3000)
	large := payload(5000)

	items, err := u.Submit(context.Background(), []upload.Source{
		source("small.png", small),
		source("large.png", large),
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.False(t, items[0].UsesChunking)
	assert.True(t, items[1].UsesChunking)
	u.Wait()

	for i, want := range [][]byte{small, large} {
		it, ok := u.Registry().Get(items[i].ID)
		require.True(t, ok)
		require.Equal(t, upload.StatusCompleted, it.Status, it.Error)

		stored, ok := s.mem.Object(it.Result.Key)
		require.True(t, ok)
		assert.Equal(t, want, stored)

		resp, err := s.srv.Client().Get(it.Result.URL)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, want, body)
	}
	assert.Zero(t, s.mem.Sessions())

	files, err := s.client.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, files, 2)

	err = s.client.Delete(context.Background(), "other/"+files[0].Key)
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Invalid key", apiErr.Message)

	require.NoError(t, s.client.Delete(context.Background(), files[0].Key))
	files, err = s.client.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestUploadMultipartDisabledOnServer(t *testing.T) {
	s := newStack(t, false)
	u := s.uploader()

	items, err := u.Submit(context.Background(), []upload.Source{source("large.png", payload(5000))})
	require.NoError(t, err)
	u.Wait()

	it, _ := u.Registry().Get(items[0].ID)
	assert.Equal(t, upload.StatusError, it.Status)
	assert.Contains(t, it.Error, "Multipart upload is disabled")
	assert.Zero(t, s.mem.Sessions())
}

func TestAbortLeftoverSession(t *testing.T) {
	s := newStack(t, true)
	ctx := context.Background()

	started, err := s.client.InitMultipart(ctx, types.MultipartInitRequest{FileName: "left.png", FileType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, 1, s.mem.Sessions())

	require.NoError(t, s.client.AbortMultipart(ctx, types.AbortRequest{Key: started.Key, UploadID: started.UploadID}))
	assert.Zero(t, s.mem.Sessions())

	err = s.client.AbortMultipart(ctx, types.AbortRequest{Key: started.Key, UploadID: started.UploadID})
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}
