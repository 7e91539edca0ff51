// Package client talks to the mediavault signing server.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/gostones/mediavault/internal/types"
	"github.com/gostones/mediavault/internal/upload"
)

var _ upload.Authorizer = (*Client)(nil)

// APIError is a non-2xx answer from the server. Message is the server's
// message, or a generic one when the body carried none.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

type Client struct {
	c *resty.Client
}

type Option func(*resty.Client)

func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

func New(baseURL string, opts ...Option) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")
	for _, opt := range opts {
		opt(c)
	}
	return &Client{c: c}
}

func (c *Client) call(ctx context.Context, method, path string, body, result any, fallback string) error {
	req := c.c.R().
		SetContext(ctx).
		SetError(&types.ErrorResponse{})
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		msg := fallback
		if e, ok := resp.Error().(*types.ErrorResponse); ok && e.Message != "" {
			msg = e.Message
		}
		return &APIError{StatusCode: resp.StatusCode(), Message: msg}
	}
	return nil
}

func (c *Client) Presign(ctx context.Context, req types.PresignRequest) (*types.PresignResponse, error) {
	var out types.PresignResponse
	if err := c.call(ctx, http.MethodPost, "/api/media/presign", req, &out, "Failed to presign"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) InitMultipart(ctx context.Context, req types.MultipartInitRequest) (*types.MultipartInitResponse, error) {
	var out types.MultipartInitResponse
	if err := c.call(ctx, http.MethodPost, "/api/media/multipart/init", req, &out, "Failed to init multipart"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SignPart(ctx context.Context, req types.SignPartRequest) (*types.SignPartResponse, error) {
	var out types.SignPartResponse
	if err := c.call(ctx, http.MethodPost, "/api/media/multipart/sign-part", req, &out, "Failed to sign part"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CompleteMultipart(ctx context.Context, req types.CompleteRequest) error {
	return c.call(ctx, http.MethodPost, "/api/media/multipart/complete", req, &types.OKResponse{}, "Failed to complete multipart")
}

func (c *Client) AbortMultipart(ctx context.Context, req types.AbortRequest) error {
	return c.call(ctx, http.MethodPost, "/api/media/multipart/abort", req, &types.OKResponse{}, "Failed to abort multipart")
}

// List returns the stored media, newest first.
func (c *Client) List(ctx context.Context) ([]types.MediaFile, error) {
	var out []types.MediaFile
	if err := c.call(ctx, http.MethodGet, "/api/media/list", nil, &out, "Failed to list media"); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	path := "/api/media/delete?" + url.Values{"key": {key}}.Encode()
	return c.call(ctx, http.MethodDelete, path, nil, &types.OKResponse{}, "Failed to delete media")
}
