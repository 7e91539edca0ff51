// Package store defines the object-store operations the signing server relies
// on, and the implementations backing them.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/gostones/mediavault/internal/types"
)

// Operation is a store operation a presigned URL can authorize.
type Operation string

const (
	OpPutObject  Operation = "put-object"
	OpUploadPart Operation = "upload-part"
)

var (
	ErrKeyOutsidePrefix = errors.New("key is outside the configured prefix")
	ErrNoSuchUpload     = errors.New("no such multipart upload")
	ErrInvalidPart      = errors.New("invalid multipart part list")
	ErrSignature        = errors.New("invalid or expired signature")
	ErrNotFound         = errors.New("object not found")
)

// Scope narrows an authorization. ContentType applies to OpPutObject,
// SessionToken and PartNumber to OpUploadPart.
type Scope struct {
	ContentType  string
	SessionToken string
	PartNumber   int
}

// Authorization is a time-limited URL allowing one operation.
type Authorization struct {
	URL       string
	ExpiresIn time.Duration
}

type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore is the remote collaborator: it signs single and per-part
// uploads, manages multipart sessions, lists and deletes objects.
type ObjectStore interface {
	Authorize(ctx context.Context, key string, op Operation, scope Scope) (*Authorization, error)
	InitiateSession(ctx context.Context, key, contentType string) (string, error)
	FinalizeSession(ctx context.Context, key, sessionToken string, parts []types.CompletePart) error
	AbortSession(ctx context.Context, key, sessionToken string) error
	ListObjects(ctx context.Context, prefix string) ([]Object, error)
	DeleteObject(ctx context.Context, key string) error
}
