package upload

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

var (
	ErrNotImage      = errors.New("only image files are allowed")
	ErrTooLarge      = errors.New("file exceeds the maximum size")
	ErrBatchTooLarge = errors.New("too many files in one batch")
)

// Limits are the caller supplied thresholds for admission and strategy.
type Limits struct {
	MaxFileSize      int64
	ChunkThreshold   int64
	MaxFilesPerBatch int
	ChunkSize        int64
	ChunkingEnabled  bool
}

// Candidate describes a file offered for upload.
type Candidate struct {
	Name        string
	ContentType string
	Size        int64
}

type Decision struct {
	UsesChunking bool
}

func IsImage(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "image/")
}

// Classify admits or rejects c and fixes its upload strategy.
func Classify(c Candidate, l Limits) (Decision, error) {
	if !IsImage(c.ContentType) {
		return Decision{}, fmt.Errorf("%s (%s): %w", c.Name, c.ContentType, ErrNotImage)
	}
	if c.Size > l.MaxFileSize && !l.ChunkingEnabled {
		return Decision{}, fmt.Errorf("%s is %s, limit %s: %w",
			c.Name, humanize.IBytes(uint64(c.Size)), humanize.IBytes(uint64(l.MaxFileSize)), ErrTooLarge)
	}
	return Decision{UsesChunking: l.ChunkingEnabled && c.Size > l.ChunkThreshold}, nil
}

// BatchError rejects a whole submission.
type BatchError struct {
	Limit int
	Got   int
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("You can upload up to %d files at once", e.Limit)
}

func (e *BatchError) Unwrap() error {
	return ErrBatchTooLarge
}

// CheckBatch rejects batches larger than the configured maximum.
func CheckBatch(n int, l Limits) error {
	if n > l.MaxFilesPerBatch {
		return &BatchError{Limit: l.MaxFilesPerBatch, Got: n}
	}
	return nil
}
