// Package upload orchestrates image uploads to an object store through
// presigned URLs: small files go up in one request, large files as a
// sequential multipart upload.
package upload

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gostones/mediavault/internal/types"
)

var ErrCancelled = errors.New("upload cancelled")

// Authorizer is the signing service: it hands out presigned URLs and
// drives multipart sessions on the uploader's behalf.
type Authorizer interface {
	Presign(ctx context.Context, req types.PresignRequest) (*types.PresignResponse, error)
	InitMultipart(ctx context.Context, req types.MultipartInitRequest) (*types.MultipartInitResponse, error)
	SignPart(ctx context.Context, req types.SignPartRequest) (*types.SignPartResponse, error)
	CompleteMultipart(ctx context.Context, req types.CompleteRequest) error
	AbortMultipart(ctx context.Context, req types.AbortRequest) error
}

type Uploader struct {
	auth       Authorizer
	transport  Transport
	limits     Limits
	registry   *Registry
	log        zerolog.Logger
	onFinished func(Item)

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

type Option func(*Uploader)

func WithTransport(t Transport) Option {
	return func(u *Uploader) { u.transport = t }
}

func WithLogger(l zerolog.Logger) Option {
	return func(u *Uploader) { u.log = l }
}

func WithRegistry(r *Registry) Option {
	return func(u *Uploader) { u.registry = r }
}

// OnFinished is called once per item when it reaches completed or error.
// It runs on the item's goroutine.
func OnFinished(fn func(Item)) Option {
	return func(u *Uploader) { u.onFinished = fn }
}

func New(auth Authorizer, limits Limits, opts ...Option) *Uploader {
	u := &Uploader{
		auth:      auth,
		transport: &HTTPTransport{},
		limits:    limits,
		registry:  NewRegistry(),
		log:       zerolog.Nop(),
		cancels:   make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *Uploader) Registry() *Registry {
	return u.registry
}

// Submit admits a batch and starts one upload per admitted file. It returns
// without waiting for the transfers; ctx bounds their lifetime. A batch over
// the size limit is rejected as a whole with a *BatchError. Individually
// rejected files are logged and skipped.
func (u *Uploader) Submit(ctx context.Context, sources []Source) ([]Item, error) {
	if err := CheckBatch(len(sources), u.limits); err != nil {
		return nil, err
	}

	var (
		items    []Item
		admitted []Source
	)
	for _, src := range sources {
		d, err := Classify(Candidate{Name: src.Name, ContentType: src.ContentType, Size: src.Size}, u.limits)
		if err != nil {
			u.log.Warn().Err(err).Str("file", src.Name).Msg("skipping file")
			continue
		}
		items = append(items, Item{
			ID:           uuid.NewString(),
			Name:         src.Name,
			Preview:      src.Preview,
			ContentType:  src.ContentType,
			Size:         src.Size,
			UsesChunking: d.UsesChunking,
			Status:       StatusIdle,
		})
		admitted = append(admitted, src)
	}
	if len(items) == 0 {
		return nil, nil
	}

	u.registry.Insert(items...)

	for i := range items {
		ictx, cancel := context.WithCancel(ctx)
		u.mu.Lock()
		u.cancels[items[i].ID] = cancel
		u.mu.Unlock()

		u.wg.Add(1)
		go u.run(ictx, items[i], admitted[i])
	}
	return items, nil
}

// Cancel stops the item's upload. An open multipart session is aborted.
// It reports false when the item is unknown or already finished.
func (u *Uploader) Cancel(id string) bool {
	u.mu.Lock()
	cancel, ok := u.cancels[id]
	u.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Wait blocks until every submitted item has finished.
func (u *Uploader) Wait() {
	u.wg.Wait()
}

func (u *Uploader) run(ctx context.Context, item Item, src Source) {
	defer u.wg.Done()
	defer func() {
		u.mu.Lock()
		cancel := u.cancels[item.ID]
		delete(u.cancels, item.ID)
		u.mu.Unlock()
		cancel()
	}()

	log := u.log.With().Str("id", item.ID).Str("file", item.Name).Bool("chunked", item.UsesChunking).Logger()
	ctx = log.WithContext(ctx)

	if item.UsesChunking {
		u.uploadChunked(ctx, item, src)
	} else {
		u.uploadSimple(ctx, item, src)
	}

	if final, ok := u.registry.Get(item.ID); ok && u.onFinished != nil {
		u.onFinished(final)
	}
}

func (u *Uploader) start(id string) {
	u.registry.Update(id, Patch{Status: StatusUploading})
}

func (u *Uploader) progress(id string, pct float64) {
	u.registry.Update(id, Patch{Progress: &pct})
}

func (u *Uploader) complete(ctx context.Context, id string, res Result) {
	u.registry.Update(id, Patch{Status: StatusCompleted, Result: &res})
	zerolog.Ctx(ctx).Info().Str("key", res.Key).Msg("upload completed")
}

func (u *Uploader) fail(ctx context.Context, id string, err error) {
	if ctx.Err() != nil && !errors.Is(err, ErrCancelled) {
		err = ErrCancelled
	}
	u.registry.Update(id, Patch{Status: StatusError, Error: err.Error()})
	zerolog.Ctx(ctx).Error().Err(err).Msg("upload failed")
}
