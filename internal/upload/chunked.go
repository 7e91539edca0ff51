package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gostones/mediavault/internal/types"
)

var (
	ErrMissingETag      = errors.New("missing ETag from part upload response")
	ErrChunkingDisabled = errors.New("multipart upload is disabled on client")
)

const abortTimeout = 30 * time.Second

// session is the state of one multipart transfer. It belongs to the
// goroutine uploading the item and is dropped when that upload ends.
type session struct {
	key       string
	token     string
	publicURL string
	parts     []types.CompletePart
}

// uploadChunked runs the multipart protocol: initiate, then sign and send
// each part strictly in order, then finalize with every part's ETag. A
// failure leaves the session open for an explicit abort; cancellation
// aborts it here.
func (u *Uploader) uploadChunked(ctx context.Context, item Item, src Source) {
	if !u.limits.ChunkingEnabled {
		u.fail(ctx, item.ID, ErrChunkingDisabled)
		return
	}
	u.start(item.ID)
	log := zerolog.Ctx(ctx)

	started, err := u.auth.InitMultipart(ctx, types.MultipartInitRequest{
		FileName: src.Name,
		FileType: src.ContentType,
	})
	if err != nil {
		u.fail(ctx, item.ID, fmt.Errorf("initiate multipart upload: %w", err))
		return
	}
	sess := &session{key: started.Key, token: started.UploadID, publicURL: started.PublicURL}

	// a failed session stays open, so keep what is needed to abort it in
	// every later log line
	l := log.With().Str("key", sess.key).Str("upload_id", sess.token).Logger()
	log = &l
	ctx = l.WithContext(ctx)

	plan := NewChunkPlan(src.Size, u.limits.ChunkSize)
	log.Debug().Int("parts", plan.Total).Msg("multipart upload initiated")

	for part := 1; part <= plan.Total; part++ {
		if ctx.Err() != nil {
			u.abort(ctx, sess)
			u.fail(ctx, item.ID, ErrCancelled)
			return
		}

		etag, err := u.sendPart(ctx, item.ID, sess, plan, src, part)
		if err != nil {
			if ctx.Err() != nil {
				u.abort(ctx, sess)
			}
			u.fail(ctx, item.ID, err)
			return
		}
		sess.parts = append(sess.parts, types.CompletePart{PartNumber: part, ETag: etag})

		_, end := plan.Range(part)
		if pct, ok := SimpleProgress(end, src.Size); ok {
			u.progress(item.ID, pct)
		}
		log.Debug().Int("part", part).Str("etag", etag).Msg("part uploaded")
	}

	if err := u.auth.CompleteMultipart(ctx, types.CompleteRequest{
		Key:      sess.key,
		UploadID: sess.token,
		Parts:    sess.parts,
	}); err != nil {
		if ctx.Err() != nil {
			u.abort(ctx, sess)
		}
		u.fail(ctx, item.ID, fmt.Errorf("complete multipart upload: %w", err))
		return
	}

	u.complete(ctx, item.ID, Result{Key: sess.key, URL: sess.publicURL})
}

func (u *Uploader) sendPart(ctx context.Context, id string, sess *session, plan ChunkPlan, src Source, part int) (string, error) {
	signed, err := u.auth.SignPart(ctx, types.SignPartRequest{
		Key:        sess.key,
		UploadID:   sess.token,
		PartNumber: part,
	})
	if err != nil {
		return "", fmt.Errorf("sign part %d: %w", part, err)
	}

	off, end := plan.Range(part)
	body := NewChunkReader(src.Data, off, end, func(loaded int64) {
		if pct, ok := ChunkedProgress(part, plan.ChunkSize, loaded, end-off, src.Size); ok {
			u.progress(id, pct)
		}
	})

	etag, err := u.transport.Put(ctx, Transfer{URL: signed.URL, Body: body, Size: end - off})
	if err != nil {
		return "", fmt.Errorf("upload part %d: %w", part, err)
	}

	etag = strings.ReplaceAll(etag, `"`, "")
	if etag == "" {
		return "", fmt.Errorf("part %d: %w", part, ErrMissingETag)
	}
	return etag, nil
}

// abort releases the store side of a cancelled session. It outlives ctx,
// which is already done when this runs.
func (u *Uploader) abort(ctx context.Context, sess *session) {
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()

	log := zerolog.Ctx(ctx)
	if err := u.auth.AbortMultipart(actx, types.AbortRequest{Key: sess.key, UploadID: sess.token}); err != nil {
		log.Warn().Err(err).Str("key", sess.key).Msg("abort multipart upload")
		return
	}
	log.Info().Str("key", sess.key).Int("parts", len(sess.parts)).Msg("multipart upload aborted")
}
