package upload

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gostones/mediavault/internal/types"
)

// uploadSimple sends the whole payload in one presigned PUT. It fails fast:
// nothing is retried.
func (u *Uploader) uploadSimple(ctx context.Context, item Item, src Source) {
	u.start(item.ID)

	size := src.Size
	presign, err := u.auth.Presign(ctx, types.PresignRequest{
		FileName: src.Name,
		FileType: src.ContentType,
		FileSize: &size,
	})
	if err != nil {
		u.fail(ctx, item.ID, fmt.Errorf("authorize upload: %w", err))
		return
	}
	zerolog.Ctx(ctx).Debug().Str("key", presign.Key).Msg("presigned")

	body := NewChunkReader(src.Data, 0, src.Size, func(loaded int64) {
		if pct, ok := SimpleProgress(loaded, src.Size); ok {
			u.progress(item.ID, pct)
		}
	})
	if _, err := u.transport.Put(ctx, Transfer{
		URL:         presign.UploadURL,
		ContentType: src.ContentType,
		Body:        body,
		Size:        src.Size,
	}); err != nil {
		u.fail(ctx, item.ID, fmt.Errorf("upload: %w", err))
		return
	}

	u.complete(ctx, item.ID, Result{Key: presign.Key, URL: presign.PublicURL})
}
