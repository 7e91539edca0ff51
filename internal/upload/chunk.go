package upload

import (
	"io"
	"sync/atomic"
)

// ChunkPlan splits a payload of Size bytes into parts of ChunkSize bytes.
// Parts are 1-indexed; only the last part may be shorter.
type ChunkPlan struct {
	Size      int64
	ChunkSize int64
	Total     int
}

func NewChunkPlan(size, chunkSize int64) ChunkPlan {
	total := int(size / chunkSize)
	if size%chunkSize != 0 {
		total++
	}
	return ChunkPlan{
		Size:      size,
		ChunkSize: chunkSize,
		Total:     total,
	}
}

// Range returns the half-open byte range [off, end) of part.
func (p ChunkPlan) Range(part int) (int64, int64) {
	off := int64(part-1) * p.ChunkSize
	return off, min(off+p.ChunkSize, p.Size)
}

// Counter is a byte counter safe for use across goroutines; the HTTP
// transport reads request bodies on its own goroutine.
type Counter int64

func (c *Counter) Increment(n int64) int64 {
	return atomic.AddInt64((*int64)(c), n)
}

func (c *Counter) Get() int64 {
	return atomic.LoadInt64((*int64)(c))
}

// ChunkReader reads the byte range [off, limit) of src and reports the
// running number of bytes read to onRead.
type ChunkReader struct {
	src    io.ReaderAt
	base   int64
	off    int64
	limit  int64
	count  Counter
	onRead func(loaded int64)
}

func NewChunkReader(src io.ReaderAt, off, limit int64, onRead func(loaded int64)) *ChunkReader {
	return &ChunkReader{
		src:    src,
		base:   off,
		off:    off,
		limit:  limit,
		onRead: onRead,
	}
}

func (r *ChunkReader) Read(p []byte) (int, error) {
	if r.off >= r.limit {
		return 0, io.EOF
	}
	if remain := r.limit - r.off; int64(len(p)) > remain {
		p = p[:remain]
	}
	n, err := r.src.ReadAt(p, r.off)
	r.off += int64(n)
	if n > 0 {
		loaded := r.count.Increment(int64(n))
		if r.onRead != nil {
			r.onRead(loaded)
		}
	}
	if err == io.EOF && r.off < r.limit {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

func (r *ChunkReader) Size() int64 {
	return r.limit - r.base
}

// Loaded reports how many bytes have been read so far.
func (r *ChunkReader) Loaded() int64 {
	return r.count.Get()
}
