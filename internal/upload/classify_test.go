package upload

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mib = 1 << 20

func defaultLimits() Limits {
	return Limits{
		MaxFileSize:      200 * mib,
		ChunkThreshold:   50 * mib,
		MaxFilesPerBatch: 5,
		ChunkSize:        10 * mib,
		ChunkingEnabled:  true,
	}
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage("image/png"))
	assert.True(t, IsImage("IMAGE/JPEG"))
	assert.False(t, IsImage("text/plain"))
	assert.False(t, IsImage(""))
	assert.False(t, IsImage("application/image"))
}

func TestClassify(t *testing.T) {
	disabled := defaultLimits()
	disabled.ChunkingEnabled = false

	tests := []struct {
		name    string
		c       Candidate
		l       Limits
		chunked bool
		err     error
	}{
		{"small image", Candidate{"a.png", "image/png", 5 * mib}, defaultLimits(), false, nil},
		{"at threshold", Candidate{"a.png", "image/png", 50 * mib}, defaultLimits(), false, nil},
		{"over threshold", Candidate{"a.png", "image/png", 50*mib + 1}, defaultLimits(), true, nil},
		{"over max with chunking", Candidate{"a.png", "image/png", 300 * mib}, defaultLimits(), true, nil},
		{"over threshold without chunking", Candidate{"a.png", "image/png", 120 * mib}, disabled, false, nil},
		{"over max without chunking", Candidate{"a.png", "image/png", 200*mib + 1}, disabled, false, ErrTooLarge},
		{"not an image", Candidate{"a.txt", "text/plain", 1}, defaultLimits(), false, ErrNotImage},
		{"empty content type", Candidate{"a", "", 1}, defaultLimits(), false, ErrNotImage},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, err := Classify(tc.c, tc.l)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.chunked, d.UsesChunking)
		})
	}
}

func TestClassifyTooLargeMessage(t *testing.T) {
	l := defaultLimits()
	l.ChunkingEnabled = false

	_, err := Classify(Candidate{"big.png", "image/png", 250 * mib}, l)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "250 MiB")
	assert.Contains(t, err.Error(), "200 MiB")
}

func TestCheckBatch(t *testing.T) {
	l := defaultLimits()
	assert.NoError(t, CheckBatch(5, l))
	assert.NoError(t, CheckBatch(0, l))

	err := CheckBatch(6, l)
	require.ErrorIs(t, err, ErrBatchTooLarge)

	var be *BatchError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, 5, be.Limit)
	assert.Equal(t, 6, be.Got)
	assert.Equal(t, "You can upload up to 5 files at once", err.Error())
}
