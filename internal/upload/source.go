package upload

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// Source is the payload of one file offered for upload.
type Source struct {
	Name        string
	ContentType string
	Size        int64
	Data        io.ReaderAt

	// Preview is a local reference to the file, for display only.
	Preview string
}

// OpenFile opens path as a Source, sniffing its content type. The returned
// closer releases the file once its upload has finished.
func OpenFile(path string) (Source, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return Source{}, nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return Source{}, nil, err
	}
	if fi.IsDir() {
		f.Close()
		return Source{}, nil, fmt.Errorf("%s is a directory", path)
	}

	mt, err := mimetype.DetectReader(io.NewSectionReader(f, 0, fi.Size()))
	if err != nil {
		f.Close()
		return Source{}, nil, fmt.Errorf("detect content type: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	return Source{
		Name:        fi.Name(),
		ContentType: mt.String(),
		Size:        fi.Size(),
		Data:        f,
		Preview:     "file://" + filepath.ToSlash(abs),
	}, f, nil
}
