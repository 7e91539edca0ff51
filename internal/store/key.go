package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewObjectKey derives a globally unique key for fileName under prefix:
// prefix + unix millis + "-" + uuid + "." + extension. Files without an
// extension get "bin".
func NewObjectKey(prefix, fileName string, now time.Time) string {
	return fmt.Sprintf("%s%d-%s.%s", prefix, now.UnixMilli(), uuid.NewString(), extension(fileName))
}

func extension(fileName string) string {
	i := strings.LastIndex(fileName, ".")
	if i < 0 || i == len(fileName)-1 {
		return "bin"
	}
	return fileName[i+1:]
}

// PublicURL is the reference under which a stored key is served.
func PublicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}

// CheckPrefix rejects keys that do not live under prefix.
func CheckPrefix(prefix, key string) error {
	if key == "" || !strings.HasPrefix(key, prefix) {
		return fmt.Errorf("%w: %q", ErrKeyOutsidePrefix, key)
	}
	return nil
}
