package store

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/gostones/mediavault/internal/types"
)

type memObject struct {
	data        []byte
	contentType string
	etag        string
	modified    time.Time
}

type memSession struct {
	key         string
	contentType string
	parts       map[int]*memObject
}

// MemoryStore is a process-local ObjectStore. It issues HMAC signed URLs
// under baseURL and serves them from Handler, so the upload protocol can run
// end to end without a bucket.
type MemoryStore struct {
	baseURL    string
	secret     []byte
	putExpiry  time.Duration
	partExpiry time.Duration

	mu       sync.Mutex
	objects  map[string]*memObject
	sessions map[string]*memSession
}

func NewMemoryStore(baseURL string, putExpiry, partExpiry time.Duration) *MemoryStore {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic(err)
	}
	return &MemoryStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     secret,
		putExpiry:  putExpiry,
		partExpiry: partExpiry,
		objects:    make(map[string]*memObject),
		sessions:   make(map[string]*memSession),
	}
}

func (m *MemoryStore) sign(key string, q url.Values) string {
	mac := hmac.New(sha256.New, m.secret)
	fmt.Fprintf(mac, "%s\n%s\n%s\n%s\n%s\n%s",
		key, q.Get("op"), q.Get("uploadId"), q.Get("partNumber"), q.Get("contentType"), q.Get("expires"))
	return hex.EncodeToString(mac.Sum(nil))
}

func (m *MemoryStore) Authorize(ctx context.Context, key string, op Operation, scope Scope) (*Authorization, error) {
	var expiry time.Duration
	q := url.Values{}
	q.Set("op", string(op))

	switch op {
	case OpPutObject:
		expiry = m.putExpiry
		q.Set("contentType", scope.ContentType)
	case OpUploadPart:
		if scope.SessionToken == "" || scope.PartNumber < 1 {
			return nil, fmt.Errorf("%w: upload-part requires a session token and part number", ErrInvalidPart)
		}
		m.mu.Lock()
		sess, ok := m.sessions[scope.SessionToken]
		m.mu.Unlock()
		if !ok || sess.key != key {
			return nil, ErrNoSuchUpload
		}
		expiry = m.partExpiry
		q.Set("uploadId", scope.SessionToken)
		q.Set("partNumber", strconv.Itoa(scope.PartNumber))
	default:
		return nil, fmt.Errorf("unsupported operation %q", op)
	}

	q.Set("expires", strconv.FormatInt(time.Now().Add(expiry).Unix(), 10))
	q.Set("signature", m.sign(key, q))

	return &Authorization{
		URL:       m.baseURL + "/" + key + "?" + q.Encode(),
		ExpiresIn: expiry,
	}, nil
}

func (m *MemoryStore) InitiateSession(ctx context.Context, key, contentType string) (string, error) {
	token := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = &memSession{
		key:         key,
		contentType: contentType,
		parts:       make(map[int]*memObject),
	}
	return token, nil
}

func (m *MemoryStore) FinalizeSession(ctx context.Context, key, sessionToken string, parts []types.CompletePart) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionToken]
	if !ok || sess.key != key {
		return ErrNoSuchUpload
	}
	if len(parts) == 0 {
		return fmt.Errorf("%w: no parts", ErrInvalidPart)
	}

	var (
		data bytes.Buffer
		sums []byte
	)
	for i, p := range parts {
		if p.PartNumber != i+1 {
			return fmt.Errorf("%w: expected part %d, got %d", ErrInvalidPart, i+1, p.PartNumber)
		}
		stored, ok := sess.parts[p.PartNumber]
		if !ok {
			return fmt.Errorf("%w: part %d was never uploaded", ErrInvalidPart, p.PartNumber)
		}
		if strings.Trim(p.ETag, `"`) != stored.etag {
			return fmt.Errorf("%w: etag mismatch for part %d", ErrInvalidPart, p.PartNumber)
		}
		raw, _ := hex.DecodeString(stored.etag)
		sums = append(sums, raw...)
		data.Write(stored.data)
	}

	sum := md5.Sum(sums)
	m.objects[key] = &memObject{
		data:        data.Bytes(),
		contentType: sess.contentType,
		etag:        fmt.Sprintf("%s-%d", hex.EncodeToString(sum[:]), len(parts)),
		modified:    time.Now(),
	}
	delete(m.sessions, sessionToken)
	return nil
}

func (m *MemoryStore) AbortSession(ctx context.Context, key, sessionToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionToken]
	if !ok || sess.key != key {
		return ErrNoSuchUpload
	}
	delete(m.sessions, sessionToken)
	return nil
}

func (m *MemoryStore) ListObjects(ctx context.Context, prefix string) ([]Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var objects []Object
	for k, o := range m.objects {
		if strings.HasPrefix(k, prefix) {
			objects = append(objects, Object{Key: k, Size: int64(len(o.data)), LastModified: o.modified})
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (m *MemoryStore) DeleteObject(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Sessions reports the number of open multipart sessions.
func (m *MemoryStore) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Object returns a copy of a stored object's bytes.
func (m *MemoryStore) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[key]
	if !ok {
		return nil, false
	}
	return bytes.Clone(o.data), true
}

// Handler serves signed uploads and public reads. Paths are object keys
// relative to the base URL, so mount it with http.StripPrefix.
func (m *MemoryStore) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/{key:.+}", m.handlePut).Methods(http.MethodPut)
	r.HandleFunc("/{key:.+}", m.handleGet).Methods(http.MethodGet, http.MethodHead)
	return r
}

func (m *MemoryStore) verify(key string, q url.Values) error {
	want := m.sign(key, q)
	if !hmac.Equal([]byte(want), []byte(q.Get("signature"))) {
		return ErrSignature
	}
	exp, err := strconv.ParseInt(q.Get("expires"), 10, 64)
	if err != nil || time.Now().Unix() > exp {
		return ErrSignature
	}
	return nil
}

func (m *MemoryStore) handlePut(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	q := r.URL.Query()

	if err := m.verify(key, q); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b64, etag, _ := MD5Sum(bytes.NewReader(data))
	if want := r.Header.Get("Content-MD5"); want != "" && want != b64 {
		http.Error(w, "BadDigest", http.StatusBadRequest)
		return
	}

	obj := &memObject{data: data, etag: etag, modified: time.Now()}

	switch Operation(q.Get("op")) {
	case OpPutObject:
		if ct := r.Header.Get("Content-Type"); ct != q.Get("contentType") {
			http.Error(w, "content type does not match signature", http.StatusForbidden)
			return
		}
		obj.contentType = q.Get("contentType")
		m.mu.Lock()
		m.objects[key] = obj
		m.mu.Unlock()

	case OpUploadPart:
		part, _ := strconv.Atoi(q.Get("partNumber"))
		m.mu.Lock()
		sess, ok := m.sessions[q.Get("uploadId")]
		ok = ok && sess.key == key
		if ok {
			sess.parts[part] = obj
		}
		m.mu.Unlock()
		if !ok {
			http.Error(w, ErrNoSuchUpload.Error(), http.StatusNotFound)
			return
		}

	default:
		http.Error(w, "unsupported operation", http.StatusBadRequest)
		return
	}

	w.Header().Set("ETag", `"`+etag+`"`)
	w.WriteHeader(http.StatusOK)
}

func (m *MemoryStore) handleGet(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	m.mu.Lock()
	o, ok := m.objects[key]
	m.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", o.contentType)
	w.Header().Set("ETag", `"`+o.etag+`"`)
	http.ServeContent(w, r, key, o.modified, bytes.NewReader(o.data))
}
