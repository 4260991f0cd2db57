package httpstore_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

type storedObject struct {
	data        []byte
	contentType string
	header      http.Header
}

// fakeServer is a minimal in-memory stowry server: PUT, GET with ranges,
// DELETE and the paginated JSON listing on GET /.
type fakeServer struct {
	mu       sync.Mutex
	objects  map[string]storedObject
	requests []*http.Request
	pageSize int
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()

	fs := &fakeServer{objects: make(map[string]storedObject), pageSize: 2}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)

	return fs, srv
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Clone(r.Context()))
	f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/")

	switch {
	case r.Method == http.MethodGet && key == "":
		f.handleList(w, r)
	case r.Method == http.MethodGet:
		f.handleGet(w, r, key)
	case r.Method == http.MethodPut:
		f.handlePut(w, r, key)
	case r.Method == http.MethodDelete:
		f.handleDelete(w, key)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeServer) handlePut(w http.ResponseWriter, r *http.Request, key string) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.objects[key] = storedObject{data: body, contentType: r.Header.Get("Content-Type"), header: r.Header.Clone()}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"path":"` + key + `"}`))
}

func (f *fakeServer) handleGet(w http.ResponseWriter, r *http.Request, key string) {
	f.mu.Lock()
	obj, ok := f.objects[key]
	f.mu.Unlock()

	if !ok {
		writeJSONError(w, http.StatusNotFound, "not_found", "Object not found")
		return
	}

	w.Header().Set("Content-Type", obj.contentType)
	http.ServeContent(w, r, key, time.Time{}, bytes.NewReader(obj.data))
}

func (f *fakeServer) handleDelete(w http.ResponseWriter, key string) {
	f.mu.Lock()
	_, ok := f.objects[key]
	delete(f.objects, key)
	f.mu.Unlock()

	if !ok {
		writeJSONError(w, http.StatusNotFound, "not_found", "Object not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeServer) handleList(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	cursor := r.URL.Query().Get("cursor")

	f.mu.Lock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if cursor != "" {
		start, _ = strconv.Atoi(cursor)
	}
	end := min(start+f.pageSize, len(keys))

	type item struct {
		Path          string    `json:"path"`
		ContentType   string    `json:"content_type"`
		ETag          string    `json:"etag"`
		FileSizeBytes int64     `json:"file_size_bytes"`
		UpdatedAt     time.Time `json:"updated_at"`
	}
	items := make([]item, 0, end-start)
	for _, k := range keys[start:end] {
		obj := f.objects[k]
		items = append(items, item{
			Path:          k,
			ContentType:   obj.contentType,
			ETag:          "etag-" + k,
			FileSizeBytes: int64(len(obj.data)),
		})
	}
	f.mu.Unlock()

	next := ""
	if end < len(keys) {
		next = strconv.Itoa(end)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"items": items, "next_cursor": next})
}

func (f *fakeServer) put(key, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = storedObject{data: []byte(content), contentType: "text/plain"}
}

func (f *fakeServer) get(key string) (storedObject, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[key]
	return obj, ok
}

func (f *fakeServer) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeServer) lastRequest() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}
