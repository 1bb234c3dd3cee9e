package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"bundled/internal/manager"
	"bundled/internal/manifest"
	"bundled/pkg/types"
)

// mockService answers from a fixed manifest and per-bundle flags.
type mockService struct {
	mu        sync.Mutex
	mf        *manifest.Manifest
	cached    map[string]bool
	ready     map[string]bool
	readyAt   int // IsReady flips to true after this many calls; 0 means never
	readyHits int
	status    types.StatusResponse
	state     manager.DownloadState
	calls     []string
}

func newMockService(t *testing.T, names ...string) *mockService {
	t.Helper()
	var bs []manifest.Bundle
	for _, n := range names {
		bs = append(bs, manifest.Bundle{Name: n, Version: 1, Size: 10})
	}
	svc := &mockService{cached: map[string]bool{}, ready: map[string]bool{}}
	if len(bs) > 0 {
		mf, err := manifest.New(bs)
		if err != nil {
			t.Fatalf("manifest: %v", err)
		}
		svc.mf = mf
	}
	return svc
}

func (m *mockService) record(s string) {
	m.mu.Lock()
	m.calls = append(m.calls, s)
	m.mu.Unlock()
}

func (m *mockService) Ready() bool { return m.mf != nil }

func (m *mockService) Lookup(name string) *manifest.Bundle {
	if m.mf == nil {
		return nil
	}
	return m.mf.Lookup(name)
}

func (m *mockService) Info(name string) (types.Bundle, error) {
	if m.mf == nil {
		return types.Bundle{}, manager.ErrNoBundles
	}
	b := m.mf.Lookup(name)
	if b == nil {
		return types.Bundle{}, manager.ErrBundleNotFound(name)
	}
	return m.view(b), nil
}

func (m *mockService) view(b *manifest.Bundle) types.Bundle {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := "unknown"
	switch {
	case m.ready[b.Name]:
		state = "ready"
	case m.cached[b.Name]:
		state = "cached"
	}
	return types.Bundle{Name: b.Name, Version: b.Version, Size: b.Size, State: state}
}

func (m *mockService) Infos() ([]types.Bundle, error) {
	if m.mf == nil {
		return nil, manager.ErrNoBundles
	}
	var out []types.Bundle
	for _, b := range m.mf.Bundles() {
		out = append(out, m.view(b))
	}
	return out, nil
}

func (m *mockService) Cache(b *manifest.Bundle) bool {
	m.record("cache:" + b.Name)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cached[b.Name]
}

func (m *mockService) Request(b *manifest.Bundle) bool {
	m.record("request:" + b.Name)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready[b.Name]
}

func (m *mockService) Unload(b *manifest.Bundle) {
	m.record("unload:" + b.Name)
	m.mu.Lock()
	delete(m.ready, b.Name)
	m.mu.Unlock()
}

func (m *mockService) IsReady(b *manifest.Bundle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readyHits++
	if m.readyAt > 0 && m.readyHits >= m.readyAt {
		m.ready[b.Name] = true
	}
	return m.ready[b.Name]
}

func (m *mockService) resolve(r manager.Resolver) []*manifest.Bundle {
	if m.mf == nil {
		return nil
	}
	return r(m.mf)
}

func (m *mockService) CacheFor(r manager.Resolver) bool {
	ok := true
	for _, b := range m.resolve(r) {
		ok = m.Cache(b) && ok
	}
	return ok
}

func (m *mockService) RequestFor(r manager.Resolver) bool {
	ok := true
	for _, b := range m.resolve(r) {
		ok = m.Request(b) && ok
	}
	return ok
}

func (m *mockService) DownloadStateFor(r manager.Resolver) manager.DownloadState {
	for _, b := range m.resolve(r) {
		m.record("state:" + b.Name)
	}
	if m.mf == nil {
		return manager.DownloadState{Status: manager.DownloadErrorNoBundles, BytesTotal: 1}
	}
	return m.state
}

func (m *mockService) Status() types.StatusResponse { return m.status }

func (m *mockService) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json: %v body=%s", err, w.Body.String())
	}
	return v
}

func httptestRequest(method, target, body, contentType string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}
