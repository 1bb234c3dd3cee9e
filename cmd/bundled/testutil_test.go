package main

import (
	"bytes"
	"encoding/json"
	"hash/crc32"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"bundled/internal/manifest"
)

// cdn serves a JSON manifest and bundle payloads under /linux/.
type cdn struct {
	*httptest.Server
	payloads map[string][]byte
	hits     atomic.Int64
}

func newCDN(t *testing.T, bundles []manifest.Bundle, payloads map[string][]byte) *cdn {
	t.Helper()
	c := &cdn{payloads: payloads}
	mf := manifestJSON(t, bundles)
	c.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.hits.Add(1)
		name := strings.TrimPrefix(r.URL.Path, "/linux/")
		if name == "Manifest" {
			_, _ = w.Write(mf)
			return
		}
		data, ok := c.payloads[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(c.Close)
	return c
}

func manifestJSON(t *testing.T, bundles []manifest.Bundle) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{"bundles": bundles})
	if err != nil {
		t.Fatalf("marshal manifest: %v", err)
	}
	return b
}

func bundleFor(name string, data []byte, deps ...string) manifest.Bundle {
	return manifest.Bundle{Name: name, Version: 1, Size: int64(len(data)), ContentHash: crc32.ChecksumIEEE(data), Dependencies: deps}
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}
