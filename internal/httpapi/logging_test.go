package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{"": LevelOff, "off": LevelOff, "error": LevelError, "info": LevelInfo, "debug": LevelDebug, "weird": LevelInfo}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q)=%v want %v", in, got, want)
		}
	}
}

func TestRequestLogLevelOverrides(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?log=1", nil)
	if got := requestLogLevel(req); got != LevelDebug {
		t.Fatalf("query override=%v", got)
	}
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(req); got != LevelError {
		t.Fatalf("header override=%v", got)
	}
}

func TestRequestLoggerWritesErrors(t *testing.T) {
	var buf bytes.Buffer
	old := zlog
	SetLogger(zerolog.New(&buf))
	SetRequestLogLevel("error")
	t.Cleanup(func() {
		zlog = old
		SetRequestLogLevel("")
	})

	r := NewMux(newMockService(t, "A"))
	_ = do(t, r, http.MethodGet, "/bundles/A", nil)
	if buf.Len() != 0 {
		t.Fatalf("success logged at error level: %s", buf.String())
	}
	_ = do(t, r, http.MethodGet, "/bundles/Missing", nil)
	out := buf.String()
	if !strings.Contains(out, `"status":404`) || !strings.Contains(out, `"path":"/bundles/Missing"`) {
		t.Fatalf("log line=%s", out)
	}
}
