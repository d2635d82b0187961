package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hamed0406/reconpipe/internal/config"
	"github.com/hamed0406/reconpipe/internal/domain"
)

func TestSafeFilename(t *testing.T) {
	cases := []struct{ in, want string }{
		{"https://cdn.example.com/static/app.min.js", "app.min.js"},
		{"https://cdn.example.com/static/app.js?v=3", "app.js"},
	}
	for _, c := range cases {
		if got := SafeFilename(c.in); got != c.want {
			t.Fatalf("SafeFilename(%q)=%q want %q", c.in, got, c.want)
		}
	}
	for _, in := range []string{"https://example.com", "https://example.com/", "https://example.com/static/js/"} {
		got := SafeFilename(in)
		if len(got) != 32+len(".js") || !strings.HasSuffix(got, ".js") {
			t.Fatalf("want md5 fallback for %q, got %q", in, got)
		}
	}
}

func TestSaver_WritesBody(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.js" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("console.log(1)"))
	}))
	defer s.Close()

	cfg := config.Defaults(config.VariantDownload)
	cfg.OutputDir = filepath.Join(t.TempDir(), "js")
	cfg.Timeout = 2 * time.Second
	saver, err := ForDownload(cfg, nil)
	if err != nil {
		t.Fatalf("ForDownload: %v", err)
	}

	out := saver.Probe(context.Background(), domain.Target(s.URL+"/assets/main.js"))
	if out.Kind != domain.KindSuccess || len(out.Values) != 1 {
		t.Fatalf("want success, got %+v", out)
	}
	b, err := os.ReadFile(out.Values[0])
	if err != nil || string(b) != "console.log(1)" {
		t.Fatalf("saved file wrong: %q %v", b, err)
	}

	out = saver.Probe(context.Background(), domain.Target(s.URL+"/missing.js"))
	if out.Kind != domain.KindFailure || !strings.HasPrefix(out.Reason, "404") {
		t.Fatalf("want 404 failure, got %+v", out)
	}
}

func TestSaver_OversizedBodyFails(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 150)))
	}))
	defer s.Close()

	cfg := config.Defaults(config.VariantDownload)
	cfg.OutputDir = t.TempDir()
	cfg.Timeout = 2 * time.Second
	saver, err := ForDownload(cfg, nil)
	if err != nil {
		t.Fatalf("ForDownload: %v", err)
	}
	saver.Fetch.MaxBody = 100

	out := saver.Probe(context.Background(), domain.Target(s.URL+"/big.js"))
	if out.Kind != domain.KindFailure || out.Reason != "body exceeds 100 bytes" {
		t.Fatalf("want oversize failure, got %+v", out)
	}
	if _, err := os.Stat(filepath.Join(cfg.OutputDir, "big.js")); !os.IsNotExist(err) {
		t.Fatalf("partial file must not be written, stat err=%v", err)
	}

	saver.Fetch.MaxBody = 150
	if out := saver.Probe(context.Background(), domain.Target(s.URL+"/big.js")); out.Kind != domain.KindSuccess {
		t.Fatalf("body exactly at the limit should save, got %+v", out)
	}
}
