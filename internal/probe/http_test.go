package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hamed0406/reconpipe/internal/domain"
)

func newProber(t *testing.T, opts HTTPOptions) *HTTPProber {
	t.Helper()
	p, err := NewHTTPProber(opts)
	if err != nil {
		t.Fatalf("NewHTTPProber: %v", err)
	}
	return p
}

func TestHTTPProber_StatusOKWithTitle(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Add("X-Multi", "a")
		w.Header().Add("X-Multi", "b")
		_, _ = w.Write([]byte("<html><head><title>  Hello  </title></head><body>hi</body></html>"))
	}))
	defer s.Close()

	out := newProber(t, HTTPOptions{Timeout: 2 * time.Second}).Probe(context.Background(), domain.Target(s.URL))
	if out.Kind != domain.KindSuccess || out.Response == nil {
		t.Fatalf("want success, got %+v", out)
	}
	r := out.Response
	if r.StatusCode != 200 {
		t.Fatalf("want status 200, got %d", r.StatusCode)
	}
	if r.Title == nil || *r.Title != "Hello" {
		t.Fatalf("want title Hello, got %v", r.Title)
	}
	if r.Headers["X-Multi"] != "a, b" {
		t.Fatalf("want joined header, got %q", r.Headers["X-Multi"])
	}
	if !strings.Contains(r.Body, "<body>hi</body>") {
		t.Fatalf("body not verbatim: %q", r.Body)
	}
}

func TestHTTPProber_Status500IsSuccess(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", 500)
	}))
	defer s.Close()

	out := newProber(t, HTTPOptions{Timeout: 2 * time.Second}).Probe(context.Background(), domain.Target(s.URL))
	if out.Kind != domain.KindSuccess || out.Response.StatusCode != 500 {
		t.Fatalf("status is data, not an error: %+v", out)
	}
	if out.Response.Title != nil {
		t.Fatalf("non-html response should have no title")
	}
}

func TestHTTPProber_RateLimitAdvisory(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer s.Close()

	core, logs := observer.New(zapcore.WarnLevel)
	p := newProber(t, HTTPOptions{Timeout: 2 * time.Second, Logger: zap.New(core)})
	out := p.Probe(context.Background(), domain.Target(s.URL))
	if out.Kind != domain.KindSuccess || !out.Response.RateLimited {
		t.Fatalf("want rate-limited success, got %+v", out)
	}
	if logs.FilterMessage("rate_limited").Len() != 1 {
		t.Fatalf("want one rate_limited log entry, got %d", logs.Len())
	}
}

func TestHTTPProber_ConnectionRefusedIsFailure(t *testing.T) {
	s := httptest.NewServer(http.NotFoundHandler())
	url := s.URL
	s.Close()

	out := newProber(t, HTTPOptions{Timeout: time.Second}).Probe(context.Background(), domain.Target(url))
	if out.Kind != domain.KindFailure || out.Reason == "" {
		t.Fatalf("want failure with reason, got %+v", out)
	}
}

func TestHTTPProber_TimeoutIsFailure(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(200)
	}))
	defer s.Close()

	out := newProber(t, HTTPOptions{Timeout: 50 * time.Millisecond}).Probe(context.Background(), domain.Target(s.URL))
	if out.Kind != domain.KindFailure {
		t.Fatalf("want failure due to timeout, got %+v", out)
	}
}

func TestHTTPProber_Redirects(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte("landed"))
	}))
	defer s.Close()

	out := newProber(t, HTTPOptions{Timeout: time.Second}).Probe(context.Background(), domain.Target(s.URL+"/old"))
	if out.Response.StatusCode != http.StatusFound {
		t.Fatalf("redirects must not be followed by default, got %d", out.Response.StatusCode)
	}

	out = newProber(t, HTTPOptions{Timeout: time.Second, FollowRedirects: true}).Probe(context.Background(), domain.Target(s.URL+"/old"))
	if out.Response.StatusCode != 200 || !strings.HasSuffix(out.Response.URL, "/new") || out.Response.Body != "landed" {
		t.Fatalf("want followed redirect, got %+v", out.Response)
	}
}

func TestHTTPProber_MethodAndHeaders(t *testing.T) {
	var gotMethod, gotUA, gotExtra string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotUA = r.Header.Get("User-Agent")
		gotExtra = r.Header.Get("X-Token")
	}))
	defer s.Close()

	p := newProber(t, HTTPOptions{
		Method:  "post",
		Timeout: time.Second,
		Headers: map[string]string{"X-Token": "abc", "User-Agent": "reconpipe-test"},
	})
	p.Probe(context.Background(), domain.Target(s.URL))
	if gotMethod != http.MethodPost || gotUA != "reconpipe-test" || gotExtra != "abc" {
		t.Fatalf("method=%q ua=%q extra=%q", gotMethod, gotUA, gotExtra)
	}
}

func TestHTTPProber_HTTPProxy(t *testing.T) {
	var proxied string
	px := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxied = r.URL.String()
		w.WriteHeader(http.StatusTeapot)
	}))
	defer px.Close()

	p := newProber(t, HTTPOptions{Timeout: time.Second, Proxy: px.URL})
	out := p.Probe(context.Background(), "http://upstream.invalid/x")
	if out.Kind != domain.KindSuccess || out.Response.StatusCode != http.StatusTeapot {
		t.Fatalf("want teapot via proxy, got %+v", out)
	}
	if proxied != "http://upstream.invalid/x" {
		t.Fatalf("proxy saw %q", proxied)
	}
}

func TestNewHTTPProber_BadProxy(t *testing.T) {
	if _, err := NewHTTPProber(HTTPOptions{Proxy: "gopher://x:70"}); err == nil {
		t.Fatalf("want error for unsupported proxy scheme")
	}
	if _, err := NewHTTPProber(HTTPOptions{Proxy: "socks5://127.0.0.1:9050"}); err != nil {
		t.Fatalf("socks5 proxy should be accepted: %v", err)
	}
}

func TestHTTPProber_InvalidURLIsFailure(t *testing.T) {
	out := newProber(t, HTTPOptions{}).Probe(context.Background(), "http://bad host/")
	if out.Kind != domain.KindFailure {
		t.Fatalf("want failure for malformed URL, got %+v", out)
	}
}

func TestHTTPProber_BodyOverLimitIsFlagged(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer s.Close()

	core, logs := observer.New(zapcore.WarnLevel)
	p := newProber(t, HTTPOptions{Timeout: 2 * time.Second, MaxBody: 16, Logger: zap.New(core)})
	out := p.Probe(context.Background(), domain.Target(s.URL))
	if out.Kind != domain.KindSuccess {
		t.Fatalf("want success, got %+v", out)
	}
	if !out.Response.Truncated || len(out.Response.Body) != 16 {
		t.Fatalf("want truncated 16-byte body, got truncated=%v len=%d", out.Response.Truncated, len(out.Response.Body))
	}
	if logs.FilterMessage("body_truncated").Len() != 1 {
		t.Fatalf("want body_truncated warning")
	}

	p = newProber(t, HTTPOptions{Timeout: 2 * time.Second, MaxBody: 64})
	if out := p.Probe(context.Background(), domain.Target(s.URL)); out.Response.Truncated || len(out.Response.Body) != 64 {
		t.Fatalf("body at the limit is complete, got %+v", out.Response)
	}
}
