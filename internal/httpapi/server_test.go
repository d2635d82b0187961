package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/reconpipe/internal/config"
	"github.com/hamed0406/reconpipe/internal/probe"
)

type fakeResolver struct {
	a, aaaa map[string][]string
}

func (f fakeResolver) LookupA(_ context.Context, host string) ([]string, error) {
	return f.a[host], nil
}

func (f fakeResolver) LookupAAAA(_ context.Context, host string) ([]string, error) {
	return f.aaaa[host], nil
}

func setupRouter(t *testing.T) http.Handler {
	t.Helper()
	s := NewServer(zap.NewNop(), 4, config.Defaults(config.VariantResolve), config.Defaults(config.VariantFetch))
	s.NewResolver = func(config.Config) (probe.Resolver, error) {
		return fakeResolver{
			a:    map[string][]string{"example.com": {"93.184.216.34"}},
			aaaa: map[string][]string{"v6only.example": {"2001:db8::1"}},
		}, nil
	}
	return s.Router()
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeLines(t *testing.T, body string) map[string]map[string]any {
	t.Helper()
	out := map[string]map[string]any{}
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("bad ndjson line %q: %v", sc.Text(), err)
		}
		out[rec["target"].(string)] = rec
	}
	return out
}

func TestHealthz(t *testing.T) {
	rr := httptest.NewRecorder()
	setupRouter(t).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("want 200 ok, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestResolve_StreamsOneRecordPerTarget(t *testing.T) {
	rr := post(t, setupRouter(t), "/api/resolve",
		`{"targets":["example.com","v6only.example","nodns.invalid"],"concurrency":2}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("unexpected content type %q", ct)
	}

	recs := decodeLines(t, rr.Body.String())
	if len(recs) != 3 {
		t.Fatalf("want 3 records, got %d: %s", len(recs), rr.Body.String())
	}
	if recs["example.com"]["kind"] != "success" {
		t.Fatalf("example.com: %v", recs["example.com"])
	}
	if v := recs["v6only.example"]["values"].([]any); len(v) != 1 || v[0] != "2001:db8::1" {
		t.Fatalf("v6only.example: %v", recs["v6only.example"])
	}
	if recs["nodns.invalid"]["kind"] != "empty" {
		t.Fatalf("nodns.invalid: %v", recs["nodns.invalid"])
	}
}

func TestResolve_RejectsBadRequests(t *testing.T) {
	h := setupRouter(t)
	cases := map[string]string{
		"bad json":          `{"targets":`,
		"no targets":        `{"targets":[]}`,
		"over ceiling":      `{"targets":["a"],"concurrency":5000}`,
		"negative workers":  `{"targets":["a"],"concurrency":-1}`,
		"unknown resolver":  `{"targets":["a"],"resolver":"magic"}`,
		"malformed headers": `{"targets":["a"],"headers":{"":"x"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rr := post(t, h, "/api/resolve", body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("want 400, got %d: %s", rr.Code, rr.Body.String())
			}
			var e map[string]string
			if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil || e["error"] == "" {
				t.Fatalf("want JSON error body, got %q", rr.Body.String())
			}
		})
	}
}

func TestFetch_ReportsStatusAndTitle(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><head><title>Up</title></head></html>"))
	}))
	defer upstream.Close()

	body, _ := json.Marshal(map[string]any{
		"targets":     []string{upstream.URL + "/", upstream.URL + "/missing", "http://127.0.0.1:1/"},
		"concurrency": 3,
	})
	rr := post(t, setupRouter(t), "/api/fetch", string(body))
	if rr.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rr.Code, rr.Body.String())
	}

	recs := decodeLines(t, rr.Body.String())
	if len(recs) != 3 {
		t.Fatalf("want 3 records, got %d: %s", len(recs), rr.Body.String())
	}
	ok := recs[upstream.URL+"/"]
	if ok["kind"] != "success" || int(ok["status_code"].(float64)) != 200 || ok["title"] != "Up" {
		t.Fatalf("unexpected ok record: %v", ok)
	}
	if missing := recs[upstream.URL+"/missing"]; int(missing["status_code"].(float64)) != 404 {
		t.Fatalf("404 is still a response: %v", missing)
	}
	if down := recs["http://127.0.0.1:1/"]; down["kind"] != "failure" || down["reason"] == "" {
		t.Fatalf("unreachable host should fail with a reason: %v", down)
	}
}

func TestOptions_UsePerPipelineDefaults(t *testing.T) {
	s := NewServer(zap.NewNop(), 0, config.Defaults(config.VariantResolve), config.Defaults(config.VariantFetch))
	for v, want := range map[config.Variant]time.Duration{
		config.VariantResolve: 5 * time.Second,
		config.VariantFetch:   10 * time.Second,
	} {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"targets":["a"],"headers":{"X-A":"1"}}`))
		_, cfg, err := s.options(httptest.NewRecorder(), req, v)
		if err != nil {
			t.Fatalf("%s: %v", v, err)
		}
		if cfg.Timeout != want {
			t.Fatalf("%s: want default timeout %s, got %s", v, want, cfg.Timeout)
		}
	}
	if h := s.Defaults[config.VariantFetch].ExtraHeaders; len(h) != 0 {
		t.Fatalf("request headers leaked into server defaults: %v", h)
	}
}
