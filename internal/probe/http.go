package probe

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/proxy"

	"github.com/hamed0406/reconpipe/internal/domain"
)

const defaultMaxBody = 10 << 20

// DefaultHeaders are sent with every request unless overridden.
var DefaultHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:140.0) Gecko/20100101 Firefox/140.0",
	"Accept":          "*/*",
	"Accept-Language": "en;q=0.5, *;q=0.1",
}

type HTTPOptions struct {
	Method          string
	Timeout         time.Duration
	Headers         map[string]string // merged over DefaultHeaders
	FollowRedirects bool
	Proxy           string // http://, https://, socks5:// or socks5h://
	MaxBody         int64
	Logger          *zap.Logger
}

// HTTPProber issues a single request per target. Any response, whatever its
// status, is a Success; only transport errors become a Failure.
type HTTPProber struct {
	Client  *http.Client
	Method  string
	Headers map[string]string
	MaxBody int64
	Logger  *zap.Logger
}

func NewHTTPProber(opts HTTPOptions) (*HTTPProber, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Method == "" {
		opts.Method = http.MethodGet
	}
	if opts.MaxBody <= 0 {
		opts.MaxBody = defaultMaxBody
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	if err := applyProxy(tr, opts.Proxy); err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: opts.Timeout, Transport: tr}
	if !opts.FollowRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	headers := make(map[string]string, len(DefaultHeaders)+len(opts.Headers))
	for k, v := range DefaultHeaders {
		headers[k] = v
	}
	for k, v := range opts.Headers {
		headers[k] = v
	}

	return &HTTPProber{
		Client:  client,
		Method:  strings.ToUpper(opts.Method),
		Headers: headers,
		MaxBody: opts.MaxBody,
		Logger:  opts.Logger,
	}, nil
}

func applyProxy(tr *http.Transport, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse proxy: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		tr.Proxy = http.ProxyURL(u)
	case "socks5", "socks5h":
		d, err := proxy.FromURL(u, proxy.Direct)
		if err != nil {
			return fmt.Errorf("socks proxy: %w", err)
		}
		cd, ok := d.(proxy.ContextDialer)
		if !ok {
			return errors.New("socks proxy: dialer does not support contexts")
		}
		tr.Proxy = nil
		tr.DialContext = cd.DialContext
	default:
		return fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	return nil
}

func (h *HTTPProber) Probe(ctx context.Context, target domain.Target) domain.Outcome {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, h.Method, string(target), nil)
	if err != nil {
		return domain.Failure(err.Error())
	}
	for k, v := range h.Headers {
		if strings.EqualFold(k, "Host") {
			req.Host = v
			continue
		}
		req.Header.Set(k, v)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return domain.Failure(err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.MaxBody+1))
	if err != nil {
		return domain.Failure(fmt.Sprintf("read body: %v", err))
	}
	truncated := int64(len(body)) > h.MaxBody
	if truncated {
		body = body[:h.MaxBody]
	}

	r := &domain.Response{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Headers:    flattenHeaders(resp.Header),
		Body:       string(body),
		Truncated:  truncated,
		LatencyMS:  time.Since(start).Seconds() * 1000,
	}
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "html") {
		r.Title = extractTitle(body)
	}
	if truncated {
		h.Logger.Warn("body_truncated", zap.String("url", r.URL), zap.Int64("limit", h.MaxBody))
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		r.RateLimited = true
		h.Logger.Warn("rate_limited",
			zap.String("url", r.URL),
			zap.Int("status", resp.StatusCode),
		)
	}
	return domain.SuccessResponse(r)
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		out[k] = strings.Join(vs, ", ")
	}
	return out
}

// extractTitle returns the trimmed text of the first <title> element, or nil.
func extractTitle(body []byte) *string {
	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return nil
		case html.StartTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) != atom.Title {
				continue
			}
			if z.Next() != html.TextToken {
				return nil
			}
			t := strings.TrimSpace(string(z.Text()))
			return &t
		}
	}
}
