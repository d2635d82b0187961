package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"

	"github.com/hamed0406/reconpipe/internal/domain"
)

// MaxConcurrencyCeiling is the hard upper bound on parallel probes.
const MaxConcurrencyCeiling = 1000

// Variant selects the defaults for one of the pipelines.
type Variant string

const (
	VariantResolve  Variant = "resolve"
	VariantFetch    Variant = "fetch"
	VariantDownload Variant = "download"
)

type Config struct {
	Addr     string // API bind address
	MaxRuns  int    // concurrent API runs, 0 = unlimited
	LogDir   string // logs directory
	LogLevel string // debug|info|warn|error
	Verbose  bool   // tee warnings to stderr

	Timeout        time.Duration // per probe stage
	MaxConcurrency int

	// DNS
	Resolver  string // native|dns|process
	DNSServer string // host:port, dns resolver only

	// HTTP
	Method          string
	FollowRedirects bool
	ProxyAddress    string
	ExtraHeaders    []string // "Key: Value"

	// Output
	OutputFile   string // JSON batch destination (fetch)
	OutputDir    string // download destination
	ShowFailures bool
	NoColour     bool
	Prettify     bool
}

// Defaults returns the per-variant defaults before env and flags are applied.
func Defaults(v Variant) Config {
	cfg := Config{
		Addr:           "127.0.0.1:8080",
		MaxRuns:        4,
		LogDir:         "logs",
		LogLevel:       "info",
		Timeout:        10 * time.Second,
		MaxConcurrency: 10,
		Resolver:       "native",
		Method:         "GET",
		OutputDir:      ".",
		Prettify:       true,
	}
	switch v {
	case VariantResolve:
		cfg.Timeout = 5 * time.Second
	case VariantDownload:
		cfg.Timeout = 15 * time.Second
		cfg.MaxConcurrency = 5
	}
	return cfg
}

// FromEnv applies environment overrides on top of the variant defaults.
// Unparsable numeric values are left to Validate so they fail loudly.
func FromEnv(v Variant) Config {
	cfg := Defaults(v)

	if s := os.Getenv("API_ADDR"); s != "" {
		cfg.Addr = s
	}
	if s := os.Getenv("API_MAX_RUNS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			cfg.MaxRuns = n
		}
	}
	if s := os.Getenv("LOG_DIR"); s != "" {
		cfg.LogDir = s
	}
	if s := os.Getenv("LOG_LEVEL"); s != "" {
		cfg.LogLevel = s
	}

	if s := os.Getenv("RECON_TIMEOUT_SECONDS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			cfg.Timeout = time.Duration(n) * time.Second
		} else {
			cfg.Timeout = 0
		}
	}
	if s := os.Getenv("RECON_MAX_CONCURRENCY"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			cfg.MaxConcurrency = n
		} else {
			cfg.MaxConcurrency = 0
		}
	}

	if s := os.Getenv("RECON_RESOLVER"); s != "" {
		cfg.Resolver = s
	}
	cfg.DNSServer = os.Getenv("RECON_DNS_SERVER")

	if s := os.Getenv("RECON_FOLLOW_REDIRECTS"); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			cfg.FollowRedirects = b
		}
	}
	cfg.ProxyAddress = os.Getenv("RECON_PROXY")
	// multiple headers are separated by '|'
	if s := os.Getenv("RECON_HEADERS"); s != "" {
		for _, h := range strings.Split(s, "|") {
			if h = strings.TrimSpace(h); h != "" {
				cfg.ExtraHeaders = append(cfg.ExtraHeaders, h)
			}
		}
	}

	return cfg
}

// BindFlags registers the flags for a variant on fs, defaulting to the
// values already in c so flags override env.
func (c *Config) BindFlags(fs *pflag.FlagSet, v Variant) {
	fs.VarP((*seconds)(&c.Timeout), "timeout", "t", "per-probe stage timeout in seconds (or a duration like 1500ms)")
	fs.BoolVar(&c.Verbose, "verbose", c.Verbose, "also print warnings to stderr")
	fs.BoolVar(&c.ShowFailures, "show-failures", c.ShowFailures, "report failed targets on stderr")
	fs.BoolVar(&c.NoColour, "no-colour", c.NoColour, "disable colour output")

	switch v {
	case VariantResolve:
		fs.IntVar(&c.MaxConcurrency, "threads", c.MaxConcurrency, "number of parallel lookups")
		fs.StringVar(&c.Resolver, "resolver", c.Resolver, "resolver backend: native, dns or process")
		fs.StringVar(&c.DNSServer, "server", c.DNSServer, "nameserver host:port for the dns resolver")
	case VariantFetch:
		fs.IntVarP(&c.MaxConcurrency, "threads", "T", c.MaxConcurrency, "number of parallel requests")
		fs.StringVarP(&c.Method, "method", "X", c.Method, "HTTP method")
		fs.StringVarP(&c.ProxyAddress, "proxy", "p", c.ProxyAddress, "upstream proxy URL (http, https, socks5)")
		fs.BoolVarP(&c.FollowRedirects, "follow-redirects", "f", c.FollowRedirects, "follow redirects")
		fs.StringArrayVarP(&c.ExtraHeaders, "header", "H", c.ExtraHeaders, "extra header 'Key: Value', repeatable")
		fs.StringVarP(&c.OutputFile, "json-output", "o", c.OutputFile, "write results as a JSON array to FILE")
		fs.BoolVar(&c.Prettify, "prettify", c.Prettify, "indent HTML bodies in the report")
	case VariantDownload:
		fs.IntVarP(&c.MaxConcurrency, "concurrent", "c", c.MaxConcurrency, "number of parallel downloads")
		fs.StringVarP(&c.OutputDir, "dir", "d", c.OutputDir, "directory to save files into")
		fs.StringArrayVarP(&c.ExtraHeaders, "header", "H", c.ExtraHeaders, "extra header 'Key: Value', repeatable")
		fs.StringVarP(&c.ProxyAddress, "proxy", "p", c.ProxyAddress, "upstream proxy URL (http, https, socks5)")
	}
}

// seconds is a pflag.Value for timeouts: a bare number is whole or
// fractional seconds, anything else must parse as a time.Duration.
type seconds time.Duration

func (s *seconds) String() string {
	return strconv.FormatFloat(time.Duration(*s).Seconds(), 'f', -1, 64)
}

func (s *seconds) Set(v string) error {
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		*s = seconds(f * float64(time.Second))
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("want seconds or a duration, got %q", v)
	}
	*s = seconds(d)
	return nil
}

func (s *seconds) Type() string { return "seconds" }

// Validate rejects configurations that must not start a run.
func (c Config) Validate() error {
	if c.MaxConcurrency < 1 {
		return domain.NewConfigError("max_concurrency", "must be >= 1, got %d", c.MaxConcurrency)
	}
	if c.MaxConcurrency > MaxConcurrencyCeiling {
		return domain.NewConfigError("max_concurrency", "must be <= %d, got %d", MaxConcurrencyCeiling, c.MaxConcurrency)
	}
	if c.Timeout <= 0 {
		return domain.NewConfigError("timeout_seconds", "must be positive, got %s", c.Timeout)
	}
	switch c.Resolver {
	case "native", "dns", "process":
	default:
		return domain.NewConfigError("resolver", "unknown backend %q", c.Resolver)
	}
	if strings.TrimSpace(c.Method) == "" {
		return domain.NewConfigError("method", "must not be empty")
	}
	if _, err := c.Headers(); err != nil {
		return err
	}
	if c.ProxyAddress != "" {
		u, err := url.Parse(c.ProxyAddress)
		if err != nil || u.Host == "" {
			return domain.NewConfigError("proxy_address", "cannot parse %q", c.ProxyAddress)
		}
		switch u.Scheme {
		case "http", "https", "socks5", "socks5h":
		default:
			return domain.NewConfigError("proxy_address", "unsupported scheme %q", u.Scheme)
		}
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return domain.NewConfigError("log_level", "%v", err)
	}
	return nil
}

// Headers parses ExtraHeaders into a map. Later entries win.
func (c Config) Headers() (map[string]string, error) {
	out := make(map[string]string, len(c.ExtraHeaders))
	for _, h := range c.ExtraHeaders {
		k, v, ok := strings.Cut(h, ":")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, domain.NewConfigError("extra_headers", "invalid header %q, use 'Key: Value'", h)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}
