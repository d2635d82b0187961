package probe

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hamed0406/reconpipe/internal/domain"
)

// Saver downloads each target and writes the body into Dir. Unlike the plain
// fetch prober, a non-2xx status is a Failure here. The success value is the
// path of the written file.
type Saver struct {
	Fetch *HTTPProber
	Dir   string
}

func (s *Saver) Probe(ctx context.Context, target domain.Target) domain.Outcome {
	out := s.Fetch.Probe(ctx, target)
	if out.Kind != domain.KindSuccess {
		return out
	}
	r := out.Response
	if r.StatusCode < 200 || r.StatusCode > 299 {
		return domain.Failure(fmt.Sprintf("%d %s", r.StatusCode, http.StatusText(r.StatusCode)))
	}
	if r.Truncated {
		return domain.Failure(fmt.Sprintf("body exceeds %d bytes", s.Fetch.MaxBody))
	}

	dst := filepath.Join(s.Dir, SafeFilename(string(target)))
	if err := os.WriteFile(dst, []byte(r.Body), 0o644); err != nil {
		return domain.Failure(fmt.Sprintf("write %s: %v", dst, err))
	}
	s.Fetch.Logger.Debug("saved",
		zap.String("url", string(target)),
		zap.String("path", dst),
		zap.Int("bytes", len(r.Body)),
	)
	return domain.Success(dst)
}

// SafeFilename is the last path segment of the URL, or the hex MD5 of the URL
// with a .js suffix when that segment is empty (including a trailing slash).
func SafeFilename(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		base := u.Path[strings.LastIndex(u.Path, "/")+1:]
		if base != "" && base != "." && base != ".." {
			return base
		}
	}
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:]) + ".js"
}
