package xmltvfeed

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"strings"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/iptv-companion/internal/domain/program"
	"github.com/riskibarqy/iptv-companion/internal/platform/logging"
	"github.com/valyala/fasthttp"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxBodyBytes = 64 << 20
	userAgent           = "iptv-companion-guide/1.0"
)

var gzipMagic = []byte{0x1f, 0x8b}

type Config struct {
	Timeout      time.Duration
	MaxBodyBytes int
	Logger       *logging.Logger
}

// Fetcher downloads XMLTV documents, transparently inflating gzip bodies
// whether they are served with Content-Encoding or as a .xml.gz file.
type Fetcher struct {
	client       *fasthttp.Client
	timeout      time.Duration
	maxBodyBytes int
	logger       *logging.Logger
}

var _ program.Fetcher = (*Fetcher)(nil)

func NewFetcher(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	return &Fetcher{
		client: &fasthttp.Client{
			Name:                userAgent,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxResponseBodySize: cfg.MaxBodyBytes,
		},
		timeout:      cfg.Timeout,
		maxBodyBytes: cfg.MaxBodyBytes,
		logger:       logger.Named("xmltvfeed"),
	}
}

func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, crerr.New("guide url is empty")
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAcceptEncoding, "gzip")

	deadline := time.Now().Add(f.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	if err := f.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, crerr.Wrapf(err, "download guide")
	}
	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return nil, crerr.Newf("download guide: status=%d", status)
	}

	body, err := f.decode(resp)
	if err != nil {
		return nil, err
	}

	f.logger.DebugContext(ctx, "guide downloaded",
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return body, nil
}

func (f *Fetcher) decode(resp *fasthttp.Response) ([]byte, error) {
	encoding := strings.ToLower(string(resp.Header.ContentEncoding()))
	if encoding == "gzip" || bytes.HasPrefix(resp.Body(), gzipMagic) {
		return f.inflate(resp.Body())
	}

	// resp is released after Fetch returns.
	return append([]byte(nil), resp.Body()...), nil
}

// inflate caps the decompressed size at maxBodyBytes; the client limit only
// covers the bytes on the wire.
func (f *Fetcher) inflate(compressed []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, crerr.Wrap(err, "inflate guide")
	}
	defer zr.Close()

	body, err := io.ReadAll(io.LimitReader(zr, int64(f.maxBodyBytes)+1))
	if err != nil {
		return nil, crerr.Wrap(err, "inflate guide")
	}
	if len(body) > f.maxBodyBytes {
		return nil, crerr.Newf("inflate guide: body exceeds %d bytes", f.maxBodyBytes)
	}
	return body, nil
}
