package footballdata

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/iptv-companion/internal/domain/fixture"
	"github.com/riskibarqy/iptv-companion/internal/platform/cache"
	"github.com/riskibarqy/iptv-companion/internal/platform/logging"
	"github.com/riskibarqy/iptv-companion/internal/platform/resilience"
	"github.com/riskibarqy/iptv-companion/internal/usecase"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
)

const (
	defaultBaseURL   = "https://api.football-data.org/v4"
	authHeader       = "X-Auth-Token"
	detailCacheTTL   = 30 * time.Second
	maxResponseBytes = 4 << 20
)

var errFootballDataTransient = crerr.New("football-data transient failure")

var _ usecase.FixtureProvider = (*Client)(nil)

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Token          string
	Timeout        time.Duration
	MaxRetries     int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client talks to the football-data.org v4 API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	token          string
	maxRetries     int
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         singleflight.Group
	details        *cache.Store[detailResult]
	backoff        func(attempt int) time.Duration
}

type detailResult struct {
	detail fixture.GoalDetail
	ok     bool
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.Named("footballdata")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	breaker := resilience.NewCircuitBreaker(cfg.CircuitBreaker)
	breaker.OnStateChange(func(from, to resilience.CircuitState) {
		logger.Warn("football-data circuit breaker state changed", "from", from, "to", to)
	})

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		token:          strings.TrimSpace(cfg.Token),
		maxRetries:     max(cfg.MaxRetries, 0),
		logger:         logger,
		breaker:        breaker,
		circuitEnabled: cfg.CircuitBreaker.Enabled,
		details:        cache.NewStore[detailResult](detailCacheTTL),
		backoff:        func(attempt int) time.Duration { return time.Duration(attempt+1) * time.Second },
	}
}

// Configured reports whether an API token is set.
func (c *Client) Configured() bool {
	return c != nil && c.token != ""
}

// FetchMatches lists matches with a kickoff date in [dateFrom, dateTo] (YYYY-MM-DD).
func (c *Client) FetchMatches(ctx context.Context, dateFrom, dateTo string) ([]usecase.ProviderMatch, error) {
	var payload matchesEnvelope
	query := url.Values{}
	query.Set("dateFrom", dateFrom)
	query.Set("dateTo", dateTo)
	if err := c.doJSON(ctx, "/matches", query, &payload); err != nil {
		return nil, fmt.Errorf("fetch matches dateFrom=%s dateTo=%s: %w", dateFrom, dateTo, err)
	}
	if payload.Matches == nil {
		return nil, crerr.Newf("matches payload missing: %s", payload.describe())
	}
	return mapMatches(*payload.Matches), nil
}

// FetchLiveMatches lists matches currently in play.
func (c *Client) FetchLiveMatches(ctx context.Context) ([]usecase.ProviderMatch, error) {
	var payload matchesEnvelope
	query := url.Values{}
	query.Set("status", "IN_PLAY")
	if err := c.doJSON(ctx, "/matches", query, &payload); err != nil {
		return nil, fmt.Errorf("fetch live matches: %w", err)
	}
	if payload.Matches == nil {
		return nil, crerr.Newf("live matches payload missing: %s", payload.describe())
	}
	return mapMatches(*payload.Matches), nil
}

// FetchMatchDetail returns the last goal of a match. Results are cached
// briefly so repeated events for one match share a lookup.
func (c *Client) FetchMatchDetail(ctx context.Context, matchID string) (fixture.GoalDetail, bool, error) {
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return fixture.GoalDetail{}, false, fmt.Errorf("%w: match id is required", usecase.ErrInvalidInput)
	}

	out, err := c.details.GetOrLoad(ctx, matchID, func(ctx context.Context) (detailResult, error) {
		var payload matchDetailPayload
		if err := c.doJSON(ctx, "/matches/"+url.PathEscape(matchID), nil, &payload); err != nil {
			return detailResult{}, fmt.Errorf("fetch match detail id=%s: %w", matchID, err)
		}
		detail, ok := payload.lastGoal()
		return detailResult{detail: detail, ok: ok}, nil
	})
	if err != nil {
		return fixture.GoalDetail{}, false, err
	}
	return out.detail, out.ok, nil
}

func (c *Client) doJSON(ctx context.Context, path string, query url.Values, target any) error {
	if c.token == "" {
		return fmt.Errorf("%w: football-data token is not configured", usecase.ErrDependencyUnavailable)
	}

	fullURL := c.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		fullURL += "?" + encoded
	}

	out, err, _ := c.flight.Do(fullURL, func() (any, error) {
		if !c.circuitEnabled {
			return c.executeRequest(ctx, fullURL)
		}

		var raw []byte
		err := c.breaker.Do(func() error {
			var reqErr error
			raw, reqErr = c.executeRequest(ctx, fullURL)
			return reqErr
		}, isTransient)
		if stderrors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.WarnContext(ctx, "football-data circuit breaker rejected request", "state", c.breaker.State())
			return nil, fmt.Errorf("%w: fixture provider is temporarily unavailable", usecase.ErrDependencyUnavailable)
		}
		return raw, err
	})
	if err != nil {
		return err
	}

	raw, ok := out.([]byte)
	if !ok {
		return crerr.Newf("unexpected response payload type %T", out)
	}
	if err := sonic.Unmarshal(raw, target); err != nil {
		return crerr.Wrap(err, "decode provider payload")
	}
	return nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, crerr.Wrap(err, "build request")
		}
		req.Header.Set("accept", "application/json")
		req.Header.Set(authHeader, c.token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: send request: %s", errFootballDataTransient, c.sanitize(err.Error()))
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("%w: read response body: %v", errFootballDataTransient, readErr)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return raw, nil
			case isRetryableStatus(resp.StatusCode):
				lastErr = fmt.Errorf("%w: provider status=%d body=%s", errFootballDataTransient, resp.StatusCode, abbreviateBody(raw))
			default:
				return nil, fmt.Errorf("provider status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
			}
		}

		if attempt == c.maxRetries {
			break
		}
		timer := time.NewTimer(c.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = crerr.New("provider request failed")
	}
	c.logger.WarnContext(ctx, "football-data request failed", "url", fullURL, "error", lastErr)
	return nil, lastErr
}

func (c *Client) sanitize(value string) string {
	value = strings.TrimSpace(value)
	if c.token != "" {
		value = strings.ReplaceAll(value, c.token, "REDACTED")
	}
	return value
}

func isTransient(err error) bool {
	return err != nil && stderrors.Is(err, errFootballDataTransient)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}
