package notify

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/iptv-companion/internal/domain/fixture"
	"github.com/riskibarqy/iptv-companion/internal/platform/logging"
	"github.com/riskibarqy/iptv-companion/internal/platform/resilience"
	"github.com/riskibarqy/iptv-companion/internal/usecase"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var errQStashTransient = crerr.New("qstash transient failure")

var _ usecase.GoalNotifier = (*QStashNotifier)(nil)

type QStashConfig struct {
	BaseURL   string
	Token     string
	TargetURL string
	Retries   int
	Timeout   time.Duration
	// ForwardToken is passed to the target as X-Notify-Token.
	ForwardToken   string
	CircuitBreaker resilience.CircuitBreakerConfig
}

// QStashNotifier publishes goal events to a webhook through QStash, which
// owns delivery retries.
type QStashNotifier struct {
	client         *http.Client
	baseURL        string
	token          string
	targetURL      string
	retries        int
	forwardToken   string
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
}

type goalMessage struct {
	Kind       string `json:"kind"`
	FixtureID  string `json:"fixtureId"`
	MatchTitle string `json:"matchTitle"`
	Score      string `json:"score"`
	Scorer     string `json:"scorer"`
	Minute     string `json:"minute"`
}

func NewQStashNotifier(cfg QStashConfig, logger *logging.Logger) (*QStashNotifier, error) {
	baseURL, err := validateHTTPBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, crerr.Wrap(err, "invalid QSTASH_BASE_URL")
	}
	targetURL, err := validateHTTPBaseURL(cfg.TargetURL)
	if err != nil {
		return nil, crerr.Wrap(err, "invalid QSTASH_TARGET_URL")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, crerr.New("QSTASH_TOKEN is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &QStashNotifier{
		client:         &http.Client{Timeout: timeout},
		baseURL:        baseURL,
		token:          strings.TrimSpace(cfg.Token),
		targetURL:      targetURL,
		retries:        cfg.Retries,
		forwardToken:   strings.TrimSpace(cfg.ForwardToken),
		logger:         logger.Named("notify"),
		breaker:        resilience.NewCircuitBreaker(cfg.CircuitBreaker),
		circuitEnabled: cfg.CircuitBreaker.Enabled,
	}, nil
}

func (n *QStashNotifier) NotifyGoal(ctx context.Context, event fixture.GoalEvent) error {
	if !n.circuitEnabled {
		return n.publish(ctx, event)
	}
	err := n.breaker.Do(func() error { return n.publish(ctx, event) }, isTransient)
	if stderrors.Is(err, resilience.ErrCircuitOpen) {
		n.logger.WarnContext(ctx, "qstash circuit breaker rejected goal", "fixture_id", event.FixtureID, "state", n.breaker.State())
		return fmt.Errorf("%w: qstash is temporarily unavailable", usecase.ErrDependencyUnavailable)
	}
	return err
}

func (n *QStashNotifier) publish(ctx context.Context, event fixture.GoalEvent) error {
	body, err := sonic.Marshal(goalMessage{
		Kind:       string(event.Kind),
		FixtureID:  event.FixtureID,
		MatchTitle: event.MatchTitle,
		Score:      event.ScoreLabel,
		Scorer:     event.Scorer,
		Minute:     event.MinuteLabel,
	})
	if err != nil {
		return crerr.Wrap(err, "marshal goal message")
	}

	publishURL := n.baseURL + "/v2/publish/" + n.targetURL
	dedupID := deduplicationID(event)
	preview := buildCurlPreview(publishURL, n.retries, dedupID, string(body), n.forwardToken != "")

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(
			attribute.String("qstash.publish_url", publishURL),
			attribute.String("qstash.deduplication_id", dedupID),
			attribute.String("qstash.request_curl_preview", preview),
		)
	}
	n.logger.DebugContext(ctx, "qstash publish request", "fixture_id", event.FixtureID, "curl_preview", preview)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, publishURL, bytes.NewReader(body))
	if err != nil {
		return crerr.Wrap(err, "create qstash request")
	}
	req.Header.Set("Authorization", "Bearer "+n.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Upstash-Method", http.MethodPost)
	req.Header.Set("Upstash-Deduplication-Id", dedupID)
	if n.retries > 0 {
		req.Header.Set("Upstash-Retries", strconv.Itoa(n.retries))
	}
	if n.forwardToken != "" {
		req.Header.Set("Upstash-Forward-X-Notify-Token", n.forwardToken)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: publish goal fixture_id=%s: %v", errQStashTransient, event.FixtureID, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if isRetryableStatus(resp.StatusCode) {
			return fmt.Errorf("%w: publish goal status=%d body=%s", errQStashTransient, resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return fmt.Errorf("publish goal status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	n.logger.InfoContext(ctx, "goal published", "fixture_id", event.FixtureID, "kind", event.Kind, "score", event.ScoreLabel)
	return nil
}

// deduplicationID is stable for one score change so QStash drops repeats.
func deduplicationID(event fixture.GoalEvent) string {
	score := strings.ReplaceAll(event.ScoreLabel, " ", "")
	return "goal-" + event.FixtureID + "-" + score + "-" + strings.ToLower(string(event.Kind))
}

func validateHTTPBaseURL(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", crerr.New("value is empty")
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", crerr.Wrapf(err, "parse %q", candidate)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", crerr.Newf("%q uses unsupported scheme=%q; expected http or https", candidate, parsed.Scheme)
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return "", crerr.Newf("%q has empty host", candidate)
	}
	return strings.TrimRight(candidate, "/"), nil
}

func buildCurlPreview(publishURL string, retries int, dedupID, body string, withForwardToken bool) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	appendPart := func(part string) {
		if buf.Len() > 0 {
			_ = buf.WriteByte(' ')
		}
		_, _ = buf.WriteString(part)
	}
	header := func(value string) {
		appendPart("-H")
		appendPart(shellQuote(value))
	}

	appendPart("curl -X POST")
	appendPart(shellQuote(publishURL))
	header("Authorization: Bearer ***")
	header("Content-Type: application/json")
	header("Upstash-Deduplication-Id: " + dedupID)
	if retries > 0 {
		header("Upstash-Retries: " + strconv.Itoa(retries))
	}
	if withForwardToken {
		header("Upstash-Forward-X-Notify-Token: ***")
	}
	appendPart("-d")
	appendPart(shellQuote(body))

	return buf.String()
}

func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "'\"'\"'") + "'"
}

func isTransient(err error) bool {
	return err != nil && stderrors.Is(err, errQStashTransient)
}

func isRetryableStatus(statusCode int) bool {
	return statusCode == http.StatusRequestTimeout ||
		statusCode == http.StatusTooManyRequests ||
		statusCode >= http.StatusInternalServerError
}
