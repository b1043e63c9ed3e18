package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"strings"
	"time"

	"animelink/internal/logging"
	"animelink/internal/notifications"
	"animelink/internal/ratelimit"
	"animelink/internal/services"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "animelink/0.1.0"
	maxResponseBytes = 16 << 20
)

// Request is one GraphQL query. Token overrides the gateway's TokenSource.
type Request struct {
	Query     string
	Variables map[string]any
	Token     string
}

// Result is the classified outcome of a query.
type Result struct {
	Data   json.RawMessage
	Errors []UpstreamError
	Status int
	// Empty is set for a 404: absent, not failed.
	Empty bool
}

// OK reports whether the result carries data and no errors.
func (r Result) OK() bool {
	return !r.Empty && len(r.Errors) == 0 && len(r.Data) > 0 && string(r.Data) != "null"
}

// Err folds Errors into one error that matches services.ErrUpstream.
func (r Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	messages := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		messages = append(messages, e.Error())
	}
	return services.Wrap(services.ErrUpstream, "gateway", "query", strings.Join(messages, "; "), nil)
}

// TokenSource supplies the bearer token for requests without one.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed TokenSource. The empty token sends no header.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token(context.Context) (string, error) { return strings.TrimSpace(string(s)), nil }

// Gateway posts queries to one endpoint under a limiter.
type Gateway struct {
	endpoint   string
	limiter    *ratelimit.Limiter
	httpClient *http.Client
	tokens     TokenSource
	sink       notifications.Sink
	logger     *slog.Logger
	userAgent  string
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		if client != nil {
			g.httpClient = client
		}
	}
}

// WithTokenSource sets the fallback token source.
func WithTokenSource(src TokenSource) Option {
	return func(g *Gateway) { g.tokens = src }
}

// WithSink sets where surfaced failures are reported. Wrap blocking sinks in
// a notifications.Dispatcher.
func WithSink(sink notifications.Sink) Option {
	return func(g *Gateway) {
		if sink != nil {
			g.sink = sink
		}
	}
}

// WithLogger sets the gateway logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logging.NewComponentLogger(logger, "gateway")
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(g *Gateway) {
		if ua = strings.TrimSpace(ua); ua != "" {
			g.userAgent = ua
		}
	}
}

// WithTimeout sets the per-attempt HTTP timeout on the default client.
func WithTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		if timeout > 0 {
			g.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// New constructs a Gateway. The limiter should be built with
// ratelimit.WithClassifier(gateway.Classify).
func New(endpoint string, limiter *ratelimit.Limiter, opts ...Option) *Gateway {
	g := &Gateway{
		endpoint:   strings.TrimSpace(endpoint),
		limiter:    limiter,
		httpClient: &http.Client{Timeout: defaultTimeout},
		tokens:     StaticToken(""),
		sink:       notifications.Noop{},
		logger:     logging.NewComponentLogger(logging.NewNop(), "gateway"),
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Do sends req and classifies the response. A non-nil error means the
// limiter gave up (transport failure, retries exhausted) or ctx ended.
// Structured upstream errors are returned in Result.Errors with a nil error.
func (g *Gateway) Do(ctx context.Context, req Request) (Result, error) {
	if g.limiter == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "gateway", "do", "limiter not configured", nil)
	}
	payload, err := encodeRequest(req)
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "gateway", "encode", "", err)
	}
	token := strings.TrimSpace(req.Token)
	if token == "" && g.tokens != nil {
		token, err = g.tokens.Token(ctx)
		if err != nil {
			return Result{}, services.Wrap(services.ErrConfiguration, "gateway", "token", "", err)
		}
	}

	res, err := ratelimit.Do(ctx, g.limiter, func(ctx context.Context) (Result, error) {
		return g.send(ctx, payload, token)
	})
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, err
		}
		var rl *RateLimitedError
		if errors.As(err, &rl) && rl.Status != http.StatusTooManyRequests {
			res = Result{Status: rl.Status, Errors: []UpstreamError{{Status: rl.Status, Message: http.StatusText(rl.Status)}}}
			g.report(ctx, res.Err())
			return res, nil
		}
		g.report(ctx, err)
		return Result{}, err
	}
	if len(res.Errors) > 0 {
		g.report(ctx, res.Err())
	}
	return res, nil
}

func (g *Gateway) send(ctx context.Context, payload []byte, token string) (Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("catalog request: new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", g.userAgent)
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, &TransportError{Err: fmt.Errorf("read body: %w", err)}
	}

	status := resp.StatusCode
	switch status {
	case http.StatusNotFound:
		return Result{Status: status, Empty: true}, nil
	case http.StatusTooManyRequests, http.StatusInternalServerError:
		retryAfter, ok := parseRetryAfter(resp.Header.Get("Retry-After"))
		return Result{}, &RateLimitedError{Status: status, RetryAfter: retryAfter, HasRetryAfter: ok, Body: string(body)}
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)
	if status >= 200 && status < 300 {
		if decodeErr != nil {
			g.logger.Debug("catalog response decode failed", logging.Int("status", status), logging.Error(decodeErr))
			return Result{Status: status, Errors: []UpstreamError{{Status: status, Message: "decode response: " + decodeErr.Error()}}}, nil
		}
		return Result{Status: status, Data: env.Data, Errors: fillStatus(env.Errors, 0)}, nil
	}
	if decodeErr == nil && len(env.Errors) > 0 {
		return Result{Status: status, Errors: fillStatus(env.Errors, status)}, nil
	}
	return Result{Status: status, Errors: []UpstreamError{{Status: status, Message: http.StatusText(status)}}}, nil
}

func (g *Gateway) report(ctx context.Context, err error) {
	if err == nil {
		return
	}
	logging.WarnWithContext(logging.WithContext(ctx, g.logger), "catalog request failed", "catalog_request_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "try again in a minute"),
		logging.String(logging.FieldImpact, "affected titles fall back to cached data or stay unresolved"),
	)
	_ = g.sink.Notify(ctx, notifications.KindError, "Failed making request to the catalog. Try again in a minute.\n"+err.Error())
}

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []UpstreamError `json:"errors"`
}

type requestBody struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func encodeRequest(req Request) ([]byte, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, errors.New("empty query")
	}
	vars := map[string]any{"page": 1, "perPage": 50, "sort": "TRENDING_DESC"}
	maps.Copy(vars, req.Variables)
	return json.Marshal(requestBody{Query: compactQuery(req.Query), Variables: vars})
}

// compactQuery collapses whitespace runs so aliased batch queries stay small.
func compactQuery(q string) string {
	return strings.Join(strings.Fields(q), " ")
}

func fillStatus(errs []UpstreamError, status int) []UpstreamError {
	if status == 0 {
		return errs
	}
	for i := range errs {
		if errs[i].Status == 0 {
			errs[i].Status = status
		}
	}
	return errs
}
