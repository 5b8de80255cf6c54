// Package spark is a client for the Information Science Spark chat API.
//
// A Client posts role/content messages to the chat endpoint and returns
// either one assembled ChatResult (Chat) or a Stream of incremental
// ChatChunk values (ChatStream).
package spark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Version is reported in the default User-Agent
const Version = "0.1.0"

const (
	// DefaultBaseURL is the production Spark API
	DefaultBaseURL = "https://4300spark.infosci.cornell.edu"
	// DefaultTimeout bounds a buffered chat request
	DefaultTimeout = 120 * time.Second

	chatPath = "/api/chat"
)

const tracerName = "github.com/MrPeterss/infosci-spark-client/spark"

// Config holds configuration for creating a Client
type Config struct {
	APIKey  string
	BaseURL string
	// Timeout applies to buffered requests only. Streams are bounded by
	// the caller's context.
	Timeout time.Duration
	// HTTPClient replaces both the buffered and the streaming HTTP client.
	HTTPClient *http.Client
	Logger     *slog.Logger
	UserAgent  string
}

// Client handles communication with the Spark API. It is safe for
// concurrent use and holds no per-call state.
type Client struct {
	apiKey          string
	baseURL         string
	chatURL         string
	userAgent       string
	httpClient      *http.Client
	streamingClient *http.Client
	logger          *slog.Logger
	tracer          trace.Tracer
}

// New creates a new Spark client
func New(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, &ConfigurationError{Field: "api key", Reason: "must not be empty"}
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &ConfigurationError{Field: "base url", Reason: fmt.Sprintf("%q is not an absolute URL", cfg.BaseURL)}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "infosci-spark-client-go/" + Version
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Client{
		apiKey:          apiKey,
		baseURL:         baseURL,
		chatURL:         baseURL + chatPath,
		userAgent:       userAgent,
		httpClient:      &http.Client{Timeout: timeout},
		streamingClient: &http.Client{},
		logger:          logger,
		tracer:          otel.Tracer(tracerName),
	}
	if cfg.HTTPClient != nil {
		c.httpClient = cfg.HTTPClient
		c.streamingClient = cfg.HTTPClient
	}
	return c, nil
}

// BaseURL returns the normalized base URL the client posts to
func (c *Client) BaseURL() string { return c.baseURL }

// Chat sends a non-streaming chat request and returns the complete reply
func (c *Client) Chat(ctx context.Context, messages []Message, opts ChatOptions) (ChatResult, error) {
	requestID := uuid.NewString()
	ctx, span := c.startSpan(ctx, "spark.Chat", requestID, messages, false, opts)
	defer span.End()

	resp, err := c.post(ctx, c.httpClient, requestID, newChatRequest(messages, false, opts))
	if err != nil {
		recordError(span, err)
		return ChatResult{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if !isSuccess(resp.StatusCode) {
		err := newHTTPStatusError(resp)
		c.logger.Debug("spark chat failed", "request_id", requestID, "status", resp.StatusCode)
		recordError(span, err)
		return ChatResult{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		err = &RequestError{Method: http.MethodPost, URL: c.chatURL, Err: fmt.Errorf("reading response body: %w", err)}
		recordError(span, err)
		return ChatResult{}, err
	}

	result, err := decodeChatResponse(body, opts.ShowThinking)
	if err != nil {
		recordError(span, err)
		return ChatResult{}, err
	}

	c.logger.Debug("spark chat done",
		"request_id", requestID,
		"content_len", len(result.Content),
		"reasoning_len", len(result.Reasoning))
	return result, nil
}

// ChatStream sends a streaming chat request. The status code is checked
// before returning, so an HTTP failure is reported here and never by the
// stream. The caller must Close the returned stream if it stops reading
// before Next returns io.EOF or an error.
func (c *Client) ChatStream(ctx context.Context, messages []Message, opts ChatOptions) (*Stream, error) {
	requestID := uuid.NewString()
	ctx, span := c.startSpan(ctx, "spark.ChatStream", requestID, messages, true, opts)

	resp, err := c.post(ctx, c.streamingClient, requestID, newChatRequest(messages, true, opts))
	if err != nil {
		recordError(span, err)
		span.End()
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if !isSuccess(resp.StatusCode) {
		err := newHTTPStatusError(resp)
		_ = resp.Body.Close()
		c.logger.Debug("spark stream failed", "request_id", requestID, "status", resp.StatusCode)
		recordError(span, err)
		span.End()
		return nil, err
	}

	c.logger.Debug("spark stream opened",
		"request_id", requestID,
		"content_type", resp.Header.Get("Content-Type"))

	s := newStream(resp.Body, opts.ShowThinking)
	s.logger = c.logger.With("request_id", requestID)
	s.span = span
	s.readErr = func(err error) error {
		return &RequestError{Method: http.MethodPost, URL: c.chatURL, Err: err}
	}
	return s, nil
}

// post marshals the body and executes the request, returning the open response
func (c *Client) post(ctx context.Context, httpClient *http.Client, requestID string, body chatRequest) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("spark: marshalling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL, bytes.NewReader(data))
	if err != nil {
		return nil, &RequestError{Method: http.MethodPost, URL: c.chatURL, Err: err}
	}
	c.setHeaders(httpReq, requestID, body.Stream)

	c.logger.Debug("spark request",
		"request_id", requestID,
		"url", c.chatURL,
		"stream", body.Stream,
		"messages", len(body.Messages))

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, &RequestError{Method: http.MethodPost, URL: c.chatURL, Err: err}
	}
	return resp, nil
}

func (c *Client) setHeaders(req *http.Request, requestID string, stream bool) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	} else {
		req.Header.Set("Accept", "application/json")
	}
}

func (c *Client) startSpan(ctx context.Context, name, requestID string, messages []Message, stream bool, opts ChatOptions) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("spark.request_id", requestID),
			attribute.Bool("spark.stream", stream),
			attribute.Int("spark.messages", len(messages)),
			attribute.Bool("spark.show_thinking", opts.ShowThinking),
			attribute.String("spark.reasoning_level", string(opts.ReasoningLevel)),
		))
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// decodeChatResponse parses a buffered reply body
func decodeChatResponse(body []byte, showThinking bool) (ChatResult, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ChatResult{}, newDecodeError(body, err)
	}

	var result ChatResult
	switch {
	case resp.Choices != nil:
		if len(*resp.Choices) == 0 {
			return ChatResult{}, newDecodeError(body, fmt.Errorf("response has no choices"))
		}
		msg := (*resp.Choices)[0].Message
		result.Content = msg.Content
		result.Reasoning = firstNonEmpty(msg.ReasoningContent, msg.Reasoning)
	case resp.Content != nil:
		result.Content = *resp.Content
		result.Reasoning = resp.Reasoning
	default:
		return ChatResult{}, newDecodeError(body, fmt.Errorf("response has no content field"))
	}

	if !showThinking {
		result.Reasoning = ""
	}
	return result, nil
}
