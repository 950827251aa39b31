// Package transport implements llm.Client over plain HTTP for every supported
// provider family. It owns request construction, authentication headers, and
// HTTP status handling; the raw stream bytes it exposes are decoded elsewhere
// (see llm/wire).
//
// A non-2xx response never panics and never becomes a stream: it is returned
// as an *llm.Error carrying the status code, the response body, and any
// Retry-After hint the provider sent.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/aschepis/backscratcher/scribe/llm"
	"github.com/aschepis/backscratcher/scribe/llm/wire"
	"github.com/rs/zerolog"
)

// maxErrorBodyBytes caps how much of an error response body is retained for
// diagnostics.
const maxErrorBodyBytes = 8 * 1024

const defaultRequestTimeout = 5 * time.Minute

// Transport is an HTTP-level llm.Client for one provider/model pair.
type Transport struct {
	key    llm.ClientKey
	format wire.Format
	http   *http.Client
	logger zerolog.Logger
}

// Option configures a Transport.
type Option func(*Transport)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) {
		t.http = c
	}
}

// New creates a Transport for the given resolved provider key.
func New(key llm.ClientKey, logger zerolog.Logger, opts ...Option) (*Transport, error) {
	if key.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	format := wire.FormatFor(key.Provider)
	if format == wire.Format("") {
		return nil, fmt.Errorf("unsupported provider: %s", key.Provider)
	}

	t := &Transport{
		key:    key,
		format: format,
		http:   &http.Client{Timeout: defaultRequestTimeout},
		logger: logger.With().Str("component", "transport").Str("provider", key.Provider).Logger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Format returns the wire format this transport's streams carry.
func (t *Transport) Format() wire.Format {
	return t.format
}

// Stream implements llm.Client.Stream. The returned stream yields raw wire
// lines; callers decode them with a wire.Decoder for t.Format().
func (t *Transport) Stream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	res, err := t.do(ctx, req, true)
	if err != nil {
		return nil, err
	}
	if t.format == wire.FormatOllama {
		return newNDJSONStream(res), nil
	}
	return newSSEStream(res), nil
}

// Synchronous implements llm.Client.Synchronous by draining a streaming
// request through a decoder. Every provider here supports streaming, so a
// separate non-streaming wire path would just be a second parser to maintain.
func (t *Transport) Synchronous(ctx context.Context, req *llm.Request) (*llm.ModelTurn, error) {
	stream, err := t.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	decoder := wire.NewDecoder(t.format, t.logger)
	var text bytes.Buffer
	for stream.Next() {
		if delta := decoder.Decode(stream.Line()); delta != nil {
			text.WriteString(delta.Text)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, llm.NewNetworkError("stream read failed", err)
	}

	return &llm.ModelTurn{
		Text:       text.String(),
		ToolCalls:  decoder.ToolCalls(),
		StopReason: decoder.StopReason(),
	}, nil
}

// do builds, sends, and status-checks one provider request.
func (t *Transport) do(ctx context.Context, req *llm.Request, stream bool) (*http.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	model := req.Model
	if model == "" {
		model = t.key.Model
	}

	var (
		httpReq *http.Request
		err     error
	)
	switch t.format {
	case wire.FormatOpenAI:
		httpReq, err = t.buildOpenAIRequest(ctx, req, model, stream)
	case wire.FormatAnthropic:
		httpReq, err = t.buildAnthropicRequest(ctx, req, model, stream)
	case wire.FormatGemini:
		httpReq, err = t.buildGeminiRequest(ctx, req, model, stream)
	case wire.FormatOllama:
		httpReq, err = t.buildOllamaRequest(ctx, req, model, stream)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", t.key.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	t.logger.Debug().
		Str("model", model).
		Str("url", httpReq.URL.Path).
		Bool("stream", stream).
		Int("messages", len(req.Messages)).
		Msg("sending provider request")

	res, err := t.http.Do(httpReq)
	if err != nil {
		return nil, llm.NewNetworkError(fmt.Sprintf("%s request failed", t.key.Provider), err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, t.statusError(res)
	}
	return res, nil
}

// statusError converts a non-2xx response into an *llm.Error, consuming and
// closing the body.
func (t *Transport) statusError(res *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBodyBytes))
	res.Body.Close()

	retryAfter := parseRetryAfter(res.Header.Get("Retry-After"))
	msg := fmt.Sprintf("%s returned HTTP %d", t.key.Provider, res.StatusCode)

	t.logger.Warn().
		Int("status", res.StatusCode).
		Str("body", string(body)).
		Msg("provider request rejected")

	return llm.NewTransportError(msg, res.StatusCode, string(body), retryAfter)
}

// parseRetryAfter interprets a Retry-After header value as delay seconds.
// HTTP-date values are ignored; providers here send integer seconds.
func parseRetryAfter(header string) *time.Duration {
	if header == "" {
		return nil
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return nil
	}
	d := time.Duration(secs) * time.Second
	return &d
}
