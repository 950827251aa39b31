package stream

import (
	"strings"

	"github.com/aschepis/backscratcher/scribe/llm"
	"github.com/aschepis/backscratcher/scribe/llm/wire"
	"github.com/rs/zerolog"
)

// citationsHeader introduces the citation block appended after the response
// body.
const citationsHeader = "\n\nSources:\n"

// Session owns the per-request streaming state: a wire decoder, an output
// buffer, and the abort flag. One Session consumes exactly one provider
// stream and is discarded afterwards; it never outlives the request.
type Session struct {
	decoder *wire.Decoder
	buffer  *OutputBuffer
	sink    Sink
	token   *CancellationToken
	start   Offset
	text    strings.Builder
	logger  zerolog.Logger
}

// Result is the outcome of one consumed stream.
type Result struct {
	Turn      *llm.ModelTurn
	Citations []string
	Aborted   bool
}

// NewSession creates a session that decodes format lines and renders them
// into sink. The session starts writing at the sink's current offset; on
// abort everything written after that point is erased.
func NewSession(format wire.Format, sink Sink, token *CancellationToken, logger zerolog.Logger) *Session {
	return &Session{
		decoder: wire.NewDecoder(format, logger),
		buffer:  NewOutputBuffer(sink, logger),
		sink:    sink,
		token:   token,
		start:   sink.CurrentOffset(),
		logger:  logger.With().Str("component", "stream_session").Logger(),
	}
}

// Consume reads the provider stream to completion, buffering decoded deltas
// into the sink. The cancellation token is checked between chunks, never
// mid-decode. The stream is closed before Consume returns.
//
// On abort the result is {Turn with empty text, Aborted: true} and all sink
// content written by this session is erased. A transport read failure is
// returned as an error value after the same rollback.
func (s *Session) Consume(providerStream llm.Stream) (*Result, error) {
	defer providerStream.Close()
	s.buffer.Start()

	for providerStream.Next() {
		if s.token.Aborted() {
			return s.abort()
		}
		delta := s.decoder.Decode(providerStream.Line())
		if delta == nil {
			continue
		}
		if delta.Text != "" {
			s.buffer.Append(delta.Text)
			s.text.WriteString(delta.Text)
		}
	}
	if err := providerStream.Err(); err != nil {
		s.rollback()
		return nil, llm.NewNetworkError("stream read failed", err)
	}
	if s.token.Aborted() {
		return s.abort()
	}
	return s.complete()
}

// complete finalizes a normally terminated stream: flush the buffer
// remainder, then append the citation block once at the very end.
func (s *Session) complete() (*Result, error) {
	if err := s.buffer.Stop(); err != nil {
		s.logger.Warn().Err(err).Msg("final flush failed")
	}

	citations := s.decoder.Citations()
	if len(citations) > 0 {
		block := renderCitations(citations)
		if err := s.sink.Write(block, s.buffer.Cursor()); err != nil {
			s.logger.Warn().Err(err).Msg("citation block write failed")
		}
		s.text.WriteString(block)
	}

	return &Result{
		Turn: &llm.ModelTurn{
			Text:       s.text.String(),
			ToolCalls:  s.decoder.ToolCalls(),
			StopReason: s.decoder.StopReason(),
		},
		Citations: citations,
	}, nil
}

// abort discards unflushed content, rolls back flushed content, and resets
// the token so the next session starts clean. Abort is all-or-nothing: the
// sink never keeps a half-written response.
func (s *Session) abort() (*Result, error) {
	s.logger.Debug().Msg("stream aborted")
	s.rollback()
	s.token.Reset()
	return &Result{
		Turn:    &llm.ModelTurn{},
		Aborted: true,
	}, nil
}

// rollback discards the buffer and erases everything this session wrote.
func (s *Session) rollback() {
	end := s.buffer.Cursor()
	s.buffer.Discard()
	if end > s.start {
		if err := s.sink.EraseRange(s.start, end); err != nil {
			s.logger.Warn().Err(err).Msg("rollback erase failed")
		}
	}
}

// renderCitations formats the citation block appended after the response
// body. Order is first-seen; the decoder already deduplicated.
func renderCitations(citations []string) string {
	var b strings.Builder
	b.WriteString(citationsHeader)
	for _, c := range citations {
		b.WriteString("- ")
		b.WriteString(c)
		b.WriteString("\n")
	}
	return b.String()
}
