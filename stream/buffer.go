package stream

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Buffering constants. Flushing on line boundaries keeps structured content
// (tables, fenced code blocks) visually stable during incremental rendering;
// the overflow cap bounds memory when a pathological long line (base64 blobs)
// never produces a newline.
const (
	// MaxBufferSize is the overflow threshold above which a flush ignores
	// line boundaries and writes everything.
	MaxBufferSize = 10000
	// FlushInterval is how often the background timer flushes.
	FlushInterval = 200 * time.Millisecond
)

// OutputBuffer batches small deltas between sink writes. Append never does
// I/O; content reaches the sink only through Flush, the background timer, or
// Stop. A failed sink write leaves the buffer intact so the content is
// retried on the next flush.
type OutputBuffer struct {
	sink   Sink
	logger zerolog.Logger

	mu      sync.Mutex
	buf     strings.Builder
	cursor  Offset
	stop    chan struct{}
	started bool
	stopped bool
}

// NewOutputBuffer creates a buffer writing to sink starting at the sink's
// current offset.
func NewOutputBuffer(sink Sink, logger zerolog.Logger) *OutputBuffer {
	return &OutputBuffer{
		sink:   sink,
		logger: logger.With().Str("component", "output_buffer").Logger(),
		cursor: sink.CurrentOffset(),
		stop:   make(chan struct{}),
	}
}

// Start launches the background flush timer. Safe to call once per buffer.
func (b *OutputBuffer) Start() {
	b.mu.Lock()
	if b.started || b.stopped {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()

	go func() {
		ticker := time.NewTicker(FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := b.Flush(); err != nil {
					b.logger.Warn().Err(err).Msg("timer flush failed; content retained")
				}
			case <-b.stop:
				return
			}
		}
	}()
}

// Append adds text to the buffer. No I/O happens here.
func (b *OutputBuffer) Append(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.buf.WriteString(text)
}

// Flush writes buffered content to the sink per the line-boundary policy. If
// another flush (or an append) holds the buffer, this attempt is skipped
// rather than queued; the content persists for the next attempt.
func (b *OutputBuffer) Flush() error {
	if !b.mu.TryLock() {
		return nil
	}
	defer b.mu.Unlock()
	return b.flushLocked(false)
}

// Stop cancels the timer and force-flushes any remaining content, including a
// trailing partial line. Subsequent calls are no-ops.
func (b *OutputBuffer) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return nil
	}
	b.stopped = true
	close(b.stop)
	return b.flushLocked(true)
}

// Discard cancels the timer and drops any unflushed content without writing
// it. Used on abort, where flushed content is rolled back separately.
func (b *OutputBuffer) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.stopped = true
	close(b.stop)
	b.buf.Reset()
}

// Cursor reports the offset one past the last byte flushed to the sink.
func (b *OutputBuffer) Cursor() Offset {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursor
}

// flushLocked implements the flush policy. Callers hold b.mu.
//
//  1. Empty buffer: no-op.
//  2. Above MaxBufferSize (or force): write the whole buffer, ignoring line
//     boundaries.
//  3. Otherwise write up to and including the last newline, retaining the
//     trailing partial line. No newline yet: write nothing.
func (b *OutputBuffer) flushLocked(force bool) error {
	content := b.buf.String()
	if len(content) == 0 {
		return nil
	}

	cut := len(content)
	if !force && len(content) <= MaxBufferSize {
		idx := strings.LastIndexByte(content, '\n')
		if idx < 0 {
			return nil
		}
		cut = idx + 1
	}

	chunk := content[:cut]
	if err := b.sink.Write(chunk, b.cursor); err != nil {
		return err
	}
	b.cursor = b.sink.Advance(b.cursor, len(chunk))
	b.buf.Reset()
	b.buf.WriteString(content[cut:])
	return nil
}
