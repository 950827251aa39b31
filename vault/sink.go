package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aschepis/backscratcher/scribe/stream"
	"github.com/rs/zerolog"
)

// NoteSink is a file-backed stream.Sink that writes streamed output into a
// single note file at byte offsets. The note content is held in memory and
// persisted on every successful write, so a crash loses at most the chunk
// in flight.
type NoteSink struct {
	path   string
	logger zerolog.Logger

	mu      sync.Mutex
	content []byte
}

// NewNoteSink opens (or creates) the note at path inside the vault and
// returns a sink positioned at the end of the existing content.
func (v *Vault) NewNoteSink(path string, logger zerolog.Logger) (*NoteSink, error) {
	abs, err := v.resolve(path)
	if err != nil {
		return nil, err
	}

	var content []byte
	if data, err := os.ReadFile(abs); err == nil { //#nosec 304 -- path validated against vault root
		content = data
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read note %q: %w", path, err)
	}

	return &NoteSink{
		path:    abs,
		logger:  logger.With().Str("component", "note_sink").Str("note", path).Logger(),
		content: content,
	}, nil
}

// Write inserts text at the given byte offset and persists the note. A
// failed persist leaves the in-memory content unchanged so the caller can
// retry the same write.
func (s *NoteSink) Write(text string, at stream.Offset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if at < 0 || int(at) > len(s.content) {
		return fmt.Errorf("write offset %d out of range [0,%d]", at, len(s.content))
	}

	updated := make([]byte, 0, len(s.content)+len(text))
	updated = append(updated, s.content[:at]...)
	updated = append(updated, text...)
	updated = append(updated, s.content[at:]...)

	if err := s.persist(updated); err != nil {
		return err
	}
	s.content = updated
	return nil
}

// CurrentOffset returns the offset just past the existing note content.
func (s *NoteSink) CurrentOffset() stream.Offset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return stream.Offset(len(s.content))
}

// Advance returns the offset after writing by bytes at the given offset.
func (s *NoteSink) Advance(at stream.Offset, by int) stream.Offset {
	return at + stream.Offset(by)
}

// EraseRange removes the bytes in [from, to) and persists the note. Used to
// roll back partially streamed output after an abort.
func (s *NoteSink) EraseRange(from, to stream.Offset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if from < 0 || to < from || int(to) > len(s.content) {
		return fmt.Errorf("erase range [%d,%d) out of range [0,%d]", from, to, len(s.content))
	}
	if from == to {
		return nil
	}

	updated := make([]byte, 0, len(s.content)-int(to-from))
	updated = append(updated, s.content[:from]...)
	updated = append(updated, s.content[to:]...)

	if err := s.persist(updated); err != nil {
		return err
	}
	s.logger.Debug().Int64("from", int64(from)).Int64("to", int64(to)).Msg("Erased note range")
	s.content = updated
	return nil
}

// persist writes content to the note file, creating parent directories as
// needed.
func (s *NoteSink) persist(content []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("failed to create note directory: %w", err)
	}
	if err := os.WriteFile(s.path, content, 0o600); err != nil {
		return fmt.Errorf("failed to write note: %w", err)
	}
	return nil
}
