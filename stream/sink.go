// Package stream renders decoded model output into a text sink under
// timer-based, line-boundary-aware buffering, with cooperative cancellation
// and all-or-nothing abort rollback.
package stream

// Offset is a byte position in a sink's destination.
type Offset int64

// Sink is the text destination for one session's output. Implementations are
// assumed single-writer per destination region; callers serialize access when
// multiple sessions could target the same destination.
type Sink interface {
	// Write inserts text at the given offset.
	Write(text string, at Offset) error
	// CurrentOffset reports the position where the next session should begin
	// writing.
	CurrentOffset() Offset
	// Advance returns the offset after writing by bytes at the given offset.
	Advance(at Offset, by int) Offset
	// EraseRange removes previously written text in [from, to). Used for
	// abort rollback.
	EraseRange(from, to Offset) error
}
