package transport

import (
	"bufio"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

// sseStream adapts an SSE response body to the raw-line llm.Stream contract.
// The ssestream decoder handles event framing (multi-line data fields, CRLF,
// comments); each framed event is re-presented as a single data line so the
// wire decoders see one line per event regardless of how the provider split
// its frames.
type sseStream struct {
	res     *http.Response
	decoder ssestream.Decoder
	line    string
}

func newSSEStream(res *http.Response) *sseStream {
	return &sseStream{
		res:     res,
		decoder: ssestream.NewDecoder(res),
	}
}

// Next advances to the next event's data line.
func (s *sseStream) Next() bool {
	if !s.decoder.Next() {
		return false
	}
	// The decoder terminates each data field with '\n'; a Line carries no
	// terminator, so strip the one the final field left behind.
	s.line = "data: " + strings.TrimSuffix(string(s.decoder.Event().Data), "\n")
	return true
}

// Line returns the current raw data line.
func (s *sseStream) Line() string {
	return s.line
}

// Err returns any error encountered while reading the stream.
func (s *sseStream) Err() error {
	return s.decoder.Err()
}

// Close closes the underlying response body.
func (s *sseStream) Close() error {
	return s.decoder.Close()
}

// ndjsonStream yields one JSON object per line from a newline-delimited
// response body.
type ndjsonStream struct {
	res     *http.Response
	scanner *bufio.Scanner
}

func newNDJSONStream(res *http.Response) *ndjsonStream {
	scanner := bufio.NewScanner(res.Body)
	// Single chunks can carry large tool results or long completions.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &ndjsonStream{
		res:     res,
		scanner: scanner,
	}
}

// Next advances to the next line.
func (s *ndjsonStream) Next() bool {
	return s.scanner.Scan()
}

// Line returns the current raw line.
func (s *ndjsonStream) Line() string {
	return s.scanner.Text()
}

// Err returns any error encountered while reading the stream.
func (s *ndjsonStream) Err() error {
	return s.scanner.Err()
}

// Close closes the underlying response body.
func (s *ndjsonStream) Close() error {
	return s.res.Body.Close()
}
