package spark

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// maxLineSize bounds a single line of the event stream
	maxLineSize = 1 << 20

	doneSentinel = "[DONE]"
)

// Stream is a single-pass sequence of chunks read from an open response.
// It is not safe for concurrent use.
type Stream struct {
	body         io.ReadCloser
	line         *lineRecorder
	scanner      *bufio.Scanner
	showThinking bool

	logger  *slog.Logger
	span    trace.Span
	readErr func(error) error

	chunks  int
	skipped int
	done    bool  // reached the end by itself rather than being abandoned
	err     error // sticky: io.EOF once finished, or the failure

	closeOnce sync.Once
	closeErr  error
}

func newStream(body io.ReadCloser, showThinking bool) *Stream {
	line := &lineRecorder{r: body}
	scanner := bufio.NewScanner(line)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Stream{
		body:         body,
		line:         line,
		scanner:      scanner,
		showThinking: showThinking,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		span:         trace.SpanFromContext(context.Background()),
		readErr:      func(err error) error { return err },
	}
}

// Next blocks until the next chunk is available. It returns io.EOF once the
// server signals the end of the stream or the body ends. Any other error
// ends the stream as well; later calls return the same error.
func (s *Stream) Next() (ChatChunk, error) {
	if s.err != nil {
		return ChatChunk{}, s.err
	}

	for s.scanner.Scan() {
		payload, ok := eventPayload(s.scanner.Bytes())
		if !ok {
			continue
		}

		if string(bytes.TrimSpace(payload)) == doneSentinel {
			s.finish(io.EOF)
			return ChatChunk{}, io.EOF
		}

		var event streamEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			// Skip malformed events, earlier and later chunks are still valid
			s.skipped++
			s.logger.Debug("spark stream: skipping malformed event",
				"error", err,
				"payload", truncateBytes(payload, 128))
			continue
		}

		content, reasoning, final := event.delta()
		if !s.showThinking {
			reasoning = ""
		}

		if content == "" && reasoning == "" {
			if final {
				s.finish(io.EOF)
				return ChatChunk{}, io.EOF
			}
			continue
		}

		s.chunks++
		if final {
			// Deliver the final delta now, end on the next pull
			s.finish(io.EOF)
		}
		return ChatChunk{Content: content, Reasoning: reasoning}, nil
	}

	err := s.scanner.Err()
	switch {
	case err == nil:
		s.finish(io.EOF)
	case errors.Is(err, bufio.ErrTooLong):
		s.finish(newDecodeError(s.line.prefix, err))
	default:
		s.finish(s.readErr(err))
	}
	return ChatChunk{}, s.err
}

// Skipped reports how many malformed events were dropped so far
func (s *Stream) Skipped() int { return s.skipped }

// Err returns the error that ended the stream, or nil if it ended cleanly
// or is still open.
func (s *Stream) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}

// Close releases the underlying connection. It is safe to call more than
// once and after the stream has ended on its own.
func (s *Stream) Close() error {
	if s.err == nil {
		s.err = io.EOF
	}
	s.closeOnce.Do(func() {
		// Bytes after the sentinel are discarded with the connection
		s.closeErr = s.body.Close()

		s.span.SetAttributes(
			attribute.Int("spark.chunks", s.chunks),
			attribute.Int("spark.skipped_events", s.skipped))
		if err := s.Err(); err != nil {
			s.span.RecordError(err)
			s.span.SetStatus(codes.Error, err.Error())
		}
		s.span.End()
		s.logger.Debug("spark stream closed",
			"chunks", s.chunks,
			"skipped", s.skipped,
			"completed", s.done)
	})
	return s.closeErr
}

// finish records the terminal result and releases the connection
func (s *Stream) finish(err error) {
	s.err = err
	s.done = true
	_ = s.Close()
}

// lineRecorder passes reads through and keeps the first bytes of the line
// currently being read, so an over-long line can still be reported.
type lineRecorder struct {
	r      io.Reader
	prefix []byte
}

func (l *lineRecorder) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	chunk := p[:n]
	if i := bytes.LastIndexByte(chunk, '\n'); i >= 0 {
		l.prefix = l.prefix[:0]
		chunk = chunk[i+1:]
	}
	if room := maxBodyPrefix - len(l.prefix); room > 0 {
		l.prefix = append(l.prefix, chunk[:min(room, len(chunk))]...)
	}
	return n, err
}

// eventPayload extracts the JSON payload from one line of the stream.
// Blank lines, SSE comments (keep-alives) and non-data fields are noise.
func eventPayload(line []byte) ([]byte, bool) {
	line = bytes.TrimRight(line, "\r")
	if len(bytes.TrimSpace(line)) == 0 {
		return nil, false
	}

	switch {
	case line[0] == ':':
		return nil, false
	case bytes.HasPrefix(line, []byte("data:")):
		payload := line[len("data:"):]
		payload = bytes.TrimPrefix(payload, []byte(" "))
		if len(bytes.TrimSpace(payload)) == 0 {
			return nil, false
		}
		return payload, true
	case line[0] == '{':
		// NDJSON framing, one bare JSON object per line
		return line, true
	case strings.TrimSpace(string(line)) == doneSentinel:
		return line, true
	}
	return nil, false
}

// Collect reads the stream to the end and concatenates the chunks field by
// field. The stream is closed on return.
func Collect(s *Stream) (ChatResult, error) {
	defer func() { _ = s.Close() }()

	var content, reasoning strings.Builder
	for {
		chunk, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ChatResult{Content: content.String(), Reasoning: reasoning.String()}, err
		}
		content.WriteString(chunk.Content)
		reasoning.WriteString(chunk.Reasoning)
	}
	return ChatResult{Content: content.String(), Reasoning: reasoning.String()}, nil
}
