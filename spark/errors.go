package spark

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	// maxBodyPrefix bounds how much of an offending body a DecodeError keeps
	maxBodyPrefix = 512
	// maxErrorBody bounds how much of a non-2xx body is read
	maxErrorBody = 64 << 10
)

// ConfigurationError reports an invalid client configuration
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("spark: invalid %s: %s", e.Field, e.Reason)
}

// RequestError reports a failure to send a request or read its response,
// such as a DNS error, a refused connection, a timeout or a cancelled context.
type RequestError struct {
	Method string
	URL    string
	Err    error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("spark: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// HTTPStatusError reports a non-2xx response. Body holds the raw response
// body as sent by the server, cut at 64 KiB.
type HTTPStatusError struct {
	StatusCode int
	Status     string
	Body       string
}

// newHTTPStatusError reads at most maxErrorBody bytes of the reply. The
// status is what failed, so a body that cannot be read is reported as far
// as it got.
func newHTTPStatusError(resp *http.Response) *HTTPStatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
}

func (e *HTTPStatusError) Error() string {
	msg := summarizeBody([]byte(e.Body))
	if msg == "" {
		return fmt.Sprintf("spark: server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("spark: server returned status %d: %s", e.StatusCode, msg)
}

// DecodeError reports a response body (or stream line) that could not be
// decoded. Body is a bounded prefix of the offending input.
type DecodeError struct {
	Body string
	Err  error
}

func newDecodeError(body []byte, err error) *DecodeError {
	return &DecodeError{Body: truncateBytes(body, maxBodyPrefix), Err: err}
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("spark: decoding response: %v (body: %q)", e.Err, e.Body)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func truncateBytes(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return strings.ToValidUTF8(string(b[:max]), "") + "..."
}
