package spark

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty", "   ", ""},
		{"error string", `{"error":"invalid key"}`, "invalid key"},
		{"error object", `{"error":{"message":"model overloaded","type":"server_error"}}`, "model overloaded"},
		{"message", `{"message":"not found"}`, "not found"},
		{"detail", `{"detail":"Not authenticated"}`, "Not authenticated"},
		{"json without message", `{"status":"bad"}`, `{"status":"bad"}`},
		{"plain text", "upstream   timed\nout", "upstream timed out"},
		{
			"html title",
			"<!DOCTYPE html><html><head><title>502 Bad Gateway</title></head><body><h1>502</h1></body></html>",
			"502 Bad Gateway",
		},
		{
			"html body only",
			"<html><body><script>x()</script><p>Service   Unavailable</p></body></html>",
			"Service Unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, summarizeBody([]byte(tt.body)))
		})
	}
}

func TestSummarizeBodyIsBounded(t *testing.T) {
	got := summarizeBody([]byte(strings.Repeat("word ", 200)))
	assert.LessOrEqual(t, len(got), maxSummaryChars+3)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestDecodeErrorKeepsBoundedPrefix(t *testing.T) {
	body := []byte(strings.Repeat("a", 2*maxBodyPrefix))
	err := newDecodeError(body, assert.AnError)
	assert.Len(t, err.Body, maxBodyPrefix+3)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestHTTPStatusErrorMessage(t *testing.T) {
	err := &HTTPStatusError{StatusCode: 500}
	assert.Equal(t, "spark: server returned status 500", err.Error())

	err = &HTTPStatusError{StatusCode: 401, Body: `{"error":"invalid key"}`}
	assert.Equal(t, "spark: server returned status 401: invalid key", err.Error())
}

func TestEventPayload(t *testing.T) {
	tests := []struct {
		line    string
		payload string
		ok      bool
	}{
		{"", "", false},
		{"  ", "", false},
		{"\r", "", false},
		{": ping", "", false},
		{"event: delta", "", false},
		{"id: 1", "", false},
		{"retry: 500", "", false},
		{"data:", "", false},
		{"data:  ", "", false},
		{`data: {"content":"a"}`, `{"content":"a"}`, true},
		{`data:{"content":"a"}`, `{"content":"a"}`, true},
		{"data: {\"content\":\"a\"}\r", `{"content":"a"}`, true},
		{"data: [DONE]", "[DONE]", true},
		{"[DONE]", "[DONE]", true},
		{`{"content":"a"}`, `{"content":"a"}`, true},
		{"hello", "", false},
	}

	for _, tt := range tests {
		payload, ok := eventPayload([]byte(tt.line))
		assert.Equal(t, tt.ok, ok, "line %q", tt.line)
		assert.Equal(t, tt.payload, string(payload), "line %q", tt.line)
	}
}

func TestNewChatRequest(t *testing.T) {
	req := newChatRequest(nil, true, ChatOptions{})
	assert.NotNil(t, req.Messages)
	assert.Nil(t, req.ReasoningLevel)
	assert.True(t, req.Stream)

	req = newChatRequest([]Message{{Role: RoleUser, Content: "x"}}, false, ChatOptions{ReasoningLevel: ReasoningLow})
	if assert.NotNil(t, req.ReasoningLevel) {
		assert.Equal(t, ReasoningLow, *req.ReasoningLevel)
	}
}

func TestReasoningLevelValid(t *testing.T) {
	for _, l := range []ReasoningLevel{ReasoningLow, ReasoningMedium, ReasoningHigh} {
		assert.True(t, l.Valid())
	}
	assert.False(t, ReasoningLevel("").Valid())
	assert.False(t, ReasoningLevel("max").Valid())
}
