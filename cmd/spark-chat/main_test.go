package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrPeterss/infosci-spark-client/internal/history"
	"github.com/MrPeterss/infosci-spark-client/internal/sparktest"
	"github.com/MrPeterss/infosci-spark-client/spark"
)

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	a := newApp()
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := execute(context.Background(), cmd, a)
	return out.String(), errOut.String(), err
}

func serverArgs(t *testing.T, srv *sparktest.Server, extra ...string) []string {
	return append([]string{
		"--api-key", "test-key",
		"--base-url", srv.URL,
		"--history-path", filepath.Join(t.TempDir(), "history.json"),
	}, extra...)
}

func TestAskStreams(t *testing.T) {
	srv := sparktest.NewServer(t)
	srv.Stream(
		`data: {"reasoning":"pondering"}`,
		`data: {"content":"Lobster"}`,
		`: keep-alive`,
		`data: {"content":" rolls."}`,
		`data: [DONE]`,
	)

	out, errOut, err := run(t, "", append([]string{"ask"}, serverArgs(t, srv, "--show-thinking", "--reasoning-level", "low", "best", "seafood?")...)...)
	require.NoError(t, err)
	assert.Equal(t, "Lobster rolls.\n", out)
	assert.Contains(t, errOut, "pondering")

	req := srv.LastRequest(t)
	assert.True(t, req.Body.Stream)
	assert.True(t, req.Body.ShowThinking)
	require.NotNil(t, req.Body.ReasoningLevel)
	assert.Equal(t, "low", *req.Body.ReasoningLevel)
	require.Len(t, req.Body.Messages, 2)
	assert.Equal(t, spark.RoleSystem, req.Body.Messages[0].Role)
	assert.Equal(t, "best seafood?", req.Body.Messages[1].Content)
}

func TestAskBufferedFromStdin(t *testing.T) {
	srv := sparktest.NewServer(t)
	srv.Respond(http.StatusOK, `{"content":"hello","reasoning":"hidden"}`)

	out, errOut, err := run(t, "say hi\n", append([]string{"ask", "--no-stream"}, serverArgs(t, srv)...)...)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
	assert.NotContains(t, errOut, "hidden")

	req := srv.LastRequest(t)
	assert.False(t, req.Body.Stream)
	assert.Equal(t, "say hi", req.Body.Messages[len(req.Body.Messages)-1].Content)
}

func TestAskHTTPError(t *testing.T) {
	srv := sparktest.NewServer(t)
	srv.Respond(http.StatusUnauthorized, `{"error":"invalid key"}`)

	_, _, err := run(t, "", append([]string{"ask"}, serverArgs(t, srv, "hi")...)...)
	var statusErr *spark.HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
}

func TestFailingAskStillExportsSpans(t *testing.T) {
	var exports atomic.Int32
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/v1/traces" {
			exports.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer collector.Close()

	srv := sparktest.NewServer(t)
	srv.Respond(http.StatusUnauthorized, `{"error":"invalid key"}`)

	endpoint := strings.TrimPrefix(collector.URL, "http://")
	_, _, err := run(t, "", append([]string{"ask", "--otlp-endpoint", endpoint}, serverArgs(t, srv, "hi")...)...)
	require.Error(t, err)
	assert.Positive(t, exports.Load(), "spans of the failed call should be flushed")
}

func TestAskRejectsBadConfig(t *testing.T) {
	srv := sparktest.NewServer(t)

	_, _, err := run(t, "", append([]string{"ask"}, serverArgs(t, srv, "--reasoning-level", "extreme", "hi")...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reasoning level")
	assert.Empty(t, srv.Requests())
}

func TestChatSession(t *testing.T) {
	srv := sparktest.NewServer(t)
	srv.Stream(`data: {"content":"Hi there"}`, `data: [DONE]`)

	historyPath := filepath.Join(t.TempDir(), "history.json")
	args := []string{"chat", "--api-key", "k", "--base-url", srv.URL, "--history-path", historyPath}

	out, _, err := run(t, "hello\nagain\n/history\n/exit\n", args...)
	require.NoError(t, err)
	assert.Contains(t, out, "Hi there")
	assert.Contains(t, out, "Conversation History")
	assert.Contains(t, out, "Goodbye!")

	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	// The second question carries the first exchange as context
	second := reqs[1].Body.Messages
	require.Len(t, second, 4)
	assert.Equal(t, "hello", second[1].Content)
	assert.Equal(t, "Hi there", second[2].Content)
	assert.Equal(t, spark.RoleAssistant, second[2].Role)
	assert.Equal(t, "again", second[3].Content)

	m := history.NewManager(historyPath, 10)
	require.NoError(t, m.Load())
	sessions := m.Sessions()
	require.NotEmpty(t, sessions)
	assert.Len(t, sessions[0].Messages, 4)
}

func TestChatReportsErrorsAndContinues(t *testing.T) {
	srv := sparktest.NewServer(t)
	srv.Respond(http.StatusInternalServerError, `{"error":"overloaded"}`)

	out, _, err := run(t, "hello\n", append([]string{"chat"}, serverArgs(t, srv)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "overloaded")
	assert.Contains(t, out, "Goodbye!")
}

func TestChatClearStartsFreshContext(t *testing.T) {
	srv := sparktest.NewServer(t)
	srv.Stream(`data: {"content":"ok"}`, `data: [DONE]`)

	out, _, err := run(t, "one\n/clear\ntwo\n", append([]string{"chat"}, serverArgs(t, srv)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Started a new conversation")

	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	// system prompt and the new question only
	assert.Len(t, reqs[1].Body.Messages, 2)
}

func TestConfigCommandMasksKey(t *testing.T) {
	out, _, err := run(t, "", "config", "--api-key", "sk-abcdefghijklmnop", "--timeout", "45s")
	require.NoError(t, err)
	assert.Contains(t, out, "api_key: sk-a***********mnop")
	assert.Contains(t, out, "timeout: 45s")
	assert.Contains(t, out, "base_url: "+spark.DefaultBaseURL)
}

func TestBuildMessages(t *testing.T) {
	recent := []history.Message{
		{Role: spark.RoleUser, Content: "q1"},
		{Role: spark.RoleAssistant, Content: "a1"},
	}
	got := buildMessages("sys", recent, "q2")
	assert.Equal(t, []spark.Message{
		{Role: spark.RoleSystem, Content: "sys"},
		{Role: spark.RoleUser, Content: "q1"},
		{Role: spark.RoleAssistant, Content: "a1"},
		{Role: spark.RoleUser, Content: "q2"},
	}, got)

	assert.Len(t, buildMessages("", nil, "q"), 1)
}
