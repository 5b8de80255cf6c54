// Package sparktest runs an in-process fake of the Spark chat API for tests.
package sparktest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
)

// Request is what the fake server saw for one call
type Request struct {
	Method string
	Path   string
	Header http.Header
	Raw    []byte
	Body   ChatBody
}

// ChatBody mirrors the JSON body of POST /api/chat
type ChatBody struct {
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Stream         bool    `json:"stream"`
	ShowThinking   bool    `json:"show_thinking"`
	ReasoningLevel *string `json:"reasoning_level"`
}

// Reply describes how the fake answers the next calls
type Reply struct {
	Status      int
	Body        string   // buffered body, written as is
	Lines       []string // stream body, each written followed by "\n"
	ContentType string
}

// Server is a fake Spark API backed by gin
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	reply    Reply
	requests []Request
}

// NewServer starts a fake server that is closed when the test ends.
// Until Respond or Stream is called it answers 200 with an empty reply.
func NewServer(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{reply: Reply{Status: http.StatusOK, Body: `{"content":""}`}}

	router := gin.New()
	router.POST("/api/chat", s.handleChat)

	s.Server = httptest.NewServer(router)
	t.Cleanup(s.Close)
	return s
}

// Respond sets a buffered reply
func (s *Server) Respond(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reply = Reply{Status: status, Body: body, ContentType: "application/json"}
}

// Stream sets an event-stream reply made of the given lines
func (s *Server) Stream(lines ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reply = Reply{Status: http.StatusOK, Lines: lines, ContentType: "text/event-stream"}
}

// SetReply replaces the reply wholesale
func (s *Server) SetReply(r Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reply = r
}

// Requests returns a copy of every request received so far
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the most recent request; it fails the test if none arrived
func (s *Server) LastRequest(t testing.TB) Request {
	t.Helper()
	reqs := s.Requests()
	if len(reqs) == 0 {
		t.Fatal("sparktest: no request received")
	}
	return reqs[len(reqs)-1]
}

func (s *Server) handleChat(c *gin.Context) {
	raw, _ := io.ReadAll(c.Request.Body)
	rec := Request{
		Method: c.Request.Method,
		Path:   c.Request.URL.Path,
		Header: c.Request.Header.Clone(),
		Raw:    raw,
	}
	_ = json.Unmarshal(raw, &rec.Body)

	s.mu.Lock()
	s.requests = append(s.requests, rec)
	reply := s.reply
	s.mu.Unlock()

	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	if reply.ContentType != "" {
		c.Header("Content-Type", reply.ContentType)
	}

	if reply.Lines == nil {
		c.Status(status)
		_, _ = c.Writer.WriteString(reply.Body)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Status(status)
	for _, line := range reply.Lines {
		_, _ = c.Writer.WriteString(line + "\n")
		c.Writer.Flush()
	}
}
