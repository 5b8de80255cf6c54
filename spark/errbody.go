package spark

import (
	"bytes"
	"encoding/json"
	"strings"

	"golang.org/x/net/html"
)

// maxSummaryChars bounds the error text shown in HTTPStatusError.Error
const maxSummaryChars = 200

// summarizeBody turns a server error body into one short line. JSON bodies
// yield their error message, HTML pages (proxy error pages) their title or
// visible text, anything else the raw text.
func summarizeBody(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	if msg := jsonErrorMessage(body); msg != "" {
		return truncateWords(cleanText(msg), maxSummaryChars)
	}

	if looksLikeHTML(body) {
		if title, text, err := extractText(body); err == nil {
			if title != "" {
				return truncateWords(cleanText(title), maxSummaryChars)
			}
			if text != "" {
				return truncateWords(text, maxSummaryChars)
			}
		}
	}

	return truncateWords(cleanText(string(body)), maxSummaryChars)
}

// jsonErrorMessage digs the message out of the common error envelopes:
// {"error":"..."}, {"error":{"message":"..."}}, {"message":"..."}, {"detail":"..."}
func jsonErrorMessage(body []byte) string {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}

	if raw, ok := envelope["error"]; ok {
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
	}

	for _, key := range []string{"message", "detail"} {
		var s string
		if raw, ok := envelope[key]; ok && json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}

func looksLikeHTML(body []byte) bool {
	head := strings.ToLower(string(body[:min(len(body), 256)]))
	return strings.HasPrefix(head, "<!doctype html") || strings.Contains(head, "<html")
}

// extractText returns the page title and the visible body text
func extractText(page []byte) (title string, text string, err error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return "", "", err
	}
	return extractTitle(doc), cleanText(extractBodyText(doc)), nil
}

func extractTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return nodeText(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title := extractTitle(c); title != "" {
			return title
		}
	}
	return ""
}

// extractBodyText skips script, style and head content
func extractBodyText(n *html.Node) string {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "head":
			return ""
		}
	}

	var text strings.Builder
	if n.Type == html.TextNode {
		text.WriteString(n.Data)
		text.WriteString(" ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		text.WriteString(extractBodyText(c))
	}
	return text.String()
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var text strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		text.WriteString(nodeText(c))
	}
	return text.String()
}

// cleanText collapses runs of whitespace into single spaces
func cleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// truncateWords cuts text at a word boundary near maxChars
func truncateWords(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	cut := text[:maxChars]
	if i := strings.LastIndexByte(cut, ' '); i > maxChars/2 {
		cut = cut[:i]
	}
	return strings.ToValidUTF8(cut, "") + "..."
}
