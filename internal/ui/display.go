package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/MrPeterss/infosci-spark-client/internal/history"
)

// Display renders the conversation to a terminal or a plain writer
type Display struct {
	out            io.Writer
	width          int
	color          bool
	showThinking   bool
	thinkingBuffer strings.Builder
	responseBuffer strings.Builder
	startTime      time.Time
	renderer       *glamour.TermRenderer
}

// Options configures a Display
type Options struct {
	Width        int
	ShowThinking bool
	// Interactive enables colors and markdown rendering of answers
	Interactive bool
}

// NewDisplay creates a new display writing to out
func NewDisplay(out io.Writer, opts Options) *Display {
	width := opts.Width
	if width <= 0 {
		width = 80
	}

	d := &Display{
		out:          out,
		width:        width,
		color:        opts.Interactive,
		showThinking: opts.ShowThinking,
	}
	if opts.Interactive {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(max(width-10, 20)),
		)
		if err == nil {
			d.renderer = renderer
		}
	}
	return d
}

// Color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

func (d *Display) paint(code, s string) string {
	if !d.color {
		return s
	}
	return code + s + colorReset
}

func (d *Display) printf(format string, args ...any) {
	fmt.Fprintf(d.out, format, args...)
}

// ClearScreen clears the terminal
func (d *Display) ClearScreen() {
	if d.color {
		d.printf("\033[2J\033[H")
	}
}

// PrintWelcome displays the welcome banner
func (d *Display) PrintWelcome(baseURL string) {
	d.ClearScreen()
	d.printf("%s\n", d.paint(colorBold+colorCyan, "spark-chat · Information Science Spark API"))
	d.printf("%s %s\n", d.paint(colorGray, "Server:"), baseURL)
	d.printf("%s /exit | /clear | /history\n\n", d.paint(colorGray, "Commands:"))
}

// PrintSeparator prints a visual separator
func (d *Display) PrintSeparator() {
	d.printf("%s\n", d.paint(colorDim, strings.Repeat("─", min(d.width, 80))))
}

// PrintPrompt displays the user input prompt
func (d *Display) PrintPrompt() {
	d.printf("\n%s ", d.paint(colorBold+colorGreen, "❯"))
}

// PrintUserMessage displays a user message with timestamp
func (d *Display) PrintUserMessage(content string, timestamp time.Time) {
	d.printf("\n%s\n", d.paint(colorGray, "┌─ You · "+timestamp.Format("15:04:05")))
	d.printf("%s %s\n", d.paint(colorGray, "│"), content)
	d.printf("%s\n", d.paint(colorGray, "└"))
}

// StartAssistantResponse initializes response tracking
func (d *Display) StartAssistantResponse() {
	d.startTime = time.Now()
	d.thinkingBuffer.Reset()
	d.responseBuffer.Reset()
	d.printf("\n%s\n", d.paint(colorGray, "┌─ Assistant · "+d.startTime.Format("15:04:05")))
}

// WriteThinking writes reasoning tokens, dimmed
func (d *Display) WriteThinking(text string) {
	if !d.showThinking || text == "" {
		return
	}
	if d.thinkingBuffer.Len() == 0 {
		d.printf("%s ", d.paint(colorGray, "│"))
	}
	d.thinkingBuffer.WriteString(text)
	d.printf("%s", d.paint(colorDim, text))
}

// WriteAnswer writes answer tokens as they stream in
func (d *Display) WriteAnswer(text string) {
	if text == "" {
		return
	}
	if d.responseBuffer.Len() == 0 {
		d.startAnswer()
	}
	d.responseBuffer.WriteString(text)
	d.printf("%s", text)
}

// startAnswer prints the separator between thinking and the answer
func (d *Display) startAnswer() {
	if d.thinkingBuffer.Len() > 0 {
		d.printf("\n%s\n%s\n", d.paint(colorGray, "│"), d.paint(colorGray, "│ ─── Answer ───"))
	}
	d.printf("%s ", d.paint(colorGray, "│"))
}

// Answer returns the answer text written since StartAssistantResponse
func (d *Display) Answer() string { return d.responseBuffer.String() }

// Thinking returns the reasoning text written since StartAssistantResponse
func (d *Display) Thinking() string { return d.thinkingBuffer.String() }

// EndAssistantResponse finishes the response and shows metadata
func (d *Display) EndAssistantResponse() {
	duration := time.Since(d.startTime)
	d.printf("\n")

	// Re-render the complete answer as markdown
	if d.responseBuffer.Len() > 0 && d.renderer != nil {
		rendered, err := d.renderer.Render(d.responseBuffer.String())
		if err == nil {
			d.printf("%s\n", d.paint(colorGray, "│ Rendered:"))
			for _, line := range strings.Split(strings.TrimRight(rendered, "\n"), "\n") {
				d.printf("%s %s\n", d.paint(colorGray, "│"), line)
			}
		}
	}

	words := len(strings.Fields(d.responseBuffer.String()))
	d.printf("%s\n", d.paint(colorGray, fmt.Sprintf("│ %s · ~%d words", formatDuration(duration), words)))
	d.printf("%s\n", d.paint(colorGray, "└"))
}

// PrintHistory shows every message of a session
func (d *Display) PrintHistory(session *history.Session) {
	if session == nil || len(session.Messages) == 0 {
		d.PrintInfo("No conversation history yet")
		return
	}

	d.PrintSeparator()
	d.printf("Conversation History\n")
	d.PrintSeparator()
	for _, msg := range session.Messages {
		who := "Assistant"
		if msg.Role == "user" {
			who = "You"
		}
		d.printf("\n[%s] %s:\n%s\n", msg.Timestamp.Format("15:04:05"), who, msg.Content)
	}
	d.PrintSeparator()
}

// PrintInfo displays info message
func (d *Display) PrintInfo(msg string) {
	d.printf("%s\n", d.paint(colorCyan, "ℹ "+msg))
}

// PrintWarning displays warning message
func (d *Display) PrintWarning(msg string) {
	d.printf("%s\n", d.paint(colorYellow, "⚠ "+msg))
}

// PrintError displays error message
func (d *Display) PrintError(err error) {
	d.printf("%s\n", d.paint(colorRed, fmt.Sprintf("✗ Error: %v", err)))
}

// PrintSuccess displays success message
func (d *Display) PrintSuccess(msg string) {
	d.printf("%s\n", d.paint(colorGreen, "✓ "+msg))
}

// PrintGoodbye displays goodbye message
func (d *Display) PrintGoodbye() {
	d.printf("\n%s\n", d.paint(colorBold+colorCyan, "Goodbye!"))
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
