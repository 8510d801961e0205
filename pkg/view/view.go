package view

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/m-mizutani/kristal/pkg/model"
)

// SuggestedQuestions are offered while the conversation is empty
var SuggestedQuestions = []string{
	"What is my portfolio value?",
	"Show me my current holdings",
	"What are my fees?",
}

var (
	userLabelStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	mutedStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	passStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	failStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	errorStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	headingStyle        = lipgloss.NewStyle().Bold(true)
)

// Renderer draws chat state as terminal text
type Renderer struct {
	w           io.Writer
	markdown    *glamour.TermRenderer
	showDetails bool
	loc         *time.Location
}

type Option func(*Renderer)

// WithMarkdown renders message content as markdown wrapped at width columns.
// Plain text is used when the renderer can not be created.
func WithMarkdown(width int) Option {
	return func(r *Renderer) {
		md, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err == nil {
			r.markdown = md
		}
	}
}

// WithDetails sets the initial state of the validation detail disclosure
func WithDetails(show bool) Option {
	return func(r *Renderer) {
		r.showDetails = show
	}
}

// WithLocation sets the zone used for message times
func WithLocation(loc *time.Location) Option {
	return func(r *Renderer) {
		r.loc = loc
	}
}

func New(w io.Writer, opts ...Option) *Renderer {
	r := &Renderer{
		w:   w,
		loc: time.Local,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ToggleDetails flips the validation detail disclosure and returns the new state
func (r *Renderer) ToggleDetails() bool {
	r.showDetails = !r.showDetails
	return r.showDetails
}

// Header shows who is logged in and which identity the chat is bound to
func (r *Renderer) Header(email, clientID, kristalID string, sessionID model.SessionID) {
	fmt.Fprintln(r.w, headingStyle.Render("Kristal Agent"))
	if email != "" {
		fmt.Fprintf(r.w, "%s %s\n", mutedStyle.Render("User:"), email)
	}

	client := clientID
	if client == "" {
		client = "(not set, use /client <id>)"
	}
	fmt.Fprintf(r.w, "%s %s\n", mutedStyle.Render("Client ID:"), client)
	if kristalID != "" {
		fmt.Fprintf(r.w, "%s %s\n", mutedStyle.Render("Kristal ID:"), kristalID)
	}
	if sessionID != "" {
		fmt.Fprintf(r.w, "%s %s\n", mutedStyle.Render("Session:"), sessionID)
	}
	fmt.Fprintln(r.w)
}

// Messages renders the whole conversation, or the welcome text when empty
func (r *Renderer) Messages(msgs []model.ChatMessage) {
	if len(msgs) == 0 {
		r.Welcome()
		return
	}
	for _, msg := range msgs {
		r.Message(msg)
	}
}

// Welcome lists the suggested first questions
func (r *Renderer) Welcome() {
	fmt.Fprintln(r.w, "Ask a question about the client's portfolio. For example:")
	for i, q := range SuggestedQuestions {
		fmt.Fprintf(r.w, "  %d. %s\n", i+1, q)
	}
	fmt.Fprintln(r.w, mutedStyle.Render("Type /suggest <n> to send one, /help for commands."))
	fmt.Fprintln(r.w)
}

// Message renders one bubble with its attachments
func (r *Renderer) Message(msg model.ChatMessage) {
	label := assistantLabelStyle.Render("Agent")
	if msg.IsUser() {
		label = userLabelStyle.Render("You")
	}
	fmt.Fprintf(r.w, "%s %s\n", label, mutedStyle.Render(msg.Timestamp.In(r.loc).Format("15:04:05")))

	if msg.IsUser() {
		fmt.Fprintln(r.w, msg.Content)
	} else {
		fmt.Fprintln(r.w, strings.TrimRight(r.renderMarkdown(msg.Content), "\n"))
	}

	r.Sources(msg.Sources)
	r.Validation(msg.Validation)
	r.Chart(msg.Chart)
	if msg.Metadata != nil && msg.Metadata.AgentUsed != "" {
		fmt.Fprintln(r.w, mutedStyle.Render(fmt.Sprintf("answered by %s in %.2fs", msg.Metadata.AgentUsed, msg.Metadata.ResponseTime)))
	}
	fmt.Fprintln(r.w)
}

func (r *Renderer) renderMarkdown(content string) string {
	if r.markdown == nil {
		return content
	}
	rendered, err := r.markdown.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

func sourceIcon(t model.SourceType) string {
	switch t {
	case model.SourceTypeTable:
		return "📊"
	case model.SourceTypeURL:
		return "🔗"
	default:
		return "📄"
	}
}

// Sources renders the citation list. Nothing is written for an empty list.
func (r *Renderer) Sources(sources []model.Source) {
	if len(sources) == 0 {
		return
	}

	fmt.Fprintln(r.w, headingStyle.Render("Sources:"))
	for _, src := range sources {
		line := fmt.Sprintf("  %s %s", sourceIcon(src.Type), src.Name)
		if src.URL != "" {
			line += " " + mutedStyle.Render("<"+src.URL+">")
		}
		fmt.Fprintln(r.w, line)
		if src.URL == "" && src.Query != "" {
			for _, q := range strings.Split(strings.TrimSpace(src.Query), "\n") {
				fmt.Fprintln(r.w, "      "+mutedStyle.Render(q))
			}
		}
	}
}

// Validation renders the verdict badge and, when disclosed, its details
func (r *Renderer) Validation(v *model.ValidationResult) {
	if v == nil {
		return
	}

	badge := failStyle.Render("✘ Validation: " + string(v.Status))
	if v.Passed() {
		badge = passStyle.Render("✔ Validation: " + string(v.Status))
	}

	if !r.showDetails {
		fmt.Fprintf(r.w, "%s %s\n", badge, mutedStyle.Render("(/details to show)"))
		return
	}

	fmt.Fprintf(r.w, "%s %s\n", badge, mutedStyle.Render("(/details to hide)"))
	fmt.Fprintf(r.w, "  Summary: %s\n", v.Summary)
	fmt.Fprintf(r.w, "  Agent: %s\n", v.Agent)
	if len(v.Discrepancies) > 0 {
		fmt.Fprintln(r.w, "  Discrepancies:")
		for _, d := range v.Discrepancies {
			fmt.Fprintf(r.w, "    - %s\n", d)
		}
	}
}

// Chart renders the chart title and the image location
func (r *Renderer) Chart(c *model.ChartInfo) {
	if c == nil {
		return
	}
	title := c.Title
	if title == "" {
		title = "Chart"
	}
	fmt.Fprintf(r.w, "📈 %s %s\n", title, mutedStyle.Render("<"+c.URL+">"))
}

// ErrorBanner renders the current error, if any. There is at most one.
func (r *Renderer) ErrorBanner(msg string) {
	if msg == "" {
		return
	}
	fmt.Fprintf(r.w, "%s %s %s\n", errorStyle.Render("Error:"), msg, mutedStyle.Render("(/dismiss to clear)"))
}
