package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/iamoberlin/chorus/internal/errors"
	"github.com/iamoberlin/chorus/internal/ledger"
	"github.com/iamoberlin/chorus/internal/ops"
	"github.com/iamoberlin/chorus/internal/prayer"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "board", "agents", "events"
}

// BoardPageData is the template data for the prayer board page.
type BoardPageData struct {
	PageData
	Prayers    []ops.BoardEntry
	Pagination ops.Pagination
	Status     string
	Type       string
}

// DetailPageData is the template data for the prayer detail page.
// ContentHTML and AnswerHTML are only set when the local cache knows the
// plaintext; the chain itself never stores it.
type DetailPageData struct {
	PageData
	Shown       *ops.ShowOutput
	ContentHTML template.HTML
	AnswerHTML  template.HTML
}

// AgentsPageData is the template data for the agent directory page.
type AgentsPageData struct {
	PageData
	Agents     []prayer.AgentProfile
	Pagination ops.Pagination
}

// AgentPageData is the template data for a single agent page.
type AgentPageData struct {
	PageData
	Agent *ops.AgentOutput
}

// EventsPageData is the template data for the event journal page.
type EventsPageData struct {
	PageData
	Events     []ledger.Event
	Pagination ops.Pagination
	Kind       string
	PrayerID   string
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string) *Renderer {
	funcMap := template.FuncMap{
		"add":         func(a, b int) int { return a + b },
		"sub":         func(a, b int) int { return a - b },
		"formatTime":  formatTime,
		"formatUnits": formatUnits,
	}

	// Parse layout as the base template
	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"board":  "board.html",
		"detail": "detail.html",
		"agents": "agents.html",
		"agent":  "agent.html",
		"events": "events.html",
		"error":  "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
	}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, name string, data any) {
	r.renderPageStatus(w, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		log.Printf("template %q not found", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Printf("template execution error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	var cErr *errors.ChorusError
	if !stderrors.As(err, &cErr) {
		cErr = errors.NewInternal(err)
	}

	status := cErr.Status
	message := cErr.Message

	// JSON request
	if strings.Contains(req.Header.Get("Accept"), "application/json") {
		renderErrorJSON(w, cErr)
		return
	}

	// Full error page
	r.renderPageStatus(w, status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", status),
			Version: r.version,
		},
		StatusCode: status,
		Message:    message,
	})
}

// apiError writes an error as JSON unconditionally. The /api routes never
// negotiate content.
func apiError(w http.ResponseWriter, err error) {
	var cErr *errors.ChorusError
	if !stderrors.As(err, &cErr) {
		cErr = errors.NewInternal(err)
	}
	renderErrorJSON(w, cErr)
}

// renderErrorJSON writes an error as a JSON body with the protocol shape.
func renderErrorJSON(w http.ResponseWriter, cErr *errors.ChorusError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(cErr.Status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    string(cErr.Code),
			"message": cErr.Message,
			"status":  cErr.Status,
		},
	})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderMarkdown converts markdown text to HTML using goldmark.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// formatTime formats a Unix timestamp as "2006-01-02 15:04" UTC.
func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}

// formatUnits formats a unit amount with comma thousands separators.
func formatUnits(n uint64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if result.Len() > 0 {
			result.WriteByte(',')
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}
