// Package web renders the server-side HTML pages.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/CoderLord25/ZenSocial/internal/earnings"
	"github.com/CoderLord25/ZenSocial/internal/identity"
	"github.com/CoderLord25/ZenSocial/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = []string{"login", "mint", "index", "profile", "earn", "messages", "notifications"}

// Page is the view model shared by all templates; each page reads the
// fields it needs.
type Page struct {
	Title string
	Me    *models.User
	Error string
	ZenID string

	Posts []models.Post
	User  *models.User
	Own   bool

	Totals  earnings.Totals
	Amount  string
	Records []models.EarningsRecord

	Notifications []models.Notification
}

var funcs = template.FuncMap{
	"short": identity.Short,
	"isVideo": func(media string) bool {
		return strings.HasSuffix(strings.ToLower(media), ".mp4")
	},
	"cents": func(c int64) string { return earnings.Cents(c).String() },
	"verb": func(kind string) string {
		switch kind {
		case "like":
			return "liked"
		case "repost":
			return "reposted"
		case "comment":
			return "commented on"
		}
		return kind
	},
}

// Renderer holds one parsed template set per page.
type Renderer struct {
	templates map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.templates[name] = t
	}
	return r, nil
}

// Render executes page into w. Output is buffered so a template error never
// leaves a half-written page.
func (r *Renderer) Render(w io.Writer, page string, data Page) error {
	t, ok := r.templates[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
