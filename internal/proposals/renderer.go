package proposals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/constructa/propostas/internal/quotes"
	"github.com/constructa/propostas/internal/view"
	"github.com/constructa/propostas/report"
)

// Document is the data rendered into a proposal PDF.
type Document struct {
	CompanyName string
	Number      string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Message     string
	AcceptURL   string
	Quote       *quotes.Quote
}

// Renderer produces the proposal PDF.
type Renderer interface {
	Render(ctx context.Context, doc Document) ([]byte, error)
}

// HTMLRenderer fills the proposal template and converts it with Gotenberg.
type HTMLRenderer struct {
	engine *view.Engine
	client *report.Client
}

func NewHTMLRenderer(engine *view.Engine, client *report.Client) *HTMLRenderer {
	return &HTMLRenderer{engine: engine, client: client}
}

func (r *HTMLRenderer) Render(ctx context.Context, doc Document) ([]byte, error) {
	html, err := r.engine.Render("proposal.html", doc)
	if err != nil {
		return nil, err
	}
	return r.client.Render(ctx, html, report.A4)
}

// NewRenderer picks the renderer named by kind ("gotenberg" or "native").
func NewRenderer(kind string, engine *view.Engine, client *report.Client) (Renderer, error) {
	switch strings.ToLower(kind) {
	case "", "gotenberg":
		return NewHTMLRenderer(engine, client), nil
	case "native":
		return NewNativeRenderer(), nil
	}
	return nil, fmt.Errorf("proposals: unknown renderer %q", kind)
}
