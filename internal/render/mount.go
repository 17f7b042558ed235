package render

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

const anchorAttr = "data-live-anchor"

// Mount is the same-document target: a document with a single anchor element
// that committed nodes are rendered into
type Mount struct {
	mu      sync.Mutex
	doc     *goquery.Document
	anchor  *goquery.Selection
	id      string
	commits int
}

// NewMount creates a document whose anchor is identified by id
func NewMount(id string) (*Mount, error) {
	page := fmt.Sprintf(`<!doctype html><html><head></head><body><div id="%s" %s=""></div></body></html>`,
		html.EscapeString(id), anchorAttr)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse mount document: %w", err)
	}

	return &Mount{
		doc:    doc,
		anchor: doc.Find("[" + anchorAttr + "]").First(),
		id:     id,
	}, nil
}

// Commit renders node live and replaces the anchor contents. When the live
// render fails the anchor keeps its previous contents and the error is
// returned.
func (m *Mount) Commit(ctx context.Context, node *Node) error {
	markup, err := node.RenderLive(ctx)
	if err != nil {
		return err
	}
	m.Write(markup)
	return nil
}

// Write replaces the anchor contents with markup already rendered
func (m *Mount) Write(markup string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.anchor.SetHtml(markup)
	m.commits++
}

// HTML returns the anchor's current inner markup
func (m *Mount) HTML() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out, err := m.anchor.Html()
	if err != nil {
		return ""
	}
	return out
}

// Document returns the whole mount document
func (m *Mount) Document() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return goquery.OuterHtml(m.doc.Selection)
}

// Commits returns how many times the anchor has been written
func (m *Mount) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}
