package tracker

import (
	"context"
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"

	"bilancio/internal/core"
)

// DefaultDocumentViewport is the viewport assumed for documents that have
// no layout engine behind them.
var DefaultDocumentViewport = core.Size{Width: 1280, Height: 800}

// DocumentLocator checks selectors against static HTML. It has no layout,
// so found targets get a zero rect; it is meant for presence checks.
type DocumentLocator struct {
	doc *goquery.Document
}

// NewDocumentLocator parses r as HTML.
func NewDocumentLocator(r io.Reader) (*DocumentLocator, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &DocumentLocator{doc: doc}, nil
}

func (l *DocumentLocator) Resolve(_ context.Context, selector string) (core.TargetRect, bool, error) {
	if selector == "" {
		return core.TargetRect{}, false, nil
	}
	if l.doc.Find(selector).Length() == 0 {
		return core.TargetRect{}, false, nil
	}
	return core.TargetRect{}, true, nil
}

// Count returns how many elements match selector.
func (l *DocumentLocator) Count(selector string) int {
	return l.doc.Find(selector).Length()
}

func (l *DocumentLocator) Viewport(context.Context) (core.Size, error) {
	return DefaultDocumentViewport, nil
}

func (l *DocumentLocator) ScrollIntoView(context.Context, string) error {
	return nil
}
