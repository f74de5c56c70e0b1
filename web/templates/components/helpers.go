// Package components holds the shared page chrome rendered around every
// checkout page.
package components

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// Writer accumulates the first write error so components can emit markup
// without checking every call
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter wraps w
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Raw writes trusted markup
func (hw *Writer) Raw(s string) {
	if hw.err != nil {
		return
	}
	_, hw.err = io.WriteString(hw.w, s)
}

// Rawf writes trusted markup; arguments must already be escaped
func (hw *Writer) Rawf(format string, args ...interface{}) {
	hw.Raw(fmt.Sprintf(format, args...))
}

// Text writes escaped text
func (hw *Writer) Text(s string) {
	hw.Raw(templ.EscapeString(s))
}

// Component renders a child component inline
func (hw *Writer) Component(ctx context.Context, c templ.Component) {
	if hw.err != nil || c == nil {
		return
	}
	hw.err = c.Render(ctx, hw.w)
}

// Err returns the first error seen
func (hw *Writer) Err() error {
	return hw.err
}

// Attr escapes an attribute value
func Attr(s string) string {
	return templ.EscapeString(s)
}

// URL sanitizes and escapes a URL for an href or src attribute
func URL(s string) string {
	return templ.EscapeString(string(templ.URL(s)))
}
