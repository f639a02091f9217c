// Package termwrap wraps help and report text to the width of the terminal.
package termwrap

import (
	"os"
	"strings"

	"github.com/mitchellh/go-wordwrap"
	"golang.org/x/term"
)

type TermWrap struct {
	width  int
	height int
}

// NewTermWrap measures stdout, falling back to the defaults when it is not a
// terminal.
func NewTermWrap(defaultWidth, defaultHeight int) *TermWrap {
	var err error
	tw := &TermWrap{}

	tw.width, tw.height, err = term.GetSize(int(os.Stdout.Fd()))
	if err != nil || tw.width <= 0 {
		tw.width = defaultWidth
		tw.height = defaultHeight
	}

	return tw
}

func (tw *TermWrap) Width() int {
	return tw.width
}

func (tw *TermWrap) Paragraph(content string) string {
	return wordwrap.WrapString(content, uint(tw.width))
}

// IndentedParagraph wraps content so that every line, prefix included, fits
// the terminal. Terminals narrower than minimumWidth get no indent.
func (tw *TermWrap) IndentedParagraph(prefix, content string, minimumWidth int) string {
	if tw.width <= minimumWidth || len(prefix) >= tw.width {
		return tw.Paragraph(content)
	}

	paragraph := wordwrap.WrapString(content, uint(tw.width-len(prefix)))
	lines := strings.Split(paragraph, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}

	return strings.Join(lines, "\n")
}
