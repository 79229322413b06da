package parser

import (
	"regexp"
	"strings"
)

// Match is a regex match in absolute text coordinates.
type Match struct {
	text string
	loc  []int
}

// Start is the offset of the first matched byte.
func (m Match) Start() int { return m.loc[0] }

// End is the offset just past the match.
func (m Match) End() int { return m.loc[1] }

// Group returns submatch i, or "" when it did not participate.
func (m Match) Group(i int) string {
	if 2*i+1 >= len(m.loc) || m.loc[2*i] < 0 {
		return ""
	}
	return m.text[m.loc[2*i]:m.loc[2*i+1]]
}

// GroupEnd returns the end offset of submatch i, falling back to End.
func (m Match) GroupEnd(i int) int {
	if 2*i+1 >= len(m.loc) || m.loc[2*i+1] < 0 {
		return m.End()
	}
	return m.loc[2*i+1]
}

// Cursor walks a text front to back. Every search runs over the unconsumed
// remainder only and the position never moves backwards.
type Cursor struct {
	text string
	pos  int
}

// NewCursor creates a cursor at the start of text.
func NewCursor(text string) *Cursor {
	return &Cursor{text: text}
}

// Pos returns the absolute position.
func (c *Cursor) Pos() int { return c.pos }

// Rest returns the unconsumed text.
func (c *Cursor) Rest() string { return c.text[c.pos:] }

// Done reports whether the whole text was consumed.
func (c *Cursor) Done() bool { return c.pos >= len(c.text) }

// Peek finds the next match of re without consuming it.
func (c *Cursor) Peek(re *regexp.Regexp) (Match, bool) {
	loc := re.FindStringSubmatchIndex(c.text[c.pos:])
	if loc == nil {
		return Match{}, false
	}
	for i := range loc {
		if loc[i] >= 0 {
			loc[i] += c.pos
		}
	}
	return Match{text: c.text, loc: loc}, true
}

// Next finds the next match of re and consumes through its end.
func (c *Cursor) Next(re *regexp.Regexp) (Match, bool) {
	m, ok := c.Peek(re)
	if ok {
		c.AdvanceTo(m.End())
	}
	return m, ok
}

// SkipPast consumes through the next occurrence of literal.
func (c *Cursor) SkipPast(literal string) bool {
	i := strings.Index(c.text[c.pos:], literal)
	if i < 0 {
		return false
	}
	c.AdvanceTo(c.pos + i + len(literal))
	return true
}

// AdvanceTo moves to pos. Positions behind the cursor are ignored.
func (c *Cursor) AdvanceTo(pos int) {
	if pos > len(c.text) {
		pos = len(c.text)
	}
	if pos > c.pos {
		c.pos = pos
	}
}

// Until consumes and returns the text up to pos.
func (c *Cursor) Until(pos int) string {
	if pos <= c.pos {
		return ""
	}
	if pos > len(c.text) {
		pos = len(c.text)
	}
	s := c.text[c.pos:pos]
	c.pos = pos
	return s
}
