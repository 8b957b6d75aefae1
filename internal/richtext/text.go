package richtext

import (
	"strings"
	"unicode"
)

// ObjectChar stands in for a non-text leaf (image, horizontal rule) in the
// document text sequence. It never appears in the plain-text projection, so
// it can never be confused with real content during mapping.
const ObjectChar = '￼'

// SegmentKind distinguishes what a walked document position holds.
type SegmentKind int

const (
	// SegText is a run of text characters from a text node.
	SegText SegmentKind = iota
	// SegSeparator is the single position between two leaf blocks. It
	// projects to "\n" in plain text.
	SegSeparator
	// SegObject is a non-text leaf occupying one document position and
	// projecting to nothing.
	SegObject
)

// Segment is one run of the document's text sequence, in document order.
// Offset is the document offset of the segment's first position.
type Segment struct {
	Kind   SegmentKind
	Text   string // rune content for SegText, "\n" for SegSeparator, "" for SegObject
	Offset int
}

// leafBlocks are block nodes that hold inline content directly. The walk
// emits one separator position between consecutive leaf blocks, which is
// also where the plain-text projection emits its "\n".
var leafBlocks = map[string]bool{
	"paragraph": true,
	"heading":   true,
	"codeBlock": true,
}

var objectLeaves = map[string]bool{
	"image":          true,
	"horizontalRule": true,
}

// Walk visits the document's text sequence in order. Each text node becomes
// one SegText segment; block boundaries and non-text leaves become their own
// single-position segments. fn returning false stops the walk.
func (d *Doc) Walk(fn func(seg Segment) bool) {
	w := walker{fn: fn}
	w.node(d.Root)
	w.flushPending()
}

type walker struct {
	fn      func(Segment) bool
	offset  int
	stopped bool
	// a separator is owed after every leaf block, but only emitted once a
	// further segment follows; the trailing block gets none.
	sepPending bool
}

func (w *walker) emit(kind SegmentKind, text string, width int) {
	if w.stopped {
		return
	}
	if !w.fn(Segment{Kind: kind, Text: text, Offset: w.offset}) {
		w.stopped = true
		return
	}
	w.offset += width
}

func (w *walker) flushPending() {
	// no-op: a pending separator at the very end is dropped
}

func (w *walker) beforeContent() {
	if w.sepPending {
		w.sepPending = false
		w.emit(SegSeparator, "\n", 1)
	}
}

func (w *walker) node(n Node) {
	if w.stopped {
		return
	}
	switch {
	case n.Type == "text":
		if n.Text != "" {
			w.beforeContent()
			w.emit(SegText, n.Text, len([]rune(n.Text)))
		}
	case n.Type == "hardBreak":
		// a hard break is a real "\n" in both coordinate spaces
		w.beforeContent()
		w.emit(SegText, "\n", 1)
	case objectLeaves[n.Type]:
		w.beforeContent()
		w.emit(SegObject, "", 1)
	case leafBlocks[n.Type]:
		w.beforeContent()
		for _, child := range n.Content {
			w.node(child)
		}
		w.sepPending = true
	default:
		for _, child := range n.Content {
			w.node(child)
		}
	}
}

// PlainText is the flattened projection sent to the analysis service:
// text runs verbatim, one "\n" between leaf blocks, non-text leaves omitted.
func (d *Doc) PlainText() string {
	var b strings.Builder
	d.Walk(func(seg Segment) bool {
		b.WriteString(seg.Text)
		return true
	})
	return b.String()
}

// DocText renders the document text sequence with one rune per document
// position: text runes verbatim, "\n" for separators, ObjectChar for
// non-text leaves. Rune index i of the result is document offset i.
func (d *Doc) DocText() []rune {
	var runes []rune
	d.Walk(func(seg Segment) bool {
		switch seg.Kind {
		case SegObject:
			runes = append(runes, ObjectChar)
		default:
			runes = append(runes, []rune(seg.Text)...)
		}
		return true
	})
	return runes
}

// Size is the number of document positions.
func (d *Doc) Size() int {
	size := 0
	d.Walk(func(seg Segment) bool {
		if seg.Kind == SegText {
			size += len([]rune(seg.Text))
		} else {
			size++
		}
		return true
	})
	return size
}

// TextBetween extracts the textual content of document positions [from, to).
// Separators read as "\n"; object positions read as nothing, so the result
// can be compared directly against a plain-text substring.
func (d *Doc) TextBetween(from, to int) string {
	if from >= to {
		return ""
	}
	var b strings.Builder
	d.Walk(func(seg Segment) bool {
		if seg.Offset >= to {
			return false
		}
		switch seg.Kind {
		case SegObject:
			return true
		default:
			runes := []rune(seg.Text)
			for i, r := range runes {
				pos := seg.Offset + i
				if pos >= from && pos < to {
					b.WriteRune(r)
				}
			}
			return true
		}
	})
	return b.String()
}

// WordCount counts whitespace-separated words in a plain-text projection.
func WordCount(text string) int {
	return len(strings.FieldsFunc(text, unicode.IsSpace))
}

// CharCount counts characters (runes) in a plain-text projection.
func CharCount(text string) int {
	return len([]rune(text))
}
