package richtext

import "fmt"

// ReplaceRange rewrites document positions [from, to) with text, mutating
// the document in place. The range must be non-empty and must cover text
// characters only; separators, hard breaks and non-text leaves cannot be
// rewritten this way. Marks of the text node containing from are kept for
// the replacement text.
func (d *Doc) ReplaceRange(from, to int, text string) error {
	if from < 0 || from >= to {
		return fmt.Errorf("replace range: bad range [%d,%d)", from, to)
	}
	if size := d.Size(); to > size {
		return fmt.Errorf("replace range: [%d,%d) outside document of size %d", from, to, size)
	}
	r := &rangeReplacer{from: from, to: to, text: text}
	r.node(&d.Root)
	if r.failed {
		return fmt.Errorf("replace range: [%d,%d) covers non-text positions", from, to)
	}
	return nil
}

// rangeReplacer mirrors the walker's offset accounting over the mutable
// tree. The two traversals must stay in lockstep or replacement offsets
// would not match the offsets the mapper produced.
type rangeReplacer struct {
	from, to int
	text     string
	offset   int
	sepPending bool
	inserted   bool
	failed     bool
}

func (r *rangeReplacer) before() {
	if !r.sepPending {
		return
	}
	r.sepPending = false
	if r.offset >= r.from && r.offset < r.to {
		r.failed = true
	}
	r.offset++
}

func (r *rangeReplacer) fixedLeaf() {
	r.before()
	if r.offset >= r.from && r.offset < r.to {
		r.failed = true
	}
	r.offset++
}

func (r *rangeReplacer) node(n *Node) {
	switch {
	case n.Type == "text":
		if n.Text == "" {
			return
		}
		r.before()
		runes := []rune(n.Text)
		start := r.offset
		var out []rune
		for i, ch := range runes {
			pos := start + i
			if pos == r.from && !r.inserted {
				out = append(out, []rune(r.text)...)
				r.inserted = true
			}
			if pos >= r.from && pos < r.to {
				continue
			}
			out = append(out, ch)
		}
		n.Text = string(out)
		r.offset = start + len(runes)
	case n.Type == "hardBreak":
		r.fixedLeaf()
	case objectLeaves[n.Type]:
		r.fixedLeaf()
	case leafBlocks[n.Type]:
		r.before()
		kept := n.Content[:0]
		for i := range n.Content {
			r.node(&n.Content[i])
			// a fully consumed text node is dropped, the editor schema has
			// no empty text nodes
			if n.Content[i].Type == "text" && n.Content[i].Text == "" {
				continue
			}
			kept = append(kept, n.Content[i])
		}
		n.Content = kept
		r.sepPending = true
	default:
		for i := range n.Content {
			r.node(&n.Content[i])
		}
	}
}
