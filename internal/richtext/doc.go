// Package richtext models the editor's rich document content (a
// ProseMirror-style node tree) and provides the plain-text projection,
// document-offset arithmetic, and HTML serialization the rest of the
// application builds on.
package richtext

import (
	"encoding/json"
	"fmt"
)

// Node is a node in the document tree. Text nodes carry Text and Marks;
// everything else carries Content and optional Attrs.
type Node struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []Node         `json:"content,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
	Text    string         `json:"text,omitempty"`
}

// Mark is inline formatting attached to a text node (bold, link, ...).
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Doc is a parsed rich document. The zero value is an empty document.
type Doc struct {
	Root Node
}

// Parse decodes editor JSON into a Doc. An empty payload yields an empty
// document rather than an error, matching how the editor serializes a
// brand-new document.
func Parse(raw []byte) (*Doc, error) {
	if len(raw) == 0 {
		return &Doc{Root: Node{Type: "doc"}}, nil
	}
	var root Node
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if root.Type == "" {
		root.Type = "doc"
	}
	if root.Type != "doc" {
		return nil, fmt.Errorf("parse document: root node is %q, want \"doc\"", root.Type)
	}
	return &Doc{Root: root}, nil
}

// FromText builds a document containing the given plain text as a single
// paragraph. Used when a document is created from an uploaded text file.
func FromText(text string) *Doc {
	if text == "" {
		return &Doc{Root: Node{Type: "doc"}}
	}
	return &Doc{Root: Node{
		Type: "doc",
		Content: []Node{{
			Type:    "paragraph",
			Content: []Node{{Type: "text", Text: text}},
		}},
	}}
}

// JSON serializes the document back to editor JSON.
func (d *Doc) JSON() ([]byte, error) {
	data, err := json.Marshal(d.Root)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return data, nil
}

func (n Node) attrString(key string) string {
	if n.Attrs == nil {
		return ""
	}
	v, _ := n.Attrs[key].(string)
	return v
}

func (n Node) attrInt(key string, fallback int) int {
	if n.Attrs == nil {
		return fallback
	}
	if f, ok := n.Attrs[key].(float64); ok {
		return int(f)
	}
	return fallback
}

func (m Mark) attrString(key string) string {
	if m.Attrs == nil {
		return ""
	}
	v, _ := m.Attrs[key].(string)
	return v
}
