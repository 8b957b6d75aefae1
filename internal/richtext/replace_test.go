package richtext

import "testing"

func TestReplaceRangeWithinParagraph(t *testing.T) {
	doc := mustParse(t, paragraphDoc("He goed to school."))
	if err := doc.ReplaceRange(3, 7, "went"); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if got := doc.PlainText(); got != "He went to school." {
		t.Fatalf("plain text = %q", got)
	}
}

func TestReplaceRangeAcrossMarkedRuns(t *testing.T) {
	doc := mustParse(t, `{"type":"doc","content":[{"type":"paragraph","content":[
		{"type":"text","text":"very "},
		{"type":"text","text":"baad","marks":[{"type":"bold"}]},
		{"type":"text","text":" idea"}
	]}]}`)
	// "very baad idea": replace "baad" at [5,9)
	if err := doc.ReplaceRange(5, 9, "bad"); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if got := doc.PlainText(); got != "very bad idea" {
		t.Fatalf("plain text = %q", got)
	}
}

func TestReplaceRangeRemovesEmptiedNode(t *testing.T) {
	doc := mustParse(t, `{"type":"doc","content":[{"type":"paragraph","content":[
		{"type":"text","text":"ab"},
		{"type":"text","text":"cd","marks":[{"type":"italic"}]}
	]}]}`)
	if err := doc.ReplaceRange(1, 4, "x"); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if got := doc.PlainText(); got != "ax" {
		t.Fatalf("plain text = %q", got)
	}
	para := doc.Root.Content[0]
	for _, child := range para.Content {
		if child.Type == "text" && child.Text == "" {
			t.Fatal("empty text node left behind")
		}
	}
}

func TestReplaceRangeRejectsBlockBoundary(t *testing.T) {
	doc := mustParse(t, paragraphDoc("first", "second"))
	// [4,7) covers the separator at offset 5
	if err := doc.ReplaceRange(4, 7, "x"); err == nil {
		t.Fatal("expected error for range covering a block boundary")
	}
	if err := doc.ReplaceRange(-1, 3, "x"); err == nil {
		t.Fatal("expected error for negative start")
	}
	if err := doc.ReplaceRange(3, 3, "x"); err == nil {
		t.Fatal("expected error for empty range")
	}
	if err := doc.ReplaceRange(10, 30, "x"); err == nil {
		t.Fatal("expected error for range past document end")
	}
}
