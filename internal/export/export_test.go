package export

import (
	"context"
	"html/template"
	"strings"
	"testing"
	"time"

	"inkwell/api/internal/richtext"
)

func TestRenderDocumentHTML(t *testing.T) {
	doc, err := richtext.Parse([]byte(`{
		"type":"doc",
		"content":[
			{"type":"heading","attrs":{"level":2},"content":[{"type":"text","text":"Notes"}]},
			{"type":"paragraph","content":[
				{"type":"text","text":"bold","marks":[{"type":"bold"}]},
				{"type":"text","text":" & <plain>"}
			]}
		]
	}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	page, err := RenderDocumentHTML(TemplateData{
		Title:       "Field Notes",
		ContentHTML: template.HTML(doc.HTML()),
		Author:      "Avery",
		UpdatedAt:   time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("RenderDocumentHTML() error = %v", err)
	}

	for _, want := range []string{
		"<title>Field Notes</title>",
		"<h2>Notes</h2>",
		"<strong>bold</strong>",
		"&amp; &lt;plain&gt;",
		"Avery",
		"Mar 14, 2026",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("rendered page missing %q", want)
		}
	}
}

func TestRenderDocumentHTMLEscapesTitle(t *testing.T) {
	page, err := RenderDocumentHTML(TemplateData{Title: `<script>alert("x")</script>`})
	if err != nil {
		t.Fatalf("RenderDocumentHTML() error = %v", err)
	}
	if strings.Contains(page, "<script>alert") {
		t.Fatal("title was not escaped")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Simple Title", "Simple-Title"},
		{"", "document"},
		{"!!!", "document"},
		{"Notes: Q2 / Planning", "Notes-Q2--Planning"},
		{strings.Repeat("a", 80), strings.Repeat("a", 50)},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.title); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abc-DEF_0.9~", "abc-DEF_0.9~"},
		{"a b", "a%20b"},
		{"<p>&</p>", "%3Cp%3E%26%3C%2Fp%3E"},
		{"é", "%C3%A9"},
	}
	for _, tt := range tests {
		if got := percentEncodeForDataURL(tt.in); got != tt.want {
			t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	svc := NewService()
	if _, err := svc.Export(context.Background(), Document{Title: "Doc"}, Format("epub")); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
