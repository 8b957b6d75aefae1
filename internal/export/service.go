package export

import (
	"context"
	"fmt"
	"html/template"
)

// Service renders documents into downloadable formats.
type Service struct{}

// NewService creates a new export service
func NewService() *Service {
	return &Service{}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, doc Document, format Format) (*Result, error) {
	contentHTML := ""
	if doc.Content != nil {
		contentHTML = doc.Content.HTML()
	}

	page, err := RenderDocumentHTML(TemplateData{
		Title:       doc.Title,
		ContentHTML: template.HTML(contentHTML),
		Author:      doc.Author,
		UpdatedAt:   doc.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch format {
	case FormatPDF:
		return exportPDF(ctx, page, doc.Title)
	case FormatDOCX:
		return exportDOCX(page, doc.Title)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
