package domain

import "fmt"

// ElementType identifies what kind of document element a chunk was produced from.
type ElementType string

const (
	ElementText   ElementType = "text"
	ElementImage  ElementType = "image"
	ElementFigure ElementType = "figure"
	ElementTable  ElementType = "table"
)

// DocumentChunk is the unit of indexing and retrieval. It is immutable once
// stored and always carries enough provenance metadata (OwnerID, DocumentID)
// to filter retrieval by ownership.
type DocumentChunk struct {
	SourceID    string
	Page        int
	ElementType ElementType
	Content     string
	Caption     string
	OwnerID     string
	DocumentID  string
	Title       string
}

// VisualElement is the extracted description of an image, figure or table,
// as delivered by the upstream extraction pipeline.
type VisualElement struct {
	Type    ElementType
	Caption string
	Content string
	Page    int
}

// AnnotatedContent returns the element content prefixed with its type tag,
// matching the form stored in the indices ("[IMAGE] ...", "[FIGURE] caption ...").
func (v VisualElement) AnnotatedContent() string {
	switch v.Type {
	case ElementImage:
		return fmt.Sprintf("[IMAGE] %s", v.Content)
	case ElementFigure, ElementTable:
		return fmt.Sprintf("[%s] %s %s", upperTag(v.Type), v.Caption, v.Content)
	default:
		return v.Content
	}
}

func upperTag(t ElementType) string {
	switch t {
	case ElementImage:
		return "IMAGE"
	case ElementFigure:
		return "FIGURE"
	case ElementTable:
		return "TABLE"
	}
	return "TEXT"
}
