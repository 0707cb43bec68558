package render

import (
	"time"

	"github.com/atelier-erp/atelier-erp/internal/purchasing"
)

// OrderRenderer runs the two-stage pipeline for purchase orders.
type OrderRenderer struct{}

// NewOrderRenderer constructs a renderer.
func NewOrderRenderer() *OrderRenderer {
	return &OrderRenderer{}
}

// RenderOrder builds the document model and lays it out as PDF bytes.
func (OrderRenderer) RenderOrder(snap purchasing.Snapshot, params map[string]string, generatedAt time.Time) ([]byte, error) {
	doc := BuildOrderDocument(snap, params, generatedAt)
	return RenderPDF(doc, Options{GeneratedAt: generatedAt})
}
