package core

import "context"

// DocumentExtractor turns office documents into plain text.
type DocumentExtractor interface {
	// Supports reports whether contentType is handled by ExtractText.
	Supports(contentType string) bool
	// ExtractText converts data of the given content type to text.
	ExtractText(ctx context.Context, data []byte, contentType string) (string, error)
}
