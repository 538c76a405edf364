// Package document provides the immutable text blob the engine operates on
// and file-based sources that produce it. Text is taken as-is from the OCR
// collaborator: whitespace, line breaks and table markup are whatever it
// produced.
package document

// Document is an immutable document text with an identifier.
type Document struct {
	ID   string
	Text string
}

// New creates a document.
func New(id, text string) Document {
	return Document{ID: id, Text: text}
}

// Empty reports whether the document carries no text at all. An empty
// document is a valid absent input: the engine refuses to proceed for that
// unit of work instead of scanning nothing.
func (d Document) Empty() bool {
	return len(d.Text) == 0
}
