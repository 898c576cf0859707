package core

import "context"

// SliceSource is an in-memory DocumentSource backed by a slice. It is the
// source of choice for programmatic corpora and tests.
type SliceSource struct {
	name string
	docs []*Document
}

// NewSliceSource creates a named source over the given documents.
func NewSliceSource(name string, docs ...*Document) *SliceSource {
	return &SliceSource{name: name, docs: docs}
}

// Name identifies the source.
func (s *SliceSource) Name() string {
	return s.name
}

// Add appends a document to the source.
func (s *SliceSource) Add(doc *Document) {
	s.docs = append(s.docs, doc)
}

// Len is the number of documents held.
func (s *SliceSource) Len() int {
	return len(s.docs)
}

// Each visits the documents in insertion order.
func (s *SliceSource) Each(ctx context.Context, fn func(*Document) error) error {
	for _, doc := range s.docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}
