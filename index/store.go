package index

import (
	"github.com/intellect4all/geoindex/codec"
	"github.com/intellect4all/geoindex/page"
)

// pageSource adapts a page.Store into buffer.Source/fast.Source/efind.Source
// (all the same shape), encoding/decoding nodes with codec.Serialize/
// Deserialize, SPEC_FULL.md §4.2/§4.1. It is also the one place that knows
// how to write the tombstone sentinel a delete leaves behind.
type pageSource struct {
	store  *page.Store
	dim    int
	kind   codec.Kind
}

func newPageSource(store *page.Store, dim int, kind codec.Kind) *pageSource {
	return &pageSource{store: store, dim: dim, kind: kind}
}

func (s *pageSource) ReadNode(pageID uint32, height int) (codec.Node, error) {
	buf := make([]byte, s.store.PageSize())
	if err := s.store.ReadPage(page.ID(pageID), buf); err != nil {
		return codec.Node{}, err
	}
	return codec.Deserialize(buf, s.dim, s.kind, height)
}

func (s *pageSource) WriteNode(pageID uint32, n codec.Node) error {
	buf := make([]byte, s.store.PageSize())
	if err := codec.Serialize(n, s.dim, buf); err != nil {
		return err
	}
	return s.store.WritePage(page.ID(pageID), buf)
}

// WriteTombstone overwrites pageID with the deleted-page sentinel, spec.md
// §4.2/§6. Buffer-backed NodeStore adapters call this directly (bypassing
// PutDirty/PutNew) and then evict any cached copy, since none of the
// buffer variants model a delete distinctly from a dirty write.
func (s *pageSource) WriteTombstone(pageID uint32) error {
	buf := make([]byte, s.store.PageSize())
	if err := codec.SerializeTombstone(buf); err != nil {
		return err
	}
	return s.store.WritePage(page.ID(pageID), buf)
}
