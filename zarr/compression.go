package zarr

import (
	"io"

	"github.com/qri-io/dataset/compression"
)

// CompressionMeta defines compression settings zarr-go understands. A nil
// *CompressionMeta is the zarr null compressor: chunks are stored raw.
type CompressionMeta struct {
	ID      string `json:"id"`
	Cname   string `json:"cname,omitempty"`
	Clevel  int    `json:"clevel,omitempty"`
	Shuffle int    `json:"shuffle,omitempty"`
}

func (m *CompressionMeta) Decompressor(r io.ReadCloser) (io.ReadCloser, error) {
	if m == nil || m.ID == "" {
		return r, nil
	}
	return compression.Decompressor(m.ID, r)
}

func (m *CompressionMeta) Compressor(w io.Writer) (io.WriteCloser, error) {
	if m == nil || m.ID == "" {
		return nopWriteCloser{w}, nil
	}
	return compression.Compressor(m.ID, w)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
