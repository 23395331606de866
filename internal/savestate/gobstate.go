package savestate

import (
	"bytes"
	"encoding/gob"
)

// GobWriter is a reference Serializer that appends each field, in call
// order, to an in-memory buffer using encoding/gob. It exists so this
// module's tests can exercise a full DoState round trip end to end without
// this module committing to a concrete on-disk save-state format (that
// format is a Non-goal per spec.md §6).
type GobWriter struct {
	buf bytes.Buffer
	enc *gob.Encoder
	err error
}

// NewGobWriter returns an empty GobWriter.
func NewGobWriter() *GobWriter {
	w := &GobWriter{}
	w.enc = gob.NewEncoder(&w.buf)
	return w
}

// Encoded returns the encoded state, for handing to NewGobReader.
func (w *GobWriter) Encoded() []byte { return w.buf.Bytes() }

func (w *GobWriter) encode(label string, v interface{}) error {
	if w.err != nil {
		return w.err
	}
	if err := w.enc.Encode(v); err != nil {
		w.err = err
	}
	return w.err
}

func (w *GobWriter) Bytes(label string, b []byte) error      { return w.encode(label, b) }
func (w *GobWriter) Uint8(label string, v *uint8) error       { return w.encode(label, *v) }
func (w *GobWriter) Uint16(label string, v *uint16) error     { return w.encode(label, *v) }
func (w *GobWriter) Uint32(label string, v *uint32) error     { return w.encode(label, *v) }
func (w *GobWriter) Bool(label string, v *bool) error         { return w.encode(label, *v) }
func (w *GobWriter) Error() error                             { return w.err }

// GobReader is the read-side counterpart to GobWriter; DoState calls on the
// same State implementation, in the same field order, decode values back
// into the pointers passed in.
type GobReader struct {
	dec *gob.Decoder
	err error
}

// NewGobReader wraps previously-encoded state for reading.
func NewGobReader(encoded []byte) *GobReader {
	return &GobReader{dec: gob.NewDecoder(bytes.NewReader(encoded))}
}

func (r *GobReader) decode(v interface{}) error {
	if r.err != nil {
		return r.err
	}
	if err := r.dec.Decode(v); err != nil {
		r.err = err
	}
	return r.err
}

func (r *GobReader) Bytes(label string, b []byte) error {
	var tmp []byte
	if err := r.decode(&tmp); err != nil {
		return err
	}
	copy(b, tmp)
	return nil
}

func (r *GobReader) Uint8(label string, v *uint8) error   { return r.decode(v) }
func (r *GobReader) Uint16(label string, v *uint16) error { return r.decode(v) }
func (r *GobReader) Uint32(label string, v *uint32) error { return r.decode(v) }
func (r *GobReader) Bool(label string, v *bool) error     { return r.decode(v) }
func (r *GobReader) Error() error                         { return r.err }
