// Package savestate defines the abstract serialization surface the bus and
// timer packages write their state through. spec.md §6 specifies the
// save-state surface's field order but leaves the binary format itself
// abstract ("Save-state format (specified abstractly)" — a Non-goal);
// Serializer is that abstraction, modeled on the original's StateWrapper
// (sw.Do(&x), sw.DoBytes, sw.HasError()).
package savestate

// Serializer is implemented by both the writer and the reader side of a
// save state; each call either serializes or deserializes the given field
// in place, depending on which direction the Serializer was built for.
// Implementations keep the first error encountered, ignore every further
// call, and report that error from Error, mirroring StateWrapper.HasError.
type Serializer interface {
	Bytes(label string, b []byte) error
	Uint8(label string, v *uint8) error
	Uint16(label string, v *uint16) error
	Uint32(label string, v *uint32) error
	Bool(label string, v *bool) error
	Error() error
}

// State is implemented by anything with a save-state surface.
type State interface {
	DoState(sw Serializer) error
}
