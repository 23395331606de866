// Package bus implements the address decoder, backing stores, and
// peripheral register multiplexer of a PlayStation 1 system. It plays the
// role the teacher's hardware/memory/cpubus and chipbus packages play for
// the VCS: every CPU load/store passes through here, and it routes decoded
// accesses either to its own backing stores (RAM, BIOS, EXP1) or out to a
// collaborator's register file, adapting width along the way.
package bus

import (
	"encoding/binary"

	"github.com/jetsetilly/psxbus/internal/irq"
	"github.com/jetsetilly/psxbus/internal/memctrl"
	"github.com/jetsetilly/psxbus/internal/memmap"
	"github.com/jetsetilly/psxbus/internal/pxlog"
	"github.com/jetsetilly/psxbus/internal/savestate"
	"github.com/jetsetilly/psxbus/internal/xerrors"
)

// RegisterDevice is the narrow interface every word-addressable peripheral
// presents to the bus (spec.md §6): GPU, MDEC, SPU, CDROM, Pad, DMA, and the
// timer unit all implement it.
type RegisterDevice interface {
	ReadRegister(offset uint32) uint32
	WriteRegister(offset uint32, value uint32)
}

// Collaborators holds the bus's non-owning handles to every peripheral it
// doesn't itself back. A nil field is treated as an unpopulated device:
// reads return all-ones, writes are dropped, matching an invalid access.
type Collaborators struct {
	INTC   irq.Controller
	GPU    RegisterDevice
	MDEC   RegisterDevice
	SPU    RegisterDevice
	CDROM  RegisterDevice
	Pad    RegisterDevice
	DMA    RegisterDevice
	Timers RegisterDevice
}

// Bus owns RAM, the scratchpad, the BIOS image, the optional EXP1 ROM, the
// MEMCTRL/MEMCTRL2 registers, and the TTY line buffer (spec.md §3's
// ownership rule), and multiplexes every other access out to Collaborators.
type Bus struct {
	collab Collaborators
	ctrl   *memctrl.Control

	ram        [memmap.RAMSize]byte
	scratchpad [memmap.ScratchpadSize]byte
	bios       [memmap.BIOSSize]byte
	exp1       []byte

	ttyLine    []byte
	postStatus byte
}

// NewBus returns a Bus wired to the given collaborators, with MEMCTRL reset
// to its power-on defaults and no BIOS or EXP1 ROM loaded yet.
func NewBus(collab Collaborators) *Bus {
	return &Bus{
		collab: collab,
		ctrl:   memctrl.New(),
	}
}

// LoadBIOS installs a BIOS image. The image must be exactly BIOSSize bytes;
// a mismatch is the one fatal init failure in this slice (spec.md §6/§7).
// On success the two fixed TTY-enable patches are applied immediately.
func (b *Bus) LoadBIOS(data []byte) error {
	if len(data) != len(b.bios) {
		return xerrors.New(xerrors.BIOSSizeMismatch, len(b.bios), len(data))
	}
	copy(b.bios[:], data)
	b.PatchBIOS(memmap.BIOSBase+0x6F0C, 0x24010001, 0xFFFFFFFF)
	b.PatchBIOS(memmap.BIOSBase+0x6F14, 0xAF81A9C0, 0xFFFFFFFF)
	return nil
}

// PatchBIOS performs an in-place read-modify-write on the BIOS image at a
// bus address: new = (old &^ mask) | (value & mask). Addresses outside the
// BIOS region are ignored.
func (b *Bus) PatchBIOS(address uint32, value uint32, mask uint32) {
	region, offset := memmap.Decode(address)
	if region != memmap.BIOS || offset+4 > uint32(len(b.bios)) {
		return
	}
	old := binary.LittleEndian.Uint32(b.bios[offset:])
	binary.LittleEndian.PutUint32(b.bios[offset:], (old &^ mask)|(value&mask))
}

// SetExpansionROM installs (or, with nil, removes) the optional EXP1 ROM.
func (b *Bus) SetExpansionROM(data []byte) { b.exp1 = data }

// MemControl exposes the owned MEMCTRL/MEMCTRL2 register block, mainly so
// callers can inspect the derived access-time tables.
func (b *Bus) MemControl() *memctrl.Control { return b.ctrl }

func (b *Bus) ReadByte(va uint32) (uint8, int) {
	v, ticks := b.access(va, 1, false, 0)
	return uint8(v), ticks
}

func (b *Bus) ReadHalfWord(va uint32) (uint16, int) {
	v, ticks := b.access(va, 2, false, 0)
	return uint16(v), ticks
}

func (b *Bus) ReadWord(va uint32) (uint32, int) {
	v, ticks := b.access(va, 4, false, 0)
	return v, ticks
}

// WriteByte, like WriteHalfWord below, dispatches through the write path.
// The source this module is grounded on dispatches sub-word writes with its
// read helper instead of its write helper, which looks like a transcription
// bug rather than intended behavior; this implementation does not
// reproduce it. See bus_test.go's dispatch regression test.
func (b *Bus) WriteByte(va uint32, v uint8) int {
	_, ticks := b.access(va, 1, true, uint32(v))
	return ticks
}

func (b *Bus) WriteHalfWord(va uint32, v uint16) int {
	_, ticks := b.access(va, 2, true, uint32(v))
	return ticks
}

func (b *Bus) WriteWord(va uint32, v uint32) int {
	_, ticks := b.access(va, 4, true, v)
	return ticks
}

// access is the single dispatch point every Read*/Write* funnels through,
// parameterized by width rather than duplicated per size (spec.md §9's
// design note leaves the choice of table-vs-switch open; this is a switch
// over region since the per-region logic differs too much to tabulate
// cleanly).
func (b *Bus) access(va uint32, width int, isWrite bool, value uint32) (uint32, int) {
	region, offset := memmap.Decode(va)
	switch region {
	case memmap.RAM:
		return b.accessStore(b.ram[:], offset, width, isWrite, value, 4)
	case memmap.Scratchpad:
		return b.accessStore(b.scratchpad[:], offset, width, isWrite, value, 1)
	case memmap.EXP1:
		return b.accessEXP1(offset, width, isWrite, value)
	case memmap.BIOS:
		return b.accessBIOS(offset, width, isWrite, value)
	case memmap.MemCtrl:
		result := adaptedRegisterAccess(b.ctrl.ReadRegister, b.ctrl.WriteRegister, offset, width, isWrite, value)
		return result, 2
	case memmap.MemCtrl2:
		return b.accessMemCtrl2(offset, width, isWrite, value)
	case memmap.Pad:
		return b.collabAccess(b.collab.Pad, offset, width, isWrite, value, 2)
	case memmap.SIO:
		return b.accessSIO(offset, width, isWrite, value)
	case memmap.INTC:
		return b.collabAccess(b.collab.INTC, offset, width, isWrite, value, 2)
	case memmap.DMA:
		return b.accessDMA(offset, width, isWrite, value)
	case memmap.Timers:
		return b.collabAccess(b.collab.Timers, offset, width, isWrite, value, 2)
	case memmap.CDROM:
		return b.accessCDROM(offset, width, isWrite, value)
	case memmap.GPU:
		return b.collabAccess(b.collab.GPU, offset, width, isWrite, value, 2)
	case memmap.MDEC:
		return b.collabAccess(b.collab.MDEC, offset, width, isWrite, value, 2)
	case memmap.SPU:
		return b.accessSPU(offset, width, isWrite, value)
	case memmap.EXP2:
		return b.accessEXP2(offset, width, isWrite, value)
	}

	pxlog.Logf(pxlog.Allow, "bus", "invalid access va=%#08x write=%v", va, isWrite)
	if isWrite {
		return 0, 1
	}
	return widthMask(width), 1
}

func (b *Bus) accessStore(store []byte, offset uint32, width int, isWrite bool, value uint32, ticks int) (uint32, int) {
	if isWrite {
		writeLE(store, offset, width, value)
		return 0, ticks
	}
	return readLE(store, offset, width), ticks
}

func (b *Bus) accessBIOS(offset uint32, width int, isWrite bool, value uint32) (uint32, int) {
	ticks := accessTimeFor(b.ctrl.BIOS, width)
	if isWrite {
		pxlog.Logf(pxlog.Allow, "bus", "ignored BIOS write offset=%#x", offset)
		return 0, ticks
	}
	if offset+uint32(width) > uint32(len(b.bios)) {
		return widthMask(width), ticks
	}
	return readLE(b.bios[:], offset, width), ticks
}

func (b *Bus) accessEXP1(offset uint32, width int, isWrite bool, value uint32) (uint32, int) {
	ticks := accessTimeFor(b.ctrl.EXP1, width)
	if isWrite {
		pxlog.Logf(pxlog.Allow, "bus", "ignored EXP1 write offset=%#x", offset)
		return 0, ticks
	}
	if b.exp1 == nil {
		return widthMask(width), ticks
	}
	// Action-Replay sentinel: cartridges probe this offset to detect the
	// presence of an EXP1 device before trusting the rest of the image.
	if offset == 0x20018 {
		return 1, ticks
	}
	if offset+uint32(width) > uint32(len(b.exp1)) {
		return 0, ticks
	}
	return readLE(b.exp1, offset, width), ticks
}

func (b *Bus) accessMemCtrl2(offset uint32, width int, isWrite bool, value uint32) (uint32, int) {
	read := func(uint32) uint32 { return b.ctrl.ReadRAMSize() }
	write := func(_ uint32, v uint32) { b.ctrl.WriteRAMSize(v) }
	result := adaptedRegisterAccess(read, write, offset, width, isWrite, value)
	return result, 2
}

func (b *Bus) accessSIO(offset uint32, width int, isWrite bool, value uint32) (uint32, int) {
	if isWrite {
		return 0, 2
	}
	if offset == 0x04 {
		return 0x5, 2
	}
	return 0, 2
}

func (b *Bus) accessDMA(offset uint32, width int, isWrite bool, value uint32) (uint32, int) {
	if isWrite && width < 4 && isDMALengthRegister(offset) {
		if b.collab.DMA != nil {
			b.collab.DMA.WriteRegister(offset&^3, truncate(value, width))
		}
		return 0, 2
	}
	return b.collabAccess(b.collab.DMA, offset, width, isWrite, value, 2)
}

// isDMALengthRegister identifies a per-channel length register, per the
// exact condition this module's behavior is grounded on: offset&0xF0 < 7
// selects channel 0's block, and offset&0x0F == 0x04 selects its length
// register within that block.
func isDMALengthRegister(offset uint32) bool {
	return (offset&0xF0) < 7 && (offset&0x0F) == 0x04
}

func (b *Bus) accessCDROM(offset uint32, width int, isWrite bool, value uint32) (uint32, int) {
	if width != 1 {
		pxlog.Logf(pxlog.Allow, "bus", "non-byte CDROM access width=%d offset=%#x", width, offset)
	}
	ticks := accessTimeFor(b.ctrl.CDROM, width)
	dev := b.collab.CDROM
	if dev == nil {
		if isWrite {
			return 0, ticks
		}
		return widthMask(width), ticks
	}
	if isWrite {
		dev.WriteRegister(offset, truncate(value, width))
		return 0, ticks
	}
	return truncate(dev.ReadRegister(offset), width), ticks
}

func (b *Bus) accessSPU(offset uint32, width int, isWrite bool, value uint32) (uint32, int) {
	ticks := accessTimeFor(b.ctrl.SPU, width)
	dev := b.collab.SPU
	if dev == nil {
		if isWrite {
			return 0, ticks
		}
		return widthMask(width), ticks
	}

	switch width {
	case 4:
		// SPU is 16-bit native; a word access is split into two successive
		// halfword accesses rather than shifted like the 32-bit registers.
		if isWrite {
			dev.WriteRegister(offset, value&0xFFFF)
			dev.WriteRegister(offset+2, (value>>16)&0xFFFF)
			return 0, ticks
		}
		lo := dev.ReadRegister(offset) & 0xFFFF
		hi := dev.ReadRegister(offset+2) & 0xFFFF
		return lo | (hi << 16), ticks
	case 2:
		if isWrite {
			dev.WriteRegister(offset, value&0xFFFF)
			return 0, ticks
		}
		return dev.ReadRegister(offset) & 0xFFFF, ticks
	default:
		aligned := offset &^ 1
		shift := (offset & 1) * 8
		if isWrite {
			dev.WriteRegister(aligned, truncate(value, 1)<<shift)
			return 0, ticks
		}
		return truncate(dev.ReadRegister(aligned)>>shift, 1), ticks
	}
}

func (b *Bus) accessEXP2(offset uint32, width int, isWrite bool, value uint32) (uint32, int) {
	ticks := accessTimeFor(b.ctrl.EXP2, width)
	if isWrite {
		switch offset {
		case 0x23:
			b.writeTTY(byte(value))
		case 0x41:
			b.postStatus = byte(value) & 0xF
			pxlog.Logf(pxlog.Allow, "bus", "BIOS POST status %#x", b.postStatus)
		default:
			pxlog.Logf(pxlog.Allow, "bus", "ignored EXP2 write offset=%#x", offset)
		}
		return 0, ticks
	}
	if offset == 0x21 {
		return 0x0C, ticks
	}
	return widthMask(width), ticks
}

func (b *Bus) writeTTY(c byte) {
	switch c {
	case '\r':
		return
	case '\n':
		pxlog.Log(pxlog.Allow, "tty", string(b.ttyLine))
		b.ttyLine = b.ttyLine[:0]
	default:
		b.ttyLine = append(b.ttyLine, c)
	}
}

func (b *Bus) collabAccess(dev RegisterDevice, offset uint32, width int, isWrite bool, value uint32, ticks int) (uint32, int) {
	if dev == nil {
		if isWrite {
			return 0, ticks
		}
		return widthMask(width), ticks
	}
	return adaptedRegisterAccess(dev.ReadRegister, dev.WriteRegister, offset, width, isWrite, value), ticks
}

// adaptedRegisterAccess implements the unaligned sub-word adaptation rule
// for 32-bit-native registers (spec.md §4.3): reads shift the word-aligned
// value right and truncate; writes shift the narrow value left and write it
// as a full-width word, leaving any masking to the register's own write path.
func adaptedRegisterAccess(read func(uint32) uint32, write func(uint32, uint32), offset uint32, width int, isWrite bool, value uint32) uint32 {
	aligned := offset &^ 3
	shift := (offset & 3) * 8
	if isWrite {
		write(aligned, truncate(value, width)<<shift)
		return 0
	}
	return truncate(read(aligned)>>shift, width)
}

func accessTimeFor(t memctrl.AccessTimes, width int) int {
	switch width {
	case 1:
		return t.Byte
	case 2:
		return t.Half
	default:
		return t.Word
	}
}

func widthMask(width int) uint32 {
	switch width {
	case 1:
		return 0xFF
	case 2:
		return 0xFFFF
	default:
		return 0xFFFFFFFF
	}
}

func truncate(v uint32, width int) uint32 { return v & widthMask(width) }

func readLE(data []byte, offset uint32, width int) uint32 {
	switch width {
	case 1:
		return uint32(data[offset])
	case 2:
		return uint32(binary.LittleEndian.Uint16(data[offset:]))
	default:
		return binary.LittleEndian.Uint32(data[offset:])
	}
}

func writeLE(data []byte, offset uint32, width int, value uint32) {
	switch width {
	case 1:
		data[offset] = byte(value)
	case 2:
		binary.LittleEndian.PutUint16(data[offset:], uint16(value))
	default:
		binary.LittleEndian.PutUint32(data[offset:], value)
	}
}

// DoState serializes RAM, BIOS, the MEMCTRL register block (which
// recomputes its derived access-time tables on load rather than storing
// them separately), and the TTY line buffer, in that order. The five
// access-time tables are not part of the stream.
func (b *Bus) DoState(sw savestate.Serializer) error {
	if err := sw.Bytes("ram", b.ram[:]); err != nil {
		return err
	}
	if err := sw.Bytes("bios", b.bios[:]); err != nil {
		return err
	}
	if err := b.ctrl.DoState(sw); err != nil {
		return err
	}

	ttyLen := uint32(len(b.ttyLine))
	if err := sw.Uint32("ttyLen", &ttyLen); err != nil {
		return err
	}
	if uint32(len(b.ttyLine)) != ttyLen {
		b.ttyLine = make([]byte, ttyLen)
	}
	return sw.Bytes("tty", b.ttyLine)
}
