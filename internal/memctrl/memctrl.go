// Package memctrl implements the MEMCTRL/MEMCTRL2 configuration registers
// and the bit-packed MEMDELAY/COMDELAY fields they're built from. The
// explicit shift/mask accessor style follows spec.md §9's design note and
// the teacher's own convention in hardware/memory/cpubus/registers.go of
// naming every bit position rather than hiding it behind an opaque
// bitfield struct.
package memctrl

import (
	"github.com/jetsetilly/psxbus/internal/memtiming"
	"github.com/jetsetilly/psxbus/internal/savestate"
)

// MemDelay is a region's delay/size configuration register (exp1, exp3,
// bios, spu, cdrom, exp2 all share this layout).
type MemDelay uint32

// MemDelayWriteMask resolves spec.md §9's Open Question: the no$psx-documented
// MEMDELAY layout reserves bits 29-31, so they never stick on write (see
// SPEC_FULL.md §7).
const MemDelayWriteMask = uint32(0x1FFFFFFF)

func (d MemDelay) AccessTime() uint32 { return uint32(d) & 0xF }
func (d MemDelay) UseCOM0Time() bool  { return uint32(d)&(1<<8) != 0 }
func (d MemDelay) UseCOM1Time() bool  { return uint32(d)&(1<<9) != 0 }
func (d MemDelay) UseCOM2Time() bool  { return uint32(d)&(1<<10) != 0 }
func (d MemDelay) UseCOM3Time() bool  { return uint32(d)&(1<<11) != 0 }
func (d MemDelay) DataBus16() bool    { return uint32(d)&(1<<12) != 0 }
func (d MemDelay) SizeWindow() uint32 { return (uint32(d) >> 16) & 0x1F }

// Timing returns this region's delay fields in the shape memtiming.Calculate
// expects.
func (d MemDelay) Timing() memtiming.Delay {
	return memtiming.Delay{
		AccessTime:  d.AccessTime(),
		UseCOM0Time: d.UseCOM0Time(),
		UseCOM2Time: d.UseCOM2Time(),
		UseCOM3Time: d.UseCOM3Time(),
		DataBus16:   d.DataBus16(),
	}
}

// ComDelay is the global common-delay register (com0..com3, each 4 bits).
type ComDelay uint32

// ComDelayWriteMask resolves spec.md §9's Open Question for COMDELAY: bits
// 16-31 are reserved on real hardware (see SPEC_FULL.md §7).
const ComDelayWriteMask = uint32(0x0000FFFF)

func (c ComDelay) COM0() uint32 { return uint32(c) & 0xF }
func (c ComDelay) COM1() uint32 { return (uint32(c) >> 4) & 0xF }
func (c ComDelay) COM2() uint32 { return (uint32(c) >> 8) & 0xF }
func (c ComDelay) COM3() uint32 { return (uint32(c) >> 12) & 0xF }

// Common returns this register's fields in the shape memtiming.Calculate
// expects.
func (c ComDelay) Common() memtiming.Common {
	return memtiming.Common{COM0: c.COM0(), COM2: c.COM2(), COM3: c.COM3()}
}

// Register indexes the 9 u32 MEMCTRL registers, in the order spec.md §3
// lists them (and the order the save-state surface must preserve).
type Register int

const (
	EXP1Base Register = iota
	EXP2Base
	EXP1DelaySize
	EXP3DelaySize
	BIOSDelaySize
	SPUDelaySize
	CDROMDelaySize
	EXP2DelaySize
	CommonDelay
)

// NumRegisters is the number of MEMCTRL registers (36 bytes / 4).
const NumRegisters = 9

// AccessTimes is the (byte, halfword, word) access-tick table produced by
// RecalculateTimings for one region.
type AccessTimes struct {
	Byte, Half, Word int
}

// Control owns the 9 MEMCTRL registers and the 5 cached access-time
// tables (EXP1, EXP2, BIOS, CDROM, SPU) that spec.md §4.4/§6 says must be
// recomputed together whenever a masked register write changes its stored
// value. The tables are not written to a save state; DoState rebuilds them
// from the restored registers.
type Control struct {
	regs [NumRegisters]uint32

	ramSizeReg uint32

	EXP1  AccessTimes
	EXP2  AccessTimes
	BIOS  AccessTimes
	CDROM AccessTimes
	SPU   AccessTimes
}

// New returns a Control initialized to the power-on defaults from
// original_source/src/core/bus.cpp's Bus::Reset.
func New() *Control {
	c := &Control{}
	c.Reset()
	return c
}

// Reset restores the power-on register values and recomputes the timing
// tables.
func (c *Control) Reset() {
	c.regs[EXP1Base] = 0x1F000000
	c.regs[EXP2Base] = 0x1F802000
	c.regs[EXP1DelaySize] = 0x0013243F
	c.regs[EXP3DelaySize] = 0x00003022
	c.regs[BIOSDelaySize] = 0x0013243F
	c.regs[SPUDelaySize] = 0x200931E1
	c.regs[CDROMDelaySize] = 0x00020843
	c.regs[EXP2DelaySize] = 0x00070777
	c.regs[CommonDelay] = 0x00031125
	c.ramSizeReg = 0x00000B88
	c.recalculate()
}

func (c *Control) recalculate() {
	common := ComDelay(c.regs[CommonDelay]).Common()
	c.EXP1 = c.timingFor(EXP1DelaySize, common)
	c.EXP2 = c.timingFor(EXP2DelaySize, common)
	c.BIOS = c.timingFor(BIOSDelaySize, common)
	c.CDROM = c.timingFor(CDROMDelaySize, common)
	c.SPU = c.timingFor(SPUDelaySize, common)
}

func (c *Control) timingFor(reg Register, common memtiming.Common) AccessTimes {
	byteTicks, halfTicks, wordTicks := memtiming.Calculate(MemDelay(c.regs[reg]).Timing(), common)
	return AccessTimes{Byte: byteTicks, Half: halfTicks, Word: wordTicks}
}

// ReadRegister reads one of the 9 MEMCTRL u32 registers by byte offset
// (0, 4, 8, ..., 32).
func (c *Control) ReadRegister(offset uint32) uint32 {
	index := offset / 4
	if index >= NumRegisters {
		return 0xFFFFFFFF
	}
	return c.regs[index]
}

// WriteRegister writes a MEMCTRL register, masking illegal bits and
// recomputing the timing tables only when the masked value actually
// changes (spec.md §4.3/§4.4).
func (c *Control) WriteRegister(offset uint32, value uint32) {
	index := offset / 4
	if index >= NumRegisters {
		return
	}

	mask := MemDelayWriteMask
	if Register(index) == CommonDelay {
		mask = ComDelayWriteMask
	}

	newValue := (c.regs[index] & ^mask) | (value & mask)
	if newValue != c.regs[index] {
		c.regs[index] = newValue
		c.recalculate()
	}
}

// ReadRAMSize reads MEMCTRL2's single RAM-size register.
func (c *Control) ReadRAMSize() uint32 { return c.ramSizeReg }

// WriteRAMSize writes MEMCTRL2's single RAM-size register. Unlike MEMCTRL,
// no masking or timing recomputation applies.
func (c *Control) WriteRAMSize(value uint32) { c.ramSizeReg = value }

// DoState serializes the 9 raw registers and the RAM-size register; the
// access-time tables are derived and recomputed on load rather than stored.
func (c *Control) DoState(sw savestate.Serializer) error {
	for i := range c.regs {
		sw.Uint32("", &c.regs[i])
	}
	sw.Uint32("", &c.ramSizeReg)
	if sw.Error() != nil {
		return sw.Error()
	}
	c.recalculate()
	return nil
}
