// Package memtiming converts MEMCTRL delay/size register fields into the
// per-width access-tick counts used by the bus's timing tables (BIOS,
// CDROM, SPU). Grounded line-for-line on original_source/src/core/bus.cpp's
// CalculateMemoryTiming, which the teacher's own memory packages have no
// equivalent of (the VCS has no variable memory timing) — this is new
// domain logic, not adapted teacher code, following the teacher's
// convention of a small pure function per concern.
package memtiming

// Delay carries the subset of a region's MEMDELAY register this
// calculation needs.
type Delay struct {
	AccessTime  uint32
	UseCOM0Time bool
	UseCOM2Time bool
	UseCOM3Time bool
	DataBus16   bool
}

// Common carries the subset of the global COMDELAY register this
// calculation needs.
type Common struct {
	COM0 uint32
	COM2 uint32
	COM3 uint32
}

// Calculate returns the byte, halfword and word access times (in CPU
// cycles) for a region given its delay fields and the shared COMDELAY
// fields, per spec.md §4.4.
func Calculate(d Delay, c Common) (byteTicks, halfTicks, wordTicks int) {
	first, seq, min := 0, 0, 0

	if d.UseCOM0Time {
		first += int(c.COM0) - 1
		seq += int(c.COM0) - 1
	}
	if d.UseCOM2Time {
		first += int(c.COM2)
		seq += int(c.COM2)
	}
	if d.UseCOM3Time {
		min = int(c.COM3)
	}
	if first < 6 {
		first++
	}

	first = first + int(d.AccessTime) + 2
	seq = seq + int(d.AccessTime) + 2

	if first < min+6 {
		first = min + 6
	}
	if seq < min+2 {
		seq = min + 2
	}

	byteTicks = first
	if d.DataBus16 {
		halfTicks = first
		wordTicks = first + seq
	} else {
		halfTicks = first + seq
		wordTicks = first + seq + seq + seq
	}
	return byteTicks, halfTicks, wordTicks
}
