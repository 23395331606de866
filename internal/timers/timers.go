// Package timers implements the three hardware counters that share a
// register block at the bus's TIMERS region. Each counter has independent
// clock-source selection, gate-driven synchronization, and target/overflow
// interrupt generation; the package plays the role the teacher's
// hardware/riot/timer package plays for the VCS's single RIOT timer, scaled
// up to three counters and a richer mode register.
package timers

import (
	"math"

	"github.com/jetsetilly/psxbus/internal/irq"
	"github.com/jetsetilly/psxbus/internal/savestate"
)

// CPUHost is the narrow interface the timer unit calls back into. Synchronize
// flushes pending tick accounting up to the current CPU instruction before a
// register access observes or mutates counter state; SetDowncount publishes
// the tick budget the CPU may run before the next timer event needs
// attention.
type CPUHost interface {
	Synchronize()
	SetDowncount(ticks int)
}

// SyncMode is a counter's gate-synchronization state machine selector.
type SyncMode uint16

const (
	PauseOnGate SyncMode = iota
	ResetOnGate
	ResetAndRunOnGate
	FreeRunOnGate
)

// Mode is a timer's bit-packed mode register. Field layout follows the
// documented hardware register at TIMERS+0x04/0x14/0x24.
type Mode uint16

// WriteMask is the set of bits a mode-register write actually stores;
// higher bits are reserved (spec.md §4.6.6).
const WriteMask = Mode(0x1FFF)

func (m Mode) SyncEnable() bool        { return m&(1<<0) != 0 }
func (m Mode) SyncMode() SyncMode      { return SyncMode((m >> 1) & 0x3) }
func (m Mode) ResetAtTarget() bool     { return m&(1<<3) != 0 }
func (m Mode) IRQAtTarget() bool       { return m&(1<<4) != 0 }
func (m Mode) IRQOnOverflow() bool     { return m&(1<<5) != 0 }
func (m Mode) IRQRepeat() bool         { return m&(1<<6) != 0 }
func (m Mode) IRQPulseN() bool         { return m&(1<<7) != 0 }
func (m Mode) ClockSource() uint16     { return uint16((m >> 8) & 0x3) }
func (m Mode) InterruptRequestN() bool { return m&(1<<10) != 0 }
func (m Mode) ReachedTarget() bool     { return m&(1<<11) != 0 }
func (m Mode) ReachedOverflow() bool   { return m&(1<<12) != 0 }

func (m Mode) withBit(bit uint, v bool) Mode {
	if v {
		return m | Mode(1<<bit)
	}
	return m &^ Mode(1<<bit)
}

func (m Mode) withSyncEnable(v bool) Mode        { return m.withBit(0, v) }
func (m Mode) withInterruptRequestN(v bool) Mode { return m.withBit(10, v) }
func (m Mode) withReachedTarget(v bool) Mode     { return m.withBit(11, v) }
func (m Mode) withReachedOverflow(v bool) Mode   { return m.withBit(12, v) }

func (m Mode) clearLatches() Mode { return m.withReachedTarget(false).withReachedOverflow(false) }

// counter is one timer's full state (spec.md §3).
type counter struct {
	value  uint16
	target uint16
	mode   Mode
	gate   bool

	useExternalClock        bool
	externalCountingEnabled bool
	countingEnabled         bool

	irqDone bool
}

// downcountSentinel is published when no timer is presently eligible to
// raise an interrupt; a large tick budget the CPU may freely spend.
const downcountSentinel = math.MaxInt32

// TimerUnit owns the three counters (spec.md §3's ownership rule) and
// exposes them at TIMERS' register block, stride 0x10 per timer, offsets
// 0x00 counter / 0x04 mode / 0x08 target.
type TimerUnit struct {
	cpu  CPUHost
	intc irq.Controller

	counters [3]counter

	// sysclkDiv8Carry preserves the fractional sysclk tick left over when
	// timer 2's external clock divides the tick budget by 8.
	sysclkDiv8Carry int
}

// NewTimerUnit returns a TimerUnit with all three counters at their
// power-on defaults (mode 0: not synchronized, sysclk source, counting).
func NewTimerUnit(cpu CPUHost, intc irq.Controller) *TimerUnit {
	t := &TimerUnit{cpu: cpu, intc: intc}
	t.Reset()
	return t
}

// Reset restores all three counters to their power-on state.
func (t *TimerUnit) Reset() {
	for id := range t.counters {
		t.counters[id] = counter{}
		t.updateCountingEnabled(id)
	}
	t.sysclkDiv8Carry = 0
	t.updateDowncount()
}

// SetGate drives timer id's external gate signal. A rising edge while
// sync_enable is set has mode-specific effect on the counter (spec.md
// §4.6.1).
func (t *TimerUnit) SetGate(id int, gate bool) {
	c := &t.counters[id]
	rising := gate && !c.gate
	c.gate = gate

	if rising && c.mode.SyncEnable() {
		switch c.mode.SyncMode() {
		case ResetOnGate, ResetAndRunOnGate:
			c.value = 0
		case FreeRunOnGate:
			c.mode = c.mode.withSyncEnable(false)
		}
	}

	t.updateCountingEnabled(id)
	t.updateDowncount()
}

// updateCountingEnabled recomputes counting_enabled, use_external_clock, and
// external_counting_enabled for one counter from its current mode and gate.
func (t *TimerUnit) updateCountingEnabled(id int) {
	c := &t.counters[id]

	if !c.mode.SyncEnable() {
		c.countingEnabled = true
	} else {
		switch c.mode.SyncMode() {
		case PauseOnGate:
			c.countingEnabled = !c.gate
		case ResetOnGate:
			c.countingEnabled = true
		case ResetAndRunOnGate:
			c.countingEnabled = c.gate
		case FreeRunOnGate:
			c.countingEnabled = true
		}
	}

	c.useExternalClock = useExternalClock(id, c.mode)
	c.externalCountingEnabled = c.useExternalClock && c.countingEnabled
}

// useExternalClock implements spec.md §4.6's per-timer clock source rule:
// timer 2 checks clock_source bit 1, timers 0 and 1 check bit 0.
func useExternalClock(id int, mode Mode) bool {
	if id == 2 {
		return mode.ClockSource()&2 != 0
	}
	return mode.ClockSource()&1 != 0
}

// Execute advances all three counters by a sysclk-tick budget (spec.md
// §4.6.2), then republishes the CPU downcount.
func (t *TimerUnit) Execute(sysclkTicks uint32) {
	for id := 0; id < 2; id++ {
		c := &t.counters[id]
		if c.countingEnabled && !c.externalCountingEnabled {
			t.addTicks(id, sysclkTicks)
		}
	}

	c2 := &t.counters[2]
	if c2.externalCountingEnabled {
		total := sysclkTicks + uint32(t.sysclkDiv8Carry)
		t.addTicks(2, total/8)
		t.sysclkDiv8Carry = int(total % 8)
	} else if c2.countingEnabled {
		t.addTicks(2, sysclkTicks)
	}

	t.updateDowncount()
}

// addTicks implements spec.md §4.6.3 exactly, including the counter %=
// 0xFFFF wrap (a modulo, not a 16-bit mask) that real software depends on.
func (t *TimerUnit) addTicks(id int, n uint32) {
	c := &t.counters[id]

	old := uint32(c.value)
	cur := old + n

	irqRequest := false
	if cur >= uint32(c.target) && old < uint32(c.target) {
		c.mode = c.mode.withReachedTarget(true)
		irqRequest = true
	}
	if cur >= 0xFFFF {
		c.mode = c.mode.withReachedOverflow(true)
		irqRequest = true
	}
	if irqRequest {
		t.raiseIRQRequest(id)
	}

	if c.mode.ResetAtTarget() {
		if c.target > 0 {
			cur %= uint32(c.target)
		} else {
			cur = 0
		}
	} else {
		cur %= 0xFFFF
	}
	c.value = uint16(cur)
}

// raiseIRQRequest toggles or pulses interrupt_request_n and calls updateIRQ,
// per the inline logic in spec.md §4.6.3's AddTicks pseudocode.
func (t *TimerUnit) raiseIRQRequest(id int) {
	c := &t.counters[id]
	if !c.mode.IRQPulseN() {
		c.mode = c.mode.withInterruptRequestN(false)
		t.updateIRQ(id)
		c.mode = c.mode.withInterruptRequestN(true)
	} else {
		c.mode = c.mode.withInterruptRequestN(!c.mode.InterruptRequestN())
		t.updateIRQ(id)
	}
}

// updateIRQ fires the interrupt only if interrupt_request_n is asserted low
// and the one-shot latch isn't already spent (spec.md §4.6.4).
func (t *TimerUnit) updateIRQ(id int) {
	c := &t.counters[id]
	if c.mode.InterruptRequestN() {
		return
	}
	if !c.mode.IRQRepeat() && c.irqDone {
		return
	}
	c.irqDone = true
	if t.intc != nil {
		t.intc.InterruptRequest(irq.TMR0 + irq.IRQ(id))
	}
}

// updateDowncount implements spec.md §4.6.5.
func (t *TimerUnit) updateDowncount() {
	best := -1
	for id := 0; id < 3; id++ {
		c := &t.counters[id]
		if !c.countingEnabled || (id < 2 && c.externalCountingEnabled) {
			continue
		}
		candidate, ok := perTimerMinimum(c)
		if !ok {
			continue
		}
		if id == 2 && c.externalCountingEnabled {
			candidate /= 8
			if candidate < 1 {
				candidate = 1
			}
		}
		if best == -1 || candidate < best {
			best = candidate
		}
	}
	if best == -1 {
		best = downcountSentinel
	}
	if t.cpu != nil {
		t.cpu.SetDowncount(best)
	}
}

func perTimerMinimum(c *counter) (int, bool) {
	have := false
	min := 0
	if c.mode.IRQAtTarget() && uint32(c.value) < uint32(c.target) {
		min = int(c.target) - int(c.value)
		have = true
	}
	if c.mode.IRQOnOverflow() && uint32(c.value) < uint32(c.target) {
		v := 0xFFFF - int(c.value)
		if !have || v < min {
			min = v
		}
		have = true
	}
	return min, have
}

// ReadRegister and WriteRegister address the timer block at stride 0x10 per
// counter (spec.md §4.6.6). Both force a CPU synchronize first so the
// observed counter reflects ticks up to "now".
func (t *TimerUnit) ReadRegister(offset uint32) uint32 {
	id := int(offset / 0x10)
	if id > 2 {
		return 0xFFFFFFFF
	}
	t.synchronize()

	c := &t.counters[id]
	switch offset % 0x10 {
	case 0x00:
		return uint32(c.value)
	case 0x04:
		v := uint32(c.mode)
		c.mode = c.mode.clearLatches()
		return v
	case 0x08:
		return uint32(c.target)
	}
	return 0xFFFFFFFF
}

func (t *TimerUnit) WriteRegister(offset uint32, value uint32) {
	id := int(offset / 0x10)
	if id > 2 {
		return
	}
	t.synchronize()

	c := &t.counters[id]
	switch offset % 0x10 {
	case 0x00:
		c.value = uint16(value)
	case 0x04:
		c.mode = Mode(value) & WriteMask
		c.value = 0
		c.irqDone = false
		if c.mode.IRQPulseN() {
			c.mode = c.mode.withInterruptRequestN(true)
		}
		t.updateCountingEnabled(id)
	case 0x08:
		c.target = uint16(value)
	default:
		return
	}
	t.updateDowncount()
}

func (t *TimerUnit) synchronize() {
	if t.cpu != nil {
		t.cpu.Synchronize()
	}
}

// DoState serializes the three counters' full state, in id order, followed
// by the shared sysclk/8 carry (spec.md §6). Derived flags are recomputed
// after load rather than trusted from the stream.
func (t *TimerUnit) DoState(sw savestate.Serializer) error {
	for id := range t.counters {
		c := &t.counters[id]
		mode16 := uint16(c.mode)
		if err := sw.Uint16("mode", &mode16); err != nil {
			return err
		}
		c.mode = Mode(mode16)
		if err := sw.Uint16("counter", &c.value); err != nil {
			return err
		}
		if err := sw.Uint16("target", &c.target); err != nil {
			return err
		}
		if err := sw.Bool("gate", &c.gate); err != nil {
			return err
		}
		if err := sw.Bool("irqDone", &c.irqDone); err != nil {
			return err
		}
	}

	carry := uint8(t.sysclkDiv8Carry)
	if err := sw.Uint8("sysclkDiv8Carry", &carry); err != nil {
		return err
	}
	t.sysclkDiv8Carry = int(carry)

	for id := range t.counters {
		t.updateCountingEnabled(id)
	}
	t.updateDowncount()
	return sw.Error()
}
