package memtiming_test

import (
	"testing"

	"github.com/jetsetilly/psxbus/internal/memtiming"
)

// Fixtures derived from the reset defaults in original_source/src/core/bus.cpp
// (Bus::Reset): bios_delay_size=0x0013243F, cdrom_delay_size=0x00020843,
// spu_delay_size=0x200931E1, common_delay=0x00031125.
func TestCalculateAgainstResetDefaults(t *testing.T) {
	common := memtiming.Common{COM0: 5, COM2: 1, COM3: 1}

	cases := []struct {
		name             string
		delay            memtiming.Delay
		byte, half, word int
	}{
		{
			name:  "bios",
			delay: memtiming.Delay{AccessTime: 15, UseCOM2Time: true},
			byte:  19, half: 37, word: 73,
		},
		{
			name:  "cdrom",
			delay: memtiming.Delay{AccessTime: 3, UseCOM3Time: true},
			byte:  7, half: 12, word: 22,
		},
		{
			name:  "spu",
			delay: memtiming.Delay{AccessTime: 1, UseCOM0Time: true, DataBus16: true},
			byte:  8, half: 8, word: 15,
		},
	}

	for _, c := range cases {
		byteTicks, halfTicks, wordTicks := memtiming.Calculate(c.delay, common)
		if byteTicks != c.byte || halfTicks != c.half || wordTicks != c.word {
			t.Errorf("%s: got (%d,%d,%d), want (%d,%d,%d)", c.name, byteTicks, halfTicks, wordTicks, c.byte, c.half, c.word)
		}
	}
}

func Test16BitBusSkipsExtraSequentialPenalty(t *testing.T) {
	// when data_bus_16bit is set, halfword access costs the same as byte
	// access, and word access costs byte+seq rather than byte+3*seq.
	d := memtiming.Delay{AccessTime: 4, DataBus16: true}
	c := memtiming.Common{}
	byteTicks, halfTicks, wordTicks := memtiming.Calculate(d, c)
	if halfTicks != byteTicks {
		t.Errorf("expected halfword ticks to equal byte ticks on a 16-bit bus, got byte=%d half=%d", byteTicks, halfTicks)
	}
	if wordTicks <= halfTicks {
		t.Errorf("expected word ticks to exceed halfword ticks, got half=%d word=%d", halfTicks, wordTicks)
	}
}
