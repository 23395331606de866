package memmap_test

import (
	"testing"

	"github.com/jetsetilly/psxbus/internal/memmap"
)

func TestRAMMirrors(t *testing.T) {
	// spec.md §8 property 1: all four 2 MiB RAM mirrors decode to the same
	// offset.
	base := uint32(0x00001000)
	mirrors := []uint32{base, base + 0x200000, base + 0x400000, base + 0x600000}

	var want uint32
	for i, pa := range mirrors {
		region, offset := memmap.Decode(pa)
		if region != memmap.RAM {
			t.Fatalf("mirror %d: expected RAM, got %s", i, region)
		}
		if i == 0 {
			want = offset
		} else if offset != want {
			t.Fatalf("mirror %d: offset %#x != %#x", i, offset, want)
		}
	}
}

func TestSegmentMirrors(t *testing.T) {
	// spec.md §8 property 2: KUSEG/KSEG0/KSEG1 are equivalent.
	pa := uint32(0x1FC06F0C)
	segments := []uint32{pa, pa | 0x80000000, pa | 0xA0000000}

	var wantRegion memmap.Region
	var wantOffset uint32
	for i, va := range segments {
		region, offset := memmap.Decode(va)
		if i == 0 {
			wantRegion, wantOffset = region, offset
			continue
		}
		if region != wantRegion || offset != wantOffset {
			t.Fatalf("segment %d: got (%s, %#x), want (%s, %#x)", i, region, offset, wantRegion, wantOffset)
		}
	}
}

func TestS1RAMMirrorScenario(t *testing.T) {
	for _, va := range []uint32{0x80201000, 0xA0401000, 0x00601000} {
		region, offset := memmap.Decode(va)
		if region != memmap.RAM || offset != 0x00001000 {
			t.Fatalf("va=%#x: got (%s, %#x), want (RAM, 0x1000)", va, region, offset)
		}
	}
}

func TestSubRangeDecode(t *testing.T) {
	cases := []struct {
		va     uint32
		region memmap.Region
		offset uint32
	}{
		{0x1F000000, memmap.EXP1, 0},
		{0x1F800000, memmap.Scratchpad, 0},
		{0x1F801000, memmap.MemCtrl, 0},
		{0x1F801040, memmap.Pad, 0},
		{0x1F801050, memmap.SIO, 0},
		{0x1F801060, memmap.MemCtrl2, 0},
		{0x1F801070, memmap.INTC, 0},
		{0x1F801080, memmap.DMA, 0},
		{0x1F801100, memmap.Timers, 0},
		{0x1F801800, memmap.CDROM, 0},
		{0x1F801810, memmap.GPU, 0},
		{0x1F801820, memmap.MDEC, 0},
		{0x1F801C00, memmap.SPU, 0},
		{0x1F802000, memmap.EXP2, 0},
		{0x1FC00000, memmap.BIOS, 0},
	}
	for _, c := range cases {
		region, offset := memmap.Decode(c.va)
		if region != c.region || offset != c.offset {
			t.Errorf("va=%#x: got (%s, %#x), want (%s, %#x)", c.va, region, offset, c.region, c.offset)
		}
	}
}

func TestInvalidAccess(t *testing.T) {
	region, _ := memmap.Decode(0x1F804000)
	if region != memmap.Invalid {
		t.Fatalf("expected invalid region, got %s", region)
	}
}
