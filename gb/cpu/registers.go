package cpu

import "github.com/Stenodyon/gb/gb/bit"

// Flag is one of the 4 flags stored in the high nibble of F.
type Flag uint8

const (
	zeroFlag      Flag = 0x80
	subFlag       Flag = 0x40
	halfCarryFlag Flag = 0x20
	carryFlag     Flag = 0x10
)

func (c *CPU) setFlag(flag Flag) {
	c.f |= uint8(flag)
}

func (c *CPU) resetFlag(flag Flag) {
	c.f &^= uint8(flag)
}

func (c *CPU) isSetFlag(flag Flag) bool {
	return c.f&uint8(flag) != 0
}

// flagToBit returns 1 if the passed flag is set, 0 otherwise.
func (c *CPU) flagToBit(flag Flag) uint8 {
	if c.isSetFlag(flag) {
		return 1
	}
	return 0
}

func (c *CPU) setFlagToCondition(flag Flag, condition bool) {
	if condition {
		c.setFlag(flag)
	} else {
		c.resetFlag(flag)
	}
}

func (c *CPU) setBC(value uint16) {
	c.b = bit.High(value)
	c.c = bit.Low(value)
}

func (c *CPU) getBC() uint16 {
	return bit.Combine(c.b, c.c)
}

func (c *CPU) setDE(value uint16) {
	c.d = bit.High(value)
	c.e = bit.Low(value)
}

func (c *CPU) getDE() uint16 {
	return bit.Combine(c.d, c.e)
}

func (c *CPU) setHL(value uint16) {
	c.h = bit.High(value)
	c.l = bit.Low(value)
}

func (c *CPU) getHL() uint16 {
	return bit.Combine(c.h, c.l)
}

func (c *CPU) setAF(value uint16) {
	c.a = bit.High(value)
	// the low nibble of F always reads as zero
	c.f = bit.Low(value) & 0xF0
}

func (c *CPU) getAF() uint16 {
	return bit.Combine(c.a, c.f)
}

// Register getters used by the tracer, the fatal-error register dump
// and tests.
func (c *CPU) A() uint8   { return c.a }
func (c *CPU) F() uint8   { return c.f }
func (c *CPU) B() uint8   { return c.b }
func (c *CPU) C() uint8   { return c.c }
func (c *CPU) D() uint8   { return c.d }
func (c *CPU) E() uint8   { return c.e }
func (c *CPU) H() uint8   { return c.h }
func (c *CPU) L() uint8   { return c.l }
func (c *CPU) SP() uint16 { return c.sp }
func (c *CPU) PC() uint16 { return c.pc }

// IME reports the interrupt master enable flag.
func (c *CPU) IME() bool { return c.ime }

// Halted reports whether the CPU is waiting for an interrupt.
func (c *CPU) Halted() bool { return c.halted }

// FlagString renders the F register as "ZNHC" with dashes for clear bits.
func (c *CPU) FlagString() string {
	names := [4]struct {
		flag Flag
		ch   byte
	}{
		{zeroFlag, 'Z'},
		{subFlag, 'N'},
		{halfCarryFlag, 'H'},
		{carryFlag, 'C'},
	}
	out := make([]byte, 4)
	for i, n := range names {
		if c.isSetFlag(n.flag) {
			out[i] = n.ch
		} else {
			out[i] = '-'
		}
	}
	return string(out)
}
