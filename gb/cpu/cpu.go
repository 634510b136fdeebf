package cpu

import (
	"fmt"
	"io"

	"github.com/Stenodyon/gb/gb/bit"
)

// Bus is the memory system as seen from the CPU. Every Read/Write is a
// plain bus access; Tick advances every peripheral by one machine
// cycle, and the CPU calls it once per memory access and once per
// internal delay so the whole machine stays phase locked.
type Bus interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
	Tick()
	DMACopy(page uint8, offset uint8)
}

const interruptVectorBase uint16 = 0x0040

// CPU is an LR35902 interpreter. It also hosts the interrupt
// controller (IE/IF/IME) and the OAM DMA engine, both of which live on
// the CPU die on real hardware.
type CPU struct {
	a  uint8
	f  uint8
	b  uint8
	c  uint8
	d  uint8
	e  uint8
	h  uint8
	l  uint8
	sp uint16
	pc uint16

	ime       bool
	eiPending bool
	halted    bool
	stopped   bool

	interruptFlag   uint8
	interruptEnable uint8

	dmaActive   bool
	dmaPage     uint8
	dmaProgress uint16

	// HaltBugEnabled switches on the hardware quirk where HALT with
	// IME clear and a pending interrupt makes the next opcode byte
	// execute twice. Off by default; left as a configurable choice
	// since most programs never hit it.
	HaltBugEnabled bool
	haltBug        bool

	currentOpcode uint16
	trace         io.Writer

	bus Bus
}

// New returns a CPU wired to the given bus, with the post-boot-ROM
// register state.
func New(bus Bus) *CPU {
	cpu := &CPU{bus: bus}

	cpu.setAF(0x01B0)
	cpu.setBC(0x0013)
	cpu.setDE(0x00D8)
	cpu.setHL(0x014D)
	cpu.sp = 0xFFFE
	cpu.pc = 0x0100

	return cpu
}

// SetTrace installs a writer receiving one line per executed
// instruction (PC, opcode bytes, mnemonic). A nil writer disables
// tracing.
func (c *CPU) SetTrace(w io.Writer) {
	c.trace = w
}

// StepInstruction executes exactly one instruction, or one machine
// cycle while halted. All bus and peripheral time advances through the
// ticks issued by the accessors below.
func (c *CPU) StepInstruction() {
	if c.pc >= 0x8000 && c.pc < 0xA000 {
		panic(fmt.Sprintf("executing code from VRAM at 0x%04X\n%s", c.pc, c.Dump()))
	}

	if c.serviceInterrupt() {
		return
	}

	if c.halted {
		pending := c.interruptEnable&c.interruptFlag&0x1F != 0
		if !pending {
			c.tick()
			return
		}
		// IE & IF pending with IME clear: resume execution
		c.halted = false
	}

	if c.trace != nil {
		c.traceInstruction()
	}

	enableAfter := c.eiPending

	opcode := c.fetchOpcode()
	if opcode == 0xCB {
		sub := c.fetchByte()
		c.currentOpcode = bit.Combine(0xCB, sub)
		opcodesCB[sub](c)
	} else {
		c.currentOpcode = uint16(opcode)
		opcodes[opcode](c)
	}

	// EI enables interrupts only after the following instruction
	if enableAfter && c.eiPending {
		c.eiPending = false
		c.ime = true
	}
}

// serviceInterrupt dispatches the highest-priority pending interrupt if
// the master flag allows it. Servicing costs 5 machine cycles: two
// internal delays, the PC push and the vector load.
func (c *CPU) serviceInterrupt() bool {
	pending := c.interruptEnable & c.interruptFlag & 0x1F
	if !c.ime || pending == 0 {
		return false
	}

	for i := uint8(0); i < 5; i++ {
		if pending&(1<<i) == 0 {
			continue
		}
		c.interruptFlag = bit.Clear(i, c.interruptFlag)
		c.ime = false
		c.halted = false

		c.tick()
		c.tick()
		c.push16(c.pc)
		c.pc = interruptVectorBase + uint16(i)*8
		c.tick()
		return true
	}
	return false
}

// RequestInterrupt sets the IF bit for an interrupt source. The request
// becomes observable at the next instruction boundary.
func (c *CPU) RequestInterrupt(kind uint8) {
	c.interruptFlag |= 1 << kind
}

// ReadIF returns the interrupt flag register.
func (c *CPU) ReadIF() uint8 { return c.interruptFlag }

// WriteIF stores the interrupt flag register.
func (c *CPU) WriteIF(value uint8) { c.interruptFlag = value & 0x1F }

// ReadIE returns the interrupt enable register.
func (c *CPU) ReadIE() uint8 { return c.interruptEnable }

// WriteIE stores the interrupt enable register.
func (c *CPU) WriteIE(value uint8) { c.interruptEnable = value }

// StartDMA arms an OAM DMA transfer from page<<8. One byte copies per
// machine cycle for the next 160 cycles.
func (c *CPU) StartDMA(page uint8) {
	c.dmaActive = true
	c.dmaPage = page
	c.dmaProgress = 0
}

// DMAActive reports whether an OAM DMA transfer is in progress.
func (c *CPU) DMAActive() bool { return c.dmaActive }

// tick advances the machine by one cycle: the bus fans it out to the
// PPU, joypad, timer and APU, then the DMA engine moves one byte.
func (c *CPU) tick() {
	c.bus.Tick()
	c.cycleDMA()
}

func (c *CPU) cycleDMA() {
	if !c.dmaActive {
		return
	}
	c.bus.DMACopy(c.dmaPage, uint8(c.dmaProgress))
	c.dmaProgress++
	if c.dmaProgress >= 0xA0 {
		c.dmaActive = false
	}
}

// readCycle is a bus read costing one machine cycle.
func (c *CPU) readCycle(address uint16) uint8 {
	value := c.bus.Read(address)
	c.tick()
	return value
}

// writeCycle is a bus write costing one machine cycle.
func (c *CPU) writeCycle(address uint16, value uint8) {
	c.bus.Write(address, value)
	c.tick()
}

// fetchOpcode reads the next opcode byte. Under the halt bug the PC is
// not advanced, so the byte is fetched again as the next instruction's
// opcode or operand.
func (c *CPU) fetchOpcode() uint8 {
	value := c.readCycle(c.pc)
	if c.haltBug {
		c.haltBug = false
	} else {
		c.pc++
	}
	return value
}

// fetchByte reads an immediate operand byte at PC.
func (c *CPU) fetchByte() uint8 {
	value := c.readCycle(c.pc)
	c.pc++
	return value
}

// fetchWord reads a little-endian immediate operand word at PC.
func (c *CPU) fetchWord() uint16 {
	low := c.fetchByte()
	high := c.fetchByte()
	return bit.Combine(high, low)
}

func (c *CPU) pop16() uint16 {
	low := c.readCycle(c.sp)
	c.sp++
	high := c.readCycle(c.sp)
	c.sp++
	return bit.Combine(high, low)
}

func (c *CPU) push16(value uint16) {
	c.sp--
	c.writeCycle(c.sp, bit.High(value))
	c.sp--
	c.writeCycle(c.sp, bit.Low(value))
}

func (c *CPU) traceInstruction() {
	opcode := c.bus.Read(c.pc)
	if opcode == 0xCB {
		sub := c.bus.Read(c.pc + 1)
		fmt.Fprintf(c.trace, "0x%04X: 0xcb 0x%02X %s\n", c.pc, sub, opcodeNamesCB[sub])
		return
	}
	fmt.Fprintf(c.trace, "0x%04X: 0x%02X      %s\n", c.pc, opcode, opcodeNames[opcode])
}

// Dump renders the register file, used when aborting on fatal errors.
func (c *CPU) Dump() string {
	return fmt.Sprintf(
		"A=%02x F=%02x B=%02x C=%02x\nD=%02x E=%02x H=%02x L=%02x\nPC=%04x SP=%04x flags=%s",
		c.a, c.f, c.b, c.c, c.d, c.e, c.h, c.l, c.pc, c.sp, c.FlagString())
}
