package cpu

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBus is a flat 64 KiB memory with a machine cycle counter, plus a
// log of DMA copies.
type testBus struct {
	mem       [0x10000]uint8
	ticks     int
	dmaCopies [][2]uint8
}

func (b *testBus) Read(address uint16) uint8         { return b.mem[address] }
func (b *testBus) Write(address uint16, value uint8) { b.mem[address] = value }
func (b *testBus) Tick()                             { b.ticks++ }
func (b *testBus) DMACopy(page uint8, offset uint8) {
	b.dmaCopies = append(b.dmaCopies, [2]uint8{page, offset})
}

// newTestCPU returns a CPU at PC=0x100 over a flat bus preloaded with
// the given program.
func newTestCPU(program ...uint8) (*CPU, *testBus) {
	bus := &testBus{}
	copy(bus.mem[0x100:], program)
	cpu := New(bus)
	return cpu, bus
}

func TestPowerUpState(t *testing.T) {
	cpu, _ := newTestCPU()

	assert.Equal(t, uint16(0x0100), cpu.PC())
	assert.Equal(t, uint16(0xFFFE), cpu.SP())
	assert.Equal(t, uint16(0x01B0), cpu.getAF())
	assert.Equal(t, uint16(0x0013), cpu.getBC())
	assert.Equal(t, uint16(0x00D8), cpu.getDE())
	assert.Equal(t, uint16(0x014D), cpu.getHL())
}

func TestFlagLowNibbleAlwaysZero(t *testing.T) {
	cpu, _ := newTestCPU()
	cpu.setAF(0xABCF)
	assert.Equal(t, uint8(0xC0), cpu.F())

	// POP AF must mask the low nibble too
	cpu, bus := newTestCPU(0xF1) // POP AF
	cpu.sp = 0xC000
	bus.mem[0xC000] = 0xFF
	bus.mem[0xC001] = 0x12
	cpu.StepInstruction()
	assert.Equal(t, uint8(0xF0), cpu.F())
	assert.Equal(t, uint8(0x12), cpu.A())
}

func TestBasicLoads(t *testing.T) {
	cpu, _ := newTestCPU(
		0x06, 0x42, // LD B, 0x42
		0x48,       // LD C, B
		0x3E, 0x99, // LD A, 0x99
	)
	cpu.StepInstruction()
	cpu.StepInstruction()
	cpu.StepInstruction()

	assert.Equal(t, uint8(0x42), cpu.B())
	assert.Equal(t, uint8(0x42), cpu.C())
	assert.Equal(t, uint8(0x99), cpu.A())
	assert.Equal(t, uint16(0x0105), cpu.PC())
}

func TestAddFlags(t *testing.T) {
	tests := []struct {
		name  string
		a, v  uint8
		want  uint8
		flags string
	}{
		{"no flags", 0x01, 0x02, 0x03, "----"},
		{"zero and carry", 0xFF, 0x01, 0x00, "Z-HC"},
		{"half carry", 0x0F, 0x01, 0x10, "--H-"},
		{"carry only", 0xF0, 0x20, 0x10, "---C"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpu, _ := newTestCPU(0xC6, tt.v) // ADD A, n
			cpu.a = tt.a
			cpu.f = 0
			cpu.StepInstruction()
			assert.Equal(t, tt.want, cpu.A())
			assert.Equal(t, tt.flags, cpu.FlagString())
		})
	}
}

func TestSubFlags(t *testing.T) {
	cpu, _ := newTestCPU(0xD6, 0x42) // SUB n
	cpu.a = 0x42
	cpu.f = 0
	cpu.StepInstruction()
	assert.Equal(t, uint8(0), cpu.A())
	assert.Equal(t, "ZN--", cpu.FlagString())

	cpu, _ = newTestCPU(0xD6, 0x01)
	cpu.a = 0x10
	cpu.f = 0
	cpu.StepInstruction()
	assert.Equal(t, uint8(0x0F), cpu.A())
	assert.Equal(t, "-NH-", cpu.FlagString())

	cpu, _ = newTestCPU(0xD6, 0x20)
	cpu.a = 0x10
	cpu.f = 0
	cpu.StepInstruction()
	assert.Equal(t, uint8(0xF0), cpu.A())
	assert.Equal(t, "-N-C", cpu.FlagString())
}

func TestAdcSbcUseCarry(t *testing.T) {
	cpu, _ := newTestCPU(0xCE, 0x00) // ADC A, 0
	cpu.a = 0x01
	cpu.setFlag(carryFlag)
	cpu.StepInstruction()
	assert.Equal(t, uint8(0x02), cpu.A())

	cpu, _ = newTestCPU(0xDE, 0x00) // SBC A, 0
	cpu.a = 0x01
	cpu.setFlag(carryFlag)
	cpu.StepInstruction()
	assert.Equal(t, uint8(0x00), cpu.A())
	assert.True(t, cpu.isSetFlag(zeroFlag))
}

func TestDAA(t *testing.T) {
	// 0x15 + 0x27 = 0x3C, DAA adjusts to BCD 42
	cpu, _ := newTestCPU(0xC6, 0x27, 0x27) // ADD A, 0x27; DAA
	cpu.a = 0x15
	cpu.StepInstruction()
	cpu.StepInstruction()
	assert.Equal(t, uint8(0x42), cpu.A())

	// 0x91 + 0x19 = 0xAA, DAA adjusts to 10 with carry
	cpu, _ = newTestCPU(0xC6, 0x19, 0x27)
	cpu.a = 0x91
	cpu.StepInstruction()
	cpu.StepInstruction()
	assert.Equal(t, uint8(0x10), cpu.A())
	assert.True(t, cpu.isSetFlag(carryFlag))
}

func TestInc16TakesExtraCycle(t *testing.T) {
	cpu, bus := newTestCPU(0x03) // INC BC
	before := bus.ticks
	cpu.StepInstruction()
	assert.Equal(t, 2, bus.ticks-before, "INC BC is 2 machine cycles")
	assert.Equal(t, uint16(0x0014), cpu.getBC())
}

func TestCycleCounts(t *testing.T) {
	tests := []struct {
		name    string
		cycles  int
		program []uint8
		setup   func(*CPU)
	}{
		{"NOP", 1, []uint8{0x00}, nil},
		{"LD B,n", 2, []uint8{0x06, 0x42}, nil},
		{"LD BC,nn", 3, []uint8{0x01, 0x34, 0x12}, nil},
		{"LD (HL),n", 3, []uint8{0x36, 0x42}, func(c *CPU) { c.setHL(0xC000) }},
		{"INC (HL)", 3, []uint8{0x34}, func(c *CPU) { c.setHL(0xC000) }},
		{"JP nn", 4, []uint8{0xC3, 0x00, 0x02}, nil},
		{"JR taken", 3, []uint8{0x18, 0x05}, nil},
		{"JR not taken", 2, []uint8{0x20, 0x05}, func(c *CPU) { c.setFlag(zeroFlag) }},
		{"PUSH BC", 4, []uint8{0xC5}, func(c *CPU) { c.sp = 0xC100 }},
		{"POP BC", 3, []uint8{0xC1}, func(c *CPU) { c.sp = 0xC100 }},
		{"CALL nn", 6, []uint8{0xCD, 0x00, 0x02}, func(c *CPU) { c.sp = 0xC100 }},
		{"RET", 4, []uint8{0xC9}, func(c *CPU) { c.sp = 0xC100 }},
		{"RST 0x18", 4, []uint8{0xDF}, func(c *CPU) { c.sp = 0xC100 }},
		{"ADD HL,DE", 2, []uint8{0x19}, nil},
		{"ADD SP,n", 4, []uint8{0xE8, 0x01}, nil},
		{"LD HL,SP+n", 3, []uint8{0xF8, 0x01}, nil},
		{"LDH (n),A", 3, []uint8{0xE0, 0x80}, nil},
		{"LD (nn),A", 4, []uint8{0xEA, 0x00, 0xC0}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpu, bus := newTestCPU(tt.program...)
			if tt.setup != nil {
				tt.setup(cpu)
			}
			before := bus.ticks
			cpu.StepInstruction()
			assert.Equal(t, tt.cycles, bus.ticks-before)
		})
	}
}

func TestCBCycleCounts(t *testing.T) {
	// CB ops: 2 cycles on registers, 4 on (HL) read-modify-write, 3 on
	// BIT n,(HL)
	cpu, bus := newTestCPU(0xCB, 0x00) // RLC B
	before := bus.ticks
	cpu.StepInstruction()
	assert.Equal(t, 2, bus.ticks-before)

	cpu, bus = newTestCPU(0xCB, 0x06) // RLC (HL)
	cpu.setHL(0xC000)
	before = bus.ticks
	cpu.StepInstruction()
	assert.Equal(t, 4, bus.ticks-before)

	cpu, bus = newTestCPU(0xCB, 0x46) // BIT 0, (HL)
	cpu.setHL(0xC000)
	before = bus.ticks
	cpu.StepInstruction()
	assert.Equal(t, 3, bus.ticks-before)
}

func TestCBBitOps(t *testing.T) {
	cpu, _ := newTestCPU(0xCB, 0x7F) // BIT 7, A
	cpu.a = 0x80
	cpu.setFlag(carryFlag)
	cpu.StepInstruction()
	assert.False(t, cpu.isSetFlag(zeroFlag))
	assert.False(t, cpu.isSetFlag(subFlag))
	assert.True(t, cpu.isSetFlag(halfCarryFlag))
	assert.True(t, cpu.isSetFlag(carryFlag), "BIT leaves carry untouched")

	cpu, _ = newTestCPU(0xCB, 0x47) // BIT 0, A
	cpu.a = 0xFE
	cpu.StepInstruction()
	assert.True(t, cpu.isSetFlag(zeroFlag))

	cpu, _ = newTestCPU(0xCB, 0xC7) // SET 0, A
	cpu.a = 0x00
	cpu.StepInstruction()
	assert.Equal(t, uint8(0x01), cpu.A())

	cpu, _ = newTestCPU(0xCB, 0x87) // RES 0, A
	cpu.a = 0xFF
	cpu.StepInstruction()
	assert.Equal(t, uint8(0xFE), cpu.A())
}

func TestCBRotates(t *testing.T) {
	cpu, _ := newTestCPU(0xCB, 0x37) // SWAP A
	cpu.a = 0xF1
	cpu.StepInstruction()
	assert.Equal(t, uint8(0x1F), cpu.A())

	cpu, _ = newTestCPU(0xCB, 0x38) // SRL B
	cpu.b = 0x01
	cpu.StepInstruction()
	assert.Equal(t, uint8(0x00), cpu.B())
	assert.True(t, cpu.isSetFlag(zeroFlag))
	assert.True(t, cpu.isSetFlag(carryFlag))

	cpu, _ = newTestCPU(0xCB, 0x2F) // SRA A
	cpu.a = 0x81
	cpu.StepInstruction()
	assert.Equal(t, uint8(0xC0), cpu.A(), "SRA keeps the sign bit")
	assert.True(t, cpu.isSetFlag(carryFlag))
}

func TestInterruptServicing(t *testing.T) {
	cpu, bus := newTestCPU(0x00) // NOP
	cpu.sp = 0xC100
	cpu.ime = true
	cpu.WriteIE(0x04)           // timer enabled
	cpu.RequestInterrupt(2)     // timer

	before := bus.ticks
	cpu.StepInstruction()

	assert.Equal(t, uint16(0x0050), cpu.PC(), "timer vector")
	assert.False(t, cpu.IME())
	assert.Equal(t, uint8(0x00), cpu.ReadIF()&0x04, "IF bit cleared")
	assert.Equal(t, 5, bus.ticks-before, "servicing costs 5 machine cycles")

	// the old PC sits on the stack
	assert.Equal(t, uint8(0x01), bus.mem[0xC0FF])
	assert.Equal(t, uint8(0x00), bus.mem[0xC0FE])
}

func TestInterruptPriority(t *testing.T) {
	cpu, _ := newTestCPU(0x00)
	cpu.sp = 0xC100
	cpu.ime = true
	cpu.WriteIE(0x1F)
	cpu.WriteIF(0x12) // LCD and joypad both pending

	cpu.StepInstruction()
	assert.Equal(t, uint16(0x0048), cpu.PC(), "lowest bit wins")
	assert.Equal(t, uint8(0x10), cpu.ReadIF(), "only the serviced bit clears")
}

func TestInterruptMasked(t *testing.T) {
	cpu, _ := newTestCPU(0x00)
	cpu.ime = false
	cpu.WriteIE(0x01)
	cpu.WriteIF(0x01)

	cpu.StepInstruction()
	assert.Equal(t, uint16(0x0101), cpu.PC(), "no service with IME clear")
	assert.Equal(t, uint8(0x01), cpu.ReadIF())
}

func TestHaltWakesOnInterrupt(t *testing.T) {
	cpu, _ := newTestCPU(0x76, 0x00) // HALT; NOP
	cpu.ime = true
	cpu.WriteIE(0x04)

	cpu.StepInstruction()
	require.True(t, cpu.Halted())

	// burn a few halted cycles
	cpu.StepInstruction()
	cpu.StepInstruction()
	assert.Equal(t, uint16(0x0101), cpu.PC())

	cpu.sp = 0xC100
	cpu.RequestInterrupt(2)
	cpu.StepInstruction()
	assert.False(t, cpu.Halted())
	assert.Equal(t, uint16(0x0050), cpu.PC())
}

func TestHaltWithIMEClearResumes(t *testing.T) {
	cpu, _ := newTestCPU(0x76, 0x04) // HALT; INC B
	cpu.ime = false
	cpu.WriteIE(0x04)

	cpu.StepInstruction()
	require.True(t, cpu.Halted())

	cpu.RequestInterrupt(2)
	b := cpu.B()
	cpu.StepInstruction()
	assert.False(t, cpu.Halted())
	assert.Equal(t, b+1, cpu.B(), "execution resumes without servicing")
}

func TestEIDelay(t *testing.T) {
	cpu, _ := newTestCPU(0xFB, 0x00, 0x00) // EI; NOP; NOP
	cpu.WriteIE(0x04)
	cpu.RequestInterrupt(2)
	cpu.sp = 0xC100

	cpu.StepInstruction() // EI
	assert.False(t, cpu.IME(), "IME not set during EI itself")
	cpu.StepInstruction() // NOP, IME enabled after it
	assert.True(t, cpu.IME())

	cpu.StepInstruction()
	assert.Equal(t, uint16(0x0050), cpu.PC())
}

func TestDMAEngine(t *testing.T) {
	cpu, bus := newTestCPU()
	cpu.StartDMA(0xC1)
	require.True(t, cpu.DMAActive())

	// run NOPs; each machine cycle copies one byte
	for i := 0; i < 160; i++ {
		cpu.tick()
	}

	assert.False(t, cpu.DMAActive())
	require.Len(t, bus.dmaCopies, 160)
	assert.Equal(t, [2]uint8{0xC1, 0}, bus.dmaCopies[0])
	assert.Equal(t, [2]uint8{0xC1, 159}, bus.dmaCopies[159])
}

func TestVRAMExecutionPanics(t *testing.T) {
	cpu, _ := newTestCPU()
	cpu.pc = 0x8100

	defer func() {
		r := recover()
		require.NotNil(t, r, "executing from VRAM must abort")
		assert.Contains(t, r.(string), "0x8100")
		assert.Contains(t, r.(string), "PC=")
	}()
	cpu.StepInstruction()
}

func TestIllegalOpcodePanics(t *testing.T) {
	cpu, _ := newTestCPU(0xD3)
	assert.Panics(t, func() { cpu.StepInstruction() })
}

func TestTraceOutput(t *testing.T) {
	cpu, _ := newTestCPU(0x00, 0xCB, 0x37) // NOP; SWAP A
	var sb strings.Builder
	cpu.SetTrace(&sb)

	cpu.StepInstruction()
	cpu.StepInstruction()

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "NOP")
	assert.Contains(t, lines[0], "0x0100")
	assert.Contains(t, lines[1], "SWAP A")
}

func TestHaltBugQuirk(t *testing.T) {
	// with the quirk enabled, the byte after HALT runs twice:
	// HALT; INC B executes INC B once from the stuck PC and once more
	cpu, _ := newTestCPU(0x76, 0x04, 0x04) // HALT; INC B; INC B
	cpu.HaltBugEnabled = true
	cpu.ime = false
	cpu.WriteIE(0x04)
	cpu.RequestInterrupt(2)
	cpu.b = 0

	cpu.StepInstruction() // HALT does not halt, arms the bug
	require.False(t, cpu.Halted())

	cpu.StepInstruction()
	cpu.StepInstruction()
	assert.Equal(t, uint8(2), cpu.B())
	assert.Equal(t, uint16(0x0102), cpu.PC(), "PC advanced once less")
}
