package memory

import (
	"log/slog"

	"github.com/Stenodyon/gb/gb/addr"
)

const (
	workRAMSize = 0x2000
	highRAMSize = 0x7F
)

// Video is the PPU surface the MMU routes to: video RAM, OAM and the
// LCD register file. DMAWriteOAM stores DMA-sourced bytes, which land
// regardless of the mode-based CPU lockout.
type Video interface {
	ReadVRAM(address uint16) uint8
	WriteVRAM(address uint16, value uint8)
	ReadOAM(address uint16) uint8
	WriteOAM(address uint16, value uint8)
	DMAWriteOAM(address uint16, value uint8)
	ReadRegister(address uint16) uint8
	WriteRegister(address uint16, value uint8)
}

// Audio is the APU register file (NR10..NR52 plus wave RAM).
type Audio interface {
	ReadRegister(address uint16) uint8
	WriteRegister(address uint16, value uint8)
}

// InterruptController is the CPU-side interrupt and DMA state the bus
// needs to reach: IE/IF live in the CPU, and the DMA engine restricts
// which addresses the CPU may touch.
type InterruptController interface {
	ReadIF() uint8
	WriteIF(value uint8)
	ReadIE() uint8
	WriteIE(value uint8)
	StartDMA(page uint8)
	DMAActive() bool
}

// SerialPort is a device attached to the SB/SC registers.
type SerialPort interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// MMU routes guest addresses to the cartridge, video memory, work RAM,
// I/O registers and high RAM. While an OAM DMA transfer is running the
// CPU-facing Read/Write only reach high RAM; the DMA engine itself uses
// the bypass variants.
type MMU struct {
	mbc     MBC
	workRAM [workRAMSize]uint8
	highRAM [highRAMSize]uint8

	Timer  Timer
	Joypad *Joypad

	video      Video
	audio      Audio
	interrupts InterruptController
	serial     SerialPort
}

// NewMMU creates the memory mapper for a cartridge. The video, audio,
// interrupt and serial endpoints are attached afterwards by the bus
// wiring.
func NewMMU(cart *Cartridge) *MMU {
	m := &MMU{
		mbc:    NewMBC(cart),
		Joypad: NewJoypad(),
	}
	m.Timer.Interrupt = func() { m.RequestInterrupt(addr.TimerInterrupt) }
	m.Joypad.Interrupt = func() { m.RequestInterrupt(addr.JoypadInterrupt) }
	return m
}

// Attach wires the MMU to its peripherals.
func (m *MMU) Attach(video Video, audio Audio, ints InterruptController, serial SerialPort) {
	m.video = video
	m.audio = audio
	m.interrupts = ints
	m.serial = serial
}

// RequestInterrupt sets the IF bit for the given interrupt source.
func (m *MMU) RequestInterrupt(interrupt addr.Interrupt) {
	m.interrupts.WriteIF(m.interrupts.ReadIF() | uint8(interrupt))
}

// Tick advances the MMU-owned peripherals by one machine cycle.
func (m *MMU) Tick() {
	m.Joypad.Tick()
	m.Timer.Tick()
}

// Read performs a CPU read. During DMA everything outside high RAM
// reads 0xFF.
func (m *MMU) Read(address uint16) uint8 {
	if m.interrupts.DMAActive() && (address < addr.HRAMStart || address > addr.HRAMEnd) {
		return 0xFF
	}
	return m.ReadBypass(address)
}

// Write performs a CPU write. During DMA everything outside high RAM is
// dropped.
func (m *MMU) Write(address uint16, value uint8) {
	if m.interrupts.DMAActive() && (address < addr.HRAMStart || address > addr.HRAMEnd) {
		return
	}
	m.WriteBypass(address, value)
}

// ReadBypass reads without the DMA restriction. The DMA engine uses it
// to fetch source bytes.
func (m *MMU) ReadBypass(address uint16) uint8 {
	switch {
	case address < 0x8000:
		return m.mbc.Read(address)
	case address < 0xA000:
		return m.video.ReadVRAM(address - 0x8000)
	case address < 0xC000:
		return m.mbc.Read(address)
	case address < 0xE000:
		return m.workRAM[address-0xC000]
	case address < 0xFE00:
		// echo of work RAM
		return m.workRAM[address-0xE000]
	case address <= addr.OAMEnd:
		return m.video.ReadOAM(address - addr.OAMStart)
	case address < 0xFF00:
		// unusable region
		return 0xFF
	case address < addr.HRAMStart:
		return m.readIO(address)
	case address <= addr.HRAMEnd:
		return m.highRAM[address-addr.HRAMStart]
	default:
		return m.interrupts.ReadIE()
	}
}

// WriteBypass writes without the DMA restriction.
func (m *MMU) WriteBypass(address uint16, value uint8) {
	switch {
	case address < 0x8000:
		m.mbc.Write(address, value)
	case address < 0xA000:
		m.video.WriteVRAM(address-0x8000, value)
	case address < 0xC000:
		m.mbc.Write(address, value)
	case address < 0xE000:
		m.workRAM[address-0xC000] = value
	case address < 0xFE00:
		m.workRAM[address-0xE000] = value
	case address <= addr.OAMEnd:
		m.video.WriteOAM(address-addr.OAMStart, value)
	case address < 0xFF00:
		slog.Debug("write to unusable region dropped", "addr", address)
	case address < addr.HRAMStart:
		m.writeIO(address, value)
	case address <= addr.HRAMEnd:
		m.highRAM[address-addr.HRAMStart] = value
	default:
		m.interrupts.WriteIE(value)
	}
}

// DMACopy moves one byte of an OAM DMA transfer: source page << 8 plus
// offset into OAM[offset]. The write ignores the CPU's OAM lockout;
// only the CPU-facing access is restricted while DMA runs.
func (m *MMU) DMACopy(page uint8, offset uint8) {
	src := uint16(page)<<8 | uint16(offset)
	m.video.DMAWriteOAM(uint16(offset), m.ReadBypass(src))
}

func (m *MMU) readIO(address uint16) uint8 {
	switch {
	case address == addr.P1:
		return m.Joypad.Read()
	case address == addr.SB || address == addr.SC:
		return m.serial.Read(address)
	case address >= addr.DIV && address <= addr.TAC:
		return m.Timer.Read(address)
	case address == addr.IF:
		// unused IF bits read high
		return m.interrupts.ReadIF() | 0xE0
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		return m.audio.ReadRegister(address)
	case address >= addr.LCDC && address <= addr.WX:
		return m.video.ReadRegister(address)
	default:
		return 0xFF
	}
}

func (m *MMU) writeIO(address uint16, value uint8) {
	switch {
	case address == addr.P1:
		m.Joypad.Write(value)
	case address == addr.SB || address == addr.SC:
		m.serial.Write(address, value)
	case address >= addr.DIV && address <= addr.TAC:
		m.Timer.Write(address, value)
	case address == addr.IF:
		m.interrupts.WriteIF(value & 0x1F)
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		m.audio.WriteRegister(address, value)
	case address == addr.DMA:
		m.video.WriteRegister(address, value)
		m.interrupts.StartDMA(value)
	case address >= addr.LCDC && address <= addr.WX:
		m.video.WriteRegister(address, value)
	default:
		slog.Debug("write to unmapped io register dropped",
			"addr", address, "value", value)
	}
}
