// Package gb implements a cycle-synchronized emulator for the original
// monochrome handheld: an LR35902 interpreter that advances the PPU,
// APU, timer, joypad and DMA engine in lockstep with every machine
// cycle it spends.
package gb

import (
	"io"
	"os"

	"github.com/Stenodyon/gb/gb/addr"
	"github.com/Stenodyon/gb/gb/audio"
	"github.com/Stenodyon/gb/gb/cpu"
	"github.com/Stenodyon/gb/gb/memory"
	"github.com/Stenodyon/gb/gb/serial"
	"github.com/Stenodyon/gb/gb/video"
)

// DMG is the emulator façade: it owns every component and exposes the
// frame-stepped host interface.
type DMG struct {
	bus    *Bus
	serial *serial.LogSink

	frameDone  bool
	frameCount uint64
}

// New builds an emulator around a raw cartridge image. Completed frames
// are delivered to the presenter from inside RunUntilFrame; a nil
// presenter discards them.
func New(romData []byte, presenter video.FramePresenter) (*DMG, error) {
	cart, err := memory.NewCartridge(romData)
	if err != nil {
		return nil, err
	}

	d := &DMG{}

	mmu := memory.NewMMU(cart)
	bus := &Bus{MMU: mmu}
	bus.CPU = cpu.New(bus)
	bus.PPU = video.NewPPU(mmu, presenter)
	bus.APU = audio.NewAPU()
	d.serial = serial.NewLogSink(os.Stdout)
	d.serial.Interrupt = func() { mmu.RequestInterrupt(addr.SerialInterrupt) }

	mmu.Attach(bus.PPU, bus.APU, bus.CPU, d.serial)
	bus.PPU.OnFrameEnd = func() {
		d.frameDone = true
		d.frameCount++
	}

	d.bus = bus
	d.powerUp()
	return d, nil
}

// NewWithFile builds an emulator from a ROM file on disk.
func NewWithFile(path string, presenter video.FramePresenter) (*DMG, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return New(data, presenter)
}

// powerUp applies the register state the boot ROM leaves behind.
func (d *DMG) powerUp() {
	mmu := d.bus.MMU

	writes := []struct {
		address uint16
		value   uint8
	}{
		{0xFF05, 0x00}, {0xFF06, 0x00}, {0xFF07, 0x00},
		{0xFF10, 0x80}, {0xFF11, 0xBF}, {0xFF12, 0xF3}, {0xFF14, 0xBF},
		{0xFF16, 0x3F}, {0xFF19, 0xBF},
		{0xFF1A, 0x7F}, {0xFF1B, 0xFF}, {0xFF1C, 0x9F}, {0xFF1E, 0xBF},
		{0xFF20, 0xFF}, {0xFF23, 0xBF},
		{0xFF24, 0x77}, {0xFF25, 0xF3}, {0xFF26, 0xF1},
		{0xFF40, 0x91}, {0xFF47, 0xFC}, {0xFF48, 0xFF}, {0xFF49, 0xFF},
		{0xFFFF, 0x00},
	}
	for _, w := range writes {
		mmu.WriteBypass(w.address, w.value)
	}
}

// RunUntilFrame executes instructions until the PPU completes a frame.
func (d *DMG) RunUntilFrame() error {
	d.frameDone = false
	for !d.frameDone {
		d.bus.CPU.StepInstruction()
	}
	return nil
}

// StepInstruction executes exactly one instruction; useful for tests
// and debuggers.
func (d *DMG) StepInstruction() {
	d.bus.CPU.StepInstruction()
}

// SetButton presses or releases one of the eight joypad inputs.
func (d *DMG) SetButton(button memory.Button, pressed bool) {
	d.bus.MMU.Joypad.SetButton(button, pressed)
}

// PullAudioSamples fills dst with the next finished stereo buffer, or
// silence when the producer has not caught up. Safe to call from the
// host audio thread.
func (d *DMG) PullAudioSamples(dst []int16) {
	d.bus.APU.Callback(dst)
}

// AudioBufferReady reports whether a full audio buffer is waiting to be
// pulled.
func (d *DMG) AudioBufferReady() bool {
	return d.bus.APU.BufferReady()
}

// SetTracing toggles the per-instruction trace on stdout.
func (d *DMG) SetTracing(enabled bool) {
	if enabled {
		d.bus.CPU.SetTrace(os.Stdout)
	} else {
		d.bus.CPU.SetTrace(nil)
	}
}

// SetSerialOutput redirects the serial diagnostic sink, which otherwise
// prints to stdout.
func (d *DMG) SetSerialOutput(w io.Writer) {
	old := d.serial
	d.serial = serial.NewLogSink(w)
	d.serial.Interrupt = old.Interrupt
	d.bus.MMU.Attach(d.bus.PPU, d.bus.APU, d.bus.CPU, d.serial)
}

// GetCurrentFrame exposes the PPU's render target.
func (d *DMG) GetCurrentFrame() *video.FrameBuffer {
	return d.bus.PPU.FrameBuffer()
}

// FrameCount returns the number of completed frames.
func (d *DMG) FrameCount() uint64 { return d.frameCount }

// CPU exposes the processor for tests and debug tooling.
func (d *DMG) CPU() *cpu.CPU { return d.bus.CPU }

// Bus exposes the wired bus for tests and debug tooling.
func (d *DMG) Bus() *Bus { return d.bus }
