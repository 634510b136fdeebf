package gb

import (
	"github.com/Stenodyon/gb/gb/audio"
	"github.com/Stenodyon/gb/gb/cpu"
	"github.com/Stenodyon/gb/gb/memory"
	"github.com/Stenodyon/gb/gb/video"
)

// Bus connects the CPU to the memory mapper and fans machine cycles out
// to every peripheral. The tick order is fixed: PPU, then the MMU-owned
// joypad and timer, then the APU; the CPU advances its DMA engine after
// the fan-out.
type Bus struct {
	CPU *cpu.CPU
	MMU *memory.MMU
	PPU *video.PPU
	APU *audio.APU
}

var _ cpu.Bus = (*Bus)(nil)

func (b *Bus) Read(address uint16) uint8 {
	return b.MMU.Read(address)
}

func (b *Bus) Write(address uint16, value uint8) {
	b.MMU.Write(address, value)
}

// Tick advances every peripheral by one machine cycle (4 dots of PPU
// time).
func (b *Bus) Tick() {
	b.PPU.Tick()
	b.MMU.Tick()
	b.APU.Tick()
}

// DMACopy moves one OAM DMA byte on behalf of the CPU's DMA engine.
func (b *Bus) DMACopy(page uint8, offset uint8) {
	b.MMU.DMACopy(page, offset)
}
