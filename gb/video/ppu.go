package video

import (
	"github.com/Stenodyon/gb/gb/addr"
	"github.com/Stenodyon/gb/gb/bit"
)

// Mode is the PPU state within a scanline, encoded as STAT bits 0-1.
type Mode uint8

const (
	HBlank Mode = iota
	VBlank
	OAMScan
	Transfer
)

const (
	vramSize = 0x2000
	oamSize  = 0xA0

	oamScanDots  = 80
	transferDots = 160
	hblankDots   = 216
	scanlineDots = oamScanDots + transferDots + hblankDots
	vblankDots   = 10 * scanlineDots

	visibleLines = 144
	totalLines   = 154
)

// LCDC bits.
type lcdcFlag uint8

const (
	bgDisplay          lcdcFlag = 0
	spriteEnable       lcdcFlag = 1
	spriteSize         lcdcFlag = 2
	bgTileMapSelect    lcdcFlag = 3
	bgTileDataSelect   lcdcFlag = 4
	windowEnable       lcdcFlag = 5
	windowTileMapBase  lcdcFlag = 6
	displayEnable      lcdcFlag = 7
)

// STAT interrupt enable bits.
const (
	statHBlankInt      uint8 = 1 << 3
	statVBlankInt      uint8 = 1 << 4
	statOAMInt         uint8 = 1 << 5
	statCoincidenceInt uint8 = 1 << 6
)

// InterruptRequester raises interrupts from the PPU: VBlank at the
// frame boundary, LCD on the STAT conditions.
type InterruptRequester interface {
	RequestInterrupt(interrupt addr.Interrupt)
}

// FramePresenter receives each completed frame. The buffer is only
// valid for the duration of the call.
type FramePresenter interface {
	Present(frame *FrameBuffer)
}

// PresenterFunc adapts a function into a FramePresenter.
type PresenterFunc func(frame *FrameBuffer)

// Present calls the wrapped function.
func (f PresenterFunc) Present(frame *FrameBuffer) { f(frame) }

// PPU is the scanline tile renderer. It owns video RAM and OAM and
// advances 4 dots for every machine cycle.
type PPU struct {
	vram [vramSize]uint8
	oam  [oamSize]uint8

	mode     Mode
	dotCount int
	pixelX   int
	line     uint8

	control    uint8
	status     uint8
	scrollX    uint8
	scrollY    uint8
	lyCompare  uint8
	dmaReg     uint8
	bgPalette  uint8
	objPalette [2]uint8
	windowX    uint8
	windowY    uint8

	scanlineSprites [10]Sprite
	spriteCount     int

	framebuffer *FrameBuffer
	presenter   FramePresenter
	interrupts  InterruptRequester

	// OnFrameEnd is invoked once per frame, when entering VBlank.
	OnFrameEnd func()
}

// NewPPU creates a PPU delivering frames to the given presenter. A nil
// presenter discards frames.
func NewPPU(interrupts InterruptRequester, presenter FramePresenter) *PPU {
	return &PPU{
		framebuffer: NewFrameBuffer(),
		presenter:   presenter,
		interrupts:  interrupts,
		mode:        OAMScan,
	}
}

// Tick advances the PPU by one machine cycle (4 dots).
func (p *PPU) Tick() {
	for i := 0; i < 4; i++ {
		p.dot()
	}
}

func (p *PPU) dot() {
	p.dotCount++

	switch p.mode {
	case OAMScan:
		if p.dotCount == 1 {
			if p.status&statOAMInt != 0 {
				p.interrupts.RequestInterrupt(addr.LCDSTATInterrupt)
			}
			p.gatherSprites()
		}
		if p.dotCount == oamScanDots {
			p.dotCount = 0
			p.mode = Transfer
		}

	case Transfer:
		p.renderPixel()
		p.pixelX++
		if p.dotCount == transferDots {
			p.dotCount = 0
			p.pixelX = 0
			p.mode = HBlank
		}

	case HBlank:
		if p.dotCount == 1 {
			if p.status&statHBlankInt != 0 {
				p.interrupts.RequestInterrupt(addr.LCDSTATInterrupt)
			}
		}
		if p.dotCount == hblankDots {
			p.dotCount = 0
			p.setLine(p.line + 1)
			if p.line == visibleLines {
				p.mode = VBlank
			} else {
				p.mode = OAMScan
			}
		}

	case VBlank:
		if p.dotCount == 1 {
			if p.status&statVBlankInt != 0 {
				p.interrupts.RequestInterrupt(addr.LCDSTATInterrupt)
			}
			p.interrupts.RequestInterrupt(addr.VBlankInterrupt)
			if p.presenter != nil {
				p.presenter.Present(p.framebuffer)
			}
			if p.OnFrameEnd != nil {
				p.OnFrameEnd()
			}
		}
		if p.dotCount%scanlineDots == 0 && p.dotCount < vblankDots {
			p.setLine(p.line + 1)
		}
		if p.dotCount == vblankDots {
			p.dotCount = 0
			p.setLine(0)
			p.mode = OAMScan
		}
	}
}

// setLine updates LY and fires the coincidence interrupt when it
// matches LYC.
func (p *PPU) setLine(value uint8) {
	p.line = value
	if p.status&statCoincidenceInt != 0 && p.line == p.lyCompare {
		p.interrupts.RequestInterrupt(addr.LCDSTATInterrupt)
	}
}

// Line returns the current scanline (the LY register).
func (p *PPU) Line() uint8 { return p.line }

// CurrentMode returns the mode bits reported through STAT.
func (p *PPU) CurrentMode() Mode { return p.mode }

// FrameBuffer exposes the internal render target.
func (p *PPU) FrameBuffer() *FrameBuffer { return p.framebuffer }

func (p *PPU) flag(f lcdcFlag) bool {
	return bit.IsSet(uint8(f), p.control)
}

func (p *PPU) displayEnabled() bool { return p.flag(displayEnable) }

func (p *PPU) spriteHeight() int {
	if p.flag(spriteSize) {
		return 16
	}
	return 8
}

// gatherSprites scans the 40 OAM entries at the start of OAM scan and
// keeps up to 10 sprites covering the current line, sorted ascending by
// X with insertion order as the tie break.
func (p *PPU) gatherSprites() {
	p.spriteCount = 0
	height := p.spriteHeight()

	for index := 0; index < 40; index++ {
		sprite := spriteAt(p.oam[:], index)
		y := int(p.line)
		if y < sprite.Y() || y >= sprite.Y()+height {
			continue
		}

		i := p.spriteCount
		for i > 0 && p.scanlineSprites[i-1].xPos > sprite.xPos {
			p.scanlineSprites[i] = p.scanlineSprites[i-1]
			i--
		}
		p.scanlineSprites[i] = sprite

		p.spriteCount++
		if p.spriteCount >= 10 {
			break
		}
	}
}

// tileColorAt decodes the 2 bit color of one pixel of a tile. Each tile
// row is two bytes; the first carries the low bits of the 8 pixels, the
// second the high bits, MSB leftmost.
func (p *PPU) tileColorAt(tileAddress uint16, x, y int) uint8 {
	low := p.vram[tileAddress+uint16(y*2)]
	high := p.vram[tileAddress+uint16(y*2)+1]
	shift := uint(7 - x)
	return (low>>shift)&1 | (high>>shift)&1<<1
}

// bgTileAddress resolves a tile index from a BG/window tile map into a
// VRAM offset, honoring the signed addressing mode of LCDC bit 4.
func (p *PPU) bgTileAddress(tileIndex uint8) uint16 {
	if p.flag(bgTileDataSelect) {
		return uint16(tileIndex) * 16
	}
	// signed mode: tile 0 sits in the middle of the 0x8800 region
	return 0x0800 + uint16(tileIndex+128)*16
}

func (p *PPU) backgroundColorAt(x, y uint8) uint8 {
	mapBase := uint16(0x1800)
	if p.flag(bgTileMapSelect) {
		mapBase = 0x1C00
	}
	tileIndex := p.vram[mapBase+uint16(x>>3)+uint16(y>>3)*32]
	return p.tileColorAt(p.bgTileAddress(tileIndex), int(x%8), int(y%8))
}

func (p *PPU) windowColorAt(x, y uint8) uint8 {
	mapBase := uint16(0x1800)
	if p.flag(windowTileMapBase) {
		mapBase = 0x1C00
	}
	tileIndex := p.vram[mapBase+uint16(x>>3)+uint16(y>>3)*32]
	return p.tileColorAt(p.bgTileAddress(tileIndex), int(x%8), int(y%8))
}

func (p *PPU) insideWindow(x, y int) bool {
	return p.flag(windowEnable) && x >= int(p.windowX)-7 && y >= int(p.windowY)
}

func paletteColor(palette uint8, index uint8) uint8 {
	return palette >> (2 * index) & 0x03
}

// renderPixel composes one pixel at (pixelX, line): background or
// window first, then the first opaque sprite covering it.
func (p *PPU) renderPixel() {
	x, y := p.pixelX, int(p.line)

	if !p.displayEnabled() {
		p.framebuffer.SetPixel(x, y, 0)
		return
	}

	var bgColorIndex, color uint8

	if p.flag(bgDisplay) {
		if p.insideWindow(x, y) {
			bgColorIndex = p.windowColorAt(
				uint8(x+7-int(p.windowX)),
				uint8(y-int(p.windowY)),
			)
		} else {
			bgColorIndex = p.backgroundColorAt(
				uint8(x)+p.scrollX,
				uint8(y)+p.scrollY,
			)
		}
		color = paletteColor(p.bgPalette, bgColorIndex)
	}

	if p.flag(spriteEnable) {
		color = p.spritePixel(x, y, bgColorIndex, color)
	}

	p.framebuffer.SetPixel(x, y, color)
}

func (p *PPU) spritePixel(x, y int, bgColorIndex, color uint8) uint8 {
	for index := 0; index < p.spriteCount; index++ {
		sprite := p.scanlineSprites[index]

		if x < sprite.X() || x >= sprite.X()+8 {
			continue
		}

		coordX := x - sprite.X()
		coordY := y - sprite.Y()

		if sprite.xFlip() {
			coordX = 7 - coordX
		}
		if sprite.yFlip() {
			coordY = p.spriteHeight() - coordY - 1
		}

		tileIndex := sprite.tileIndex
		if p.spriteHeight() == 16 {
			tileIndex = tileIndex&0xFE | uint8(coordY>>3)
		}

		colorIndex := p.tileColorAt(uint16(tileIndex)*16, coordX, coordY&0x07)
		if colorIndex == 0 {
			continue
		}

		palette := p.objPalette[sprite.paletteNumber()]
		if sprite.behindBG() {
			if bgColorIndex == 0 {
				color = paletteColor(palette, colorIndex)
			}
		} else {
			color = paletteColor(palette, colorIndex)
		}
		break
	}
	return color
}

// vramBlocked reports whether the CPU is locked out of VRAM.
func (p *PPU) vramBlocked() bool {
	return p.displayEnabled() && p.mode == Transfer
}

// oamBlocked reports whether the CPU is locked out of OAM.
func (p *PPU) oamBlocked() bool {
	return p.displayEnabled() && (p.mode == OAMScan || p.mode == Transfer)
}

// ReadVRAM is the CPU view of video RAM; blocked during pixel transfer.
func (p *PPU) ReadVRAM(offset uint16) uint8 {
	if p.vramBlocked() {
		return 0xFF
	}
	return p.vram[offset]
}

// WriteVRAM is the CPU view of video RAM; dropped during pixel transfer.
func (p *PPU) WriteVRAM(offset uint16, value uint8) {
	if p.vramBlocked() {
		return
	}
	p.vram[offset] = value
}

// ReadOAM is the CPU view of OAM; blocked during OAM scan and transfer.
func (p *PPU) ReadOAM(offset uint16) uint8 {
	if p.oamBlocked() {
		return 0xFF
	}
	return p.oam[offset]
}

// WriteOAM is the CPU view of OAM; dropped during OAM scan and transfer.
func (p *PPU) WriteOAM(offset uint16, value uint8) {
	if p.oamBlocked() {
		return
	}
	p.oam[offset] = value
}

// OAMData exposes raw OAM for debug tooling, ignoring the CPU lockout.
func (p *PPU) OAMData() []uint8 {
	return p.oam[:]
}

// DMAWriteOAM stores a DMA-sourced byte, ignoring the CPU lockout.
func (p *PPU) DMAWriteOAM(offset uint16, value uint8) {
	p.oam[offset] = value
}

// ReadRegister reads one of the LCD registers.
func (p *PPU) ReadRegister(address uint16) uint8 {
	switch address {
	case addr.LCDC:
		return p.control
	case addr.STAT:
		coincidence := uint8(0)
		if p.line == p.lyCompare {
			coincidence = 1 << 2
		}
		return 0x80 | p.status&0x78 | coincidence | uint8(p.mode)
	case addr.SCY:
		return p.scrollY
	case addr.SCX:
		return p.scrollX
	case addr.LY:
		return p.line
	case addr.LYC:
		return p.lyCompare
	case addr.DMA:
		return p.dmaReg
	case addr.BGP:
		return p.bgPalette
	case addr.OBP0:
		return p.objPalette[0]
	case addr.OBP1:
		return p.objPalette[1]
	case addr.WY:
		return p.windowY
	case addr.WX:
		return p.windowX
	}
	return 0xFF
}

// WriteRegister writes one of the LCD registers. LY is read only.
func (p *PPU) WriteRegister(address uint16, value uint8) {
	switch address {
	case addr.LCDC:
		p.control = value
	case addr.STAT:
		// only the interrupt enable bits are writable
		p.status = value & 0x78
	case addr.SCY:
		p.scrollY = value
	case addr.SCX:
		p.scrollX = value
	case addr.LYC:
		p.lyCompare = value
	case addr.DMA:
		p.dmaReg = value
	case addr.BGP:
		p.bgPalette = value
	case addr.OBP0:
		p.objPalette[0] = value
	case addr.OBP1:
		p.objPalette[1] = value
	case addr.WY:
		p.windowY = value
	case addr.WX:
		p.windowX = value
	}
}
