package video

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Stenodyon/gb/gb/addr"
)

type interruptRecorder struct {
	vblank int
	lcd    int
}

func (r *interruptRecorder) RequestInterrupt(interrupt addr.Interrupt) {
	switch interrupt {
	case addr.VBlankInterrupt:
		r.vblank++
	case addr.LCDSTATInterrupt:
		r.lcd++
	}
}

func testPPU() (*PPU, *interruptRecorder) {
	rec := &interruptRecorder{}
	ppu := NewPPU(rec, nil)
	ppu.WriteRegister(addr.LCDC, 0x91)
	ppu.WriteRegister(addr.BGP, 0xFC)
	return ppu, rec
}

const (
	cyclesPerLine  = scanlineDots / 4
	cyclesPerFrame = cyclesPerLine * totalLines
)

func TestLYCadence(t *testing.T) {
	ppu, rec := testPPU()

	// each LY value holds for exactly 456 dots (114 machine cycles)
	for line := 0; line < totalLines; line++ {
		for c := 0; c < cyclesPerLine; c++ {
			assert.Equal(t, uint8(line), ppu.Line(),
				"line %d cycle %d", line, c)
			ppu.Tick()
		}
	}

	assert.Equal(t, uint8(0), ppu.Line(), "wrapped to line 0")
	assert.Equal(t, 1, rec.vblank, "exactly one VBlank per frame")
}

func TestVBlankFiresAtLine144(t *testing.T) {
	ppu, rec := testPPU()

	for ppu.Line() != 144 {
		require.Zero(t, rec.vblank)
		ppu.Tick()
	}
	ppu.Tick()
	assert.Equal(t, 1, rec.vblank)
	assert.Equal(t, VBlank, ppu.CurrentMode())
}

func TestModeBands(t *testing.T) {
	ppu, _ := testPPU()

	assert.Equal(t, OAMScan, ppu.CurrentMode())

	for i := 0; i < oamScanDots/4; i++ {
		ppu.Tick()
	}
	assert.Equal(t, Transfer, ppu.CurrentMode())

	for i := 0; i < transferDots/4; i++ {
		ppu.Tick()
	}
	assert.Equal(t, HBlank, ppu.CurrentMode())

	for i := 0; i < hblankDots/4; i++ {
		ppu.Tick()
	}
	assert.Equal(t, OAMScan, ppu.CurrentMode())
	assert.Equal(t, uint8(1), ppu.Line())
}

func TestFrameEndNotification(t *testing.T) {
	ppu, _ := testPPU()
	frames := 0
	ppu.OnFrameEnd = func() { frames++ }

	presented := 0
	ppu.presenter = PresenterFunc(func(frame *FrameBuffer) { presented++ })

	for i := 0; i < cyclesPerFrame*2; i++ {
		ppu.Tick()
	}
	assert.Equal(t, 2, frames)
	assert.Equal(t, 2, presented)
}

func TestCoincidenceInterrupt(t *testing.T) {
	ppu, rec := testPPU()
	ppu.WriteRegister(addr.LYC, 2)
	ppu.WriteRegister(addr.STAT, statCoincidenceInt)

	for i := 0; i < cyclesPerLine*2; i++ {
		ppu.Tick()
	}
	assert.Equal(t, 1, rec.lcd, "LYC=2 matched once")

	stat := ppu.ReadRegister(addr.STAT)
	assert.NotZero(t, stat&0x04, "coincidence flag set while LY==LYC")
}

func TestBlankFrameRendersColorZero(t *testing.T) {
	// display enabled, BGP=0xE4, VRAM all zeros: every pixel must be
	// palette color 0 (tile color 0 -> BGP bits 1-0 -> 0)
	ppu, _ := testPPU()
	ppu.WriteRegister(addr.BGP, 0xE4)

	for i := 0; i < cyclesPerFrame; i++ {
		ppu.Tick()
	}

	frame := ppu.FrameBuffer()
	for y := 0; y < FrameHeight; y++ {
		for x := 0; x < FrameWidth; x++ {
			require.Equal(t, uint8(0), frame.GetPixel(x, y), "pixel (%d,%d)", x, y)
		}
	}
}

func TestBackgroundTileRendering(t *testing.T) {
	ppu, _ := testPPU()
	ppu.WriteRegister(addr.BGP, 0xE4) // identity palette

	// tile 1: solid color 3 (all bits set in both planes)
	for row := 0; row < 8; row++ {
		ppu.vram[16+row*2] = 0xFF
		ppu.vram[16+row*2+1] = 0xFF
	}
	// map position (0,0) -> tile 1
	ppu.vram[0x1800] = 1

	for i := 0; i < cyclesPerFrame; i++ {
		ppu.Tick()
	}

	frame := ppu.FrameBuffer()
	assert.Equal(t, uint8(3), frame.GetPixel(0, 0))
	assert.Equal(t, uint8(3), frame.GetPixel(7, 7))
	assert.Equal(t, uint8(0), frame.GetPixel(8, 0), "next tile is empty")
}

func TestTileDecoding(t *testing.T) {
	ppu, _ := testPPU()

	// one row: low byte 0b10100101, high byte 0b11000011
	ppu.vram[0] = 0xA5
	ppu.vram[1] = 0xC3

	want := []uint8{3, 2, 1, 0, 0, 1, 2, 3}
	for x, color := range want {
		assert.Equal(t, color, ppu.tileColorAt(0, x, 0), "pixel %d", x)
	}
}

func TestSignedTileAddressing(t *testing.T) {
	ppu, _ := testPPU()

	// LCDC bit 4 clear: signed indexing around 0x9000
	ppu.WriteRegister(addr.LCDC, 0x91&^uint8(0x10))

	assert.Equal(t, uint16(0x1000), ppu.bgTileAddress(0))
	assert.Equal(t, uint16(0x1010), ppu.bgTileAddress(1))
	assert.Equal(t, uint16(0x0FF0), ppu.bgTileAddress(0xFF), "tile -1")
	assert.Equal(t, uint16(0x0800), ppu.bgTileAddress(0x80), "tile -128")

	// unsigned mode
	ppu.WriteRegister(addr.LCDC, 0x91)
	assert.Equal(t, uint16(0x0000), ppu.bgTileAddress(0))
	assert.Equal(t, uint16(0x0FF0), ppu.bgTileAddress(0xFF))
}

func TestPaletteMapping(t *testing.T) {
	assert.Equal(t, uint8(0), paletteColor(0xE4, 0))
	assert.Equal(t, uint8(1), paletteColor(0xE4, 1))
	assert.Equal(t, uint8(2), paletteColor(0xE4, 2))
	assert.Equal(t, uint8(3), paletteColor(0xE4, 3))

	// inverted palette
	assert.Equal(t, uint8(3), paletteColor(0x1B, 0))
	assert.Equal(t, uint8(0), paletteColor(0x1B, 3))
}

func writeSprite(ppu *PPU, index int, y, x, tile, attrs uint8) {
	base := uint16(index * 4)
	ppu.oam[base] = y
	ppu.oam[base+1] = x
	ppu.oam[base+2] = tile
	ppu.oam[base+3] = attrs
}

func TestSpriteGathering(t *testing.T) {
	ppu, _ := testPPU()
	ppu.line = 0

	// three sprites on line 0, out of X order
	writeSprite(ppu, 0, 16, 30, 0, 0)
	writeSprite(ppu, 1, 16, 10, 1, 0)
	writeSprite(ppu, 2, 16, 20, 2, 0)
	// a sprite on another line must not be gathered
	writeSprite(ppu, 3, 40, 8, 3, 0)

	ppu.gatherSprites()

	require.Equal(t, 3, ppu.spriteCount)
	assert.Equal(t, uint8(1), ppu.scanlineSprites[0].tileIndex, "sorted by X")
	assert.Equal(t, uint8(2), ppu.scanlineSprites[1].tileIndex)
	assert.Equal(t, uint8(0), ppu.scanlineSprites[2].tileIndex)
}

func TestSpriteGatheringLimit(t *testing.T) {
	ppu, _ := testPPU()
	ppu.line = 0

	for i := 0; i < 20; i++ {
		writeSprite(ppu, i, 16, uint8(8+i), uint8(i), 0)
	}
	ppu.gatherSprites()
	assert.Equal(t, 10, ppu.spriteCount, "at most 10 sprites per line")
}

func TestSpriteRendering(t *testing.T) {
	ppu, _ := testPPU()
	ppu.WriteRegister(addr.LCDC, 0x91|0x02) // sprites enabled
	ppu.WriteRegister(addr.BGP, 0xE4)
	ppu.WriteRegister(addr.OBP0, 0xE4)

	// tile 1: solid color 3
	for row := 0; row < 8; row++ {
		ppu.vram[16+row*2] = 0xFF
		ppu.vram[16+row*2+1] = 0xFF
	}
	// sprite at screen (0,0)
	writeSprite(ppu, 0, 16, 8, 1, 0)

	for i := 0; i < cyclesPerFrame; i++ {
		ppu.Tick()
	}

	frame := ppu.FrameBuffer()
	assert.Equal(t, uint8(3), frame.GetPixel(0, 0))
	assert.Equal(t, uint8(3), frame.GetPixel(7, 0))
	assert.Equal(t, uint8(0), frame.GetPixel(8, 0))
	assert.Equal(t, uint8(0), frame.GetPixel(0, 8))
}

func TestSpriteBehindBackground(t *testing.T) {
	ppu, _ := testPPU()
	ppu.WriteRegister(addr.LCDC, 0x91|0x02) // sprites enabled
	ppu.WriteRegister(addr.BGP, 0xE4)
	ppu.WriteRegister(addr.OBP0, 0x1B)

	// bg tile 1 solid color 1
	for row := 0; row < 8; row++ {
		ppu.vram[16+row*2] = 0xFF
	}
	ppu.vram[0x1800] = 1
	// sprite tile 2 solid color 3, behind the background
	for row := 0; row < 8; row++ {
		ppu.vram[32+row*2] = 0xFF
		ppu.vram[32+row*2+1] = 0xFF
	}
	writeSprite(ppu, 0, 16, 8, 2, 0x80)

	for i := 0; i < cyclesPerFrame; i++ {
		ppu.Tick()
	}

	// bg color index is nonzero so the sprite loses
	assert.Equal(t, uint8(1), ppu.FrameBuffer().GetPixel(0, 0))
}

func TestVRAMBlockedDuringTransfer(t *testing.T) {
	ppu, _ := testPPU()

	// advance into the transfer band of line 0
	for i := 0; i < (oamScanDots+4)/4; i++ {
		ppu.Tick()
	}
	require.Equal(t, Transfer, ppu.CurrentMode())

	ppu.WriteVRAM(0x100, 0x42)
	assert.Equal(t, uint8(0xFF), ppu.ReadVRAM(0x100))
	assert.Equal(t, uint8(0xFF), ppu.ReadOAM(0x10))

	// DMA writes bypass the lockout
	ppu.DMAWriteOAM(0x10, 0x42)
	assert.Equal(t, uint8(0x42), ppu.oam[0x10])
}

func TestOAMBlockedDuringScan(t *testing.T) {
	ppu, _ := testPPU()
	require.Equal(t, OAMScan, ppu.CurrentMode())

	ppu.WriteOAM(0x00, 0x42)
	assert.Equal(t, uint8(0xFF), ppu.ReadOAM(0x00))
	// VRAM is still open during OAM scan
	ppu.WriteVRAM(0x00, 0x42)
	assert.Equal(t, uint8(0x42), ppu.ReadVRAM(0x00))
}

func TestDisplayDisabledRendersWhite(t *testing.T) {
	ppu, _ := testPPU()
	ppu.WriteRegister(addr.LCDC, 0x00)
	ppu.WriteRegister(addr.BGP, 0x1B) // inverted palette would show if used

	// fill the map with solid tiles; they must not show through
	for row := 0; row < 8; row++ {
		ppu.vram[16+row*2] = 0xFF
		ppu.vram[16+row*2+1] = 0xFF
	}
	for i := 0x1800; i < 0x1C00; i++ {
		ppu.vram[i] = 1
	}

	for i := 0; i < cyclesPerFrame; i++ {
		ppu.Tick()
	}
	assert.Equal(t, uint8(0), ppu.FrameBuffer().GetPixel(80, 72))
}

func TestSTATRegister(t *testing.T) {
	ppu, _ := testPPU()

	ppu.WriteRegister(addr.STAT, 0xFF)
	stat := ppu.ReadRegister(addr.STAT)
	assert.NotZero(t, stat&0x80, "bit 7 reads as 1")
	assert.Equal(t, uint8(0x78), stat&0x78, "interrupt enables stored")
	assert.Equal(t, uint8(OAMScan), stat&0x03, "mode bits reflect state")
}

func TestWindowOverridesBackground(t *testing.T) {
	ppu, _ := testPPU()
	// enable window (bit 5), keep map 0 for bg, map 1 for window
	ppu.WriteRegister(addr.LCDC, 0x91|0x20|0x40)
	ppu.WriteRegister(addr.BGP, 0xE4)
	ppu.WriteRegister(addr.WY, 0)
	ppu.WriteRegister(addr.WX, 7)

	// window map points at solid tile 1
	for row := 0; row < 8; row++ {
		ppu.vram[16+row*2] = 0xFF
		ppu.vram[16+row*2+1] = 0xFF
	}
	for i := 0x1C00; i < 0x2000; i++ {
		ppu.vram[i] = 1
	}

	for i := 0; i < cyclesPerFrame; i++ {
		ppu.Tick()
	}
	assert.Equal(t, uint8(3), ppu.FrameBuffer().GetPixel(0, 0))
	assert.Equal(t, uint8(3), ppu.FrameBuffer().GetPixel(159, 143))
}
