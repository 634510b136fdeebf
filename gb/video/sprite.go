package video

import "github.com/Stenodyon/gb/gb/bit"

// Sprite is a decoded view over one 4 byte OAM entry. The stored
// positions are offset by (8, 16) so that partially visible sprites can
// hang off the top and left edges of the screen.
type Sprite struct {
	yPos      uint8
	xPos      uint8
	tileIndex uint8
	attrs     uint8
}

func spriteAt(oam []uint8, index int) Sprite {
	base := index * 4
	return Sprite{
		yPos:      oam[base],
		xPos:      oam[base+1],
		tileIndex: oam[base+2],
		attrs:     oam[base+3],
	}
}

// X returns the on-screen X of the sprite's left column.
func (s Sprite) X() int { return int(s.xPos) - 8 }

// Y returns the on-screen Y of the sprite's top row.
func (s Sprite) Y() int { return int(s.yPos) - 16 }

func (s Sprite) paletteNumber() uint8 { return bit.GetBitValue(4, s.attrs) }
func (s Sprite) xFlip() bool          { return bit.IsSet(5, s.attrs) }
func (s Sprite) yFlip() bool          { return bit.IsSet(6, s.attrs) }
func (s Sprite) behindBG() bool       { return bit.IsSet(7, s.attrs) }
