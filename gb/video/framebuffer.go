package video

// Screen dimensions in pixels.
const (
	FrameWidth  = 160
	FrameHeight = 144
)

// GBColor is a host RGBA color for one of the four shades.
type GBColor uint32

// Default shade mapping, white to black. The 2 bit palette indices in
// the frame buffer are resolved through a table like this only at
// presentation time.
const (
	WhiteColor     GBColor = 0xFFFFFFFF
	LightGreyColor GBColor = 0xFF989898
	DarkGreyColor  GBColor = 0xFF4C4C4C
	BlackColor     GBColor = 0xFF000000
)

// DefaultPalette maps the 2 bit color index to a displayable color.
var DefaultPalette = [4]GBColor{WhiteColor, LightGreyColor, DarkGreyColor, BlackColor}

// FrameBuffer is one 160x144 frame of 2 bit color indices.
type FrameBuffer struct {
	pixels [FrameWidth * FrameHeight]uint8
}

// NewFrameBuffer creates an all-white frame buffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

// GetPixel returns the color index at (x, y).
func (fb *FrameBuffer) GetPixel(x, y int) uint8 {
	return fb.pixels[y*FrameWidth+x]
}

// SetPixel stores a color index at (x, y).
func (fb *FrameBuffer) SetPixel(x, y int, color uint8) {
	fb.pixels[y*FrameWidth+x] = color
}

// ToSlice exposes the raw index buffer, row major.
func (fb *FrameBuffer) ToSlice() []uint8 {
	return fb.pixels[:]
}

// ToRGBA renders the frame through a shade table into a reusable RGBA
// slice (4 bytes per pixel). A nil dst allocates.
func (fb *FrameBuffer) ToRGBA(dst []byte, palette [4]GBColor) []byte {
	if len(dst) < len(fb.pixels)*4 {
		dst = make([]byte, len(fb.pixels)*4)
	}
	for i, index := range fb.pixels {
		color := palette[index&3]
		dst[i*4+0] = byte(color >> 16)
		dst[i*4+1] = byte(color >> 8)
		dst[i*4+2] = byte(color)
		dst[i*4+3] = byte(color >> 24)
	}
	return dst
}

// Copy clones the frame into dst.
func (fb *FrameBuffer) Copy(dst *FrameBuffer) {
	dst.pixels = fb.pixels
}
