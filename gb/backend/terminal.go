package backend

import (
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/Stenodyon/gb/gb"
	"github.com/Stenodyon/gb/gb/audio"
	"github.com/Stenodyon/gb/gb/memory"
	"github.com/Stenodyon/gb/gb/video"
)

// Terminal renders frames into a tcell screen, two pixels per character
// cell using the upper half block glyph. There is no audio device;
// finished buffers are drained and dropped.
type Terminal struct {
	screen tcell.Screen

	// tcell reports no key-up events, so each key press holds its
	// button for a few frames and terminal auto-repeat sustains it
	held [8]int
}

const holdFrames = 10

// NewTerminal initializes the tcell screen.
func NewTerminal() (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.HideCursor()
	return &Terminal{screen: screen}, nil
}

var shadeColors = [4]tcell.Color{
	tcell.NewRGBColor(0xFF, 0xFF, 0xFF),
	tcell.NewRGBColor(0x98, 0x98, 0x98),
	tcell.NewRGBColor(0x4C, 0x4C, 0x4C),
	tcell.NewRGBColor(0x00, 0x00, 0x00),
}

var keyButtons = map[rune]memory.Button{
	'z': memory.ButtonB,
	'x': memory.ButtonA,
}

// Run drives the emulator at roughly 60 frames per second until Escape
// or 'q' is pressed.
func (t *Terminal) Run(emu *gb.DMG) error {
	defer t.screen.Fini()

	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	go t.screen.ChannelEvents(events, quit)

	discard := make([]int16, audio.BufferLen)
	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()

	for {
		select {
		case ev := <-events:
			if done := t.handleEvent(emu, ev); done {
				close(quit)
				return nil
			}
		case <-ticker.C:
			if err := emu.RunUntilFrame(); err != nil {
				close(quit)
				return err
			}
			for emu.AudioBufferReady() {
				emu.PullAudioSamples(discard)
			}
			t.releaseExpired(emu)
			t.draw(emu.GetCurrentFrame())
		}
	}
}

func (t *Terminal) handleEvent(emu *gb.DMG, ev tcell.Event) bool {
	key, ok := ev.(*tcell.EventKey)
	if !ok {
		if _, resized := ev.(*tcell.EventResize); resized {
			t.screen.Sync()
		}
		return false
	}

	switch key.Key() {
	case tcell.KeyEscape:
		return true
	case tcell.KeyUp:
		t.press(emu, memory.ButtonUp)
	case tcell.KeyDown:
		t.press(emu, memory.ButtonDown)
	case tcell.KeyLeft:
		t.press(emu, memory.ButtonLeft)
	case tcell.KeyRight:
		t.press(emu, memory.ButtonRight)
	case tcell.KeyEnter:
		t.press(emu, memory.ButtonStart)
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		t.press(emu, memory.ButtonSelect)
	case tcell.KeyRune:
		r := key.Rune()
		if r == 'q' {
			return true
		}
		if button, mapped := keyButtons[r]; mapped {
			t.press(emu, button)
		}
	}
	return false
}

func (t *Terminal) press(emu *gb.DMG, button memory.Button) {
	emu.SetButton(button, true)
	t.held[button] = holdFrames
}

func (t *Terminal) releaseExpired(emu *gb.DMG) {
	for button := range t.held {
		if t.held[button] == 0 {
			continue
		}
		t.held[button]--
		if t.held[button] == 0 {
			emu.SetButton(memory.Button(button), false)
		}
	}
}

// draw paints the frame, one character per 1x2 pixel column pair.
func (t *Terminal) draw(frame *video.FrameBuffer) {
	for y := 0; y < video.FrameHeight; y += 2 {
		for x := 0; x < video.FrameWidth; x++ {
			top := shadeColors[frame.GetPixel(x, y)&3]
			bottom := shadeColors[frame.GetPixel(x, y+1)&3]
			style := tcell.StyleDefault.Foreground(top).Background(bottom)
			t.screen.SetContent(x, y/2, '▀', nil, style)
		}
	}
	t.screen.Show()
}
