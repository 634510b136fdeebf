package gb

import (
	"github.com/Stenodyon/gb/gb/memory"
	"github.com/Stenodyon/gb/gb/video"
)

// Emulator is the surface the host frontends drive.
type Emulator interface {
	RunUntilFrame() error
	GetCurrentFrame() *video.FrameBuffer
	SetButton(button memory.Button, pressed bool)
	PullAudioSamples(dst []int16)
}

var _ Emulator = (*DMG)(nil)
