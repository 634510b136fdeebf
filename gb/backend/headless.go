package backend

import (
	"log/slog"

	"github.com/Stenodyon/gb/gb"
	"github.com/Stenodyon/gb/gb/audio"
)

// Headless runs a fixed number of frames at full speed with no video or
// audio device. Finished audio buffers are drained and discarded so the
// producer never blocks.
type Headless struct {
	Frames int
}

// Run executes the configured number of frames.
func (h *Headless) Run(emu *gb.DMG) error {
	discard := make([]int16, audio.BufferLen)

	for i := 0; i < h.Frames; i++ {
		if err := emu.RunUntilFrame(); err != nil {
			return err
		}
		for emu.AudioBufferReady() {
			emu.PullAudioSamples(discard)
		}
		if i%60 == 0 {
			slog.Debug("frame progress", "completed", i+1, "total", h.Frames)
		}
	}
	return nil
}
