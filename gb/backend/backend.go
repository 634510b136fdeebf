// Package backend hosts the frontends that drive the emulator loop:
// a headless runner, a terminal renderer and an SDL2 window (behind the
// sdl2 build tag). The core never names a host toolkit; everything
// host-specific lives here.
package backend

import "github.com/Stenodyon/gb/gb"

// Backend owns presentation, audio output and input for one run of the
// emulator.
type Backend interface {
	Run(emu *gb.DMG) error
}
