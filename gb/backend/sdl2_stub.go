//go:build !sdl2

package backend

import (
	"errors"

	"github.com/Stenodyon/gb/gb"
)

// SDL2 is unavailable without the sdl2 build tag.
type SDL2 struct{}

// NewSDL2 reports that this binary was built without SDL2 support.
func NewSDL2() (*SDL2, error) {
	return nil, errors.New("this build does not include the SDL2 backend (rebuild with -tags sdl2)")
}

// Run never executes on the stub.
func (s *SDL2) Run(emu *gb.DMG) error {
	return errors.New("SDL2 backend not available")
}
