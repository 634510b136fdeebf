//go:build sdl2

package backend

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/Stenodyon/gb/gb"
	"github.com/Stenodyon/gb/gb/audio"
	"github.com/Stenodyon/gb/gb/memory"
	"github.com/Stenodyon/gb/gb/video"
)

const sdl2PixelScale = 4

// SDL2 renders into a streaming texture and queues finished audio
// buffers to an SDL audio device. Requires the SDL2 development
// libraries; default builds use the stub instead (build tag sdl2).
type SDL2 struct {
	window      *sdl.Window
	renderer    *sdl.Renderer
	texture     *sdl.Texture
	audioDevice sdl.AudioDeviceID
	pixels      []byte
	samples     []int16
}

// NewSDL2 initializes the SDL2 window, renderer and audio device.
func NewSDL2() (*SDL2, error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_AUDIO | sdl.INIT_EVENTS); err != nil {
		return nil, fmt.Errorf("failed to initialize SDL2: %v", err)
	}

	window, err := sdl.CreateWindow(
		"gb",
		sdl.WINDOWPOS_CENTERED,
		sdl.WINDOWPOS_CENTERED,
		video.FrameWidth*sdl2PixelScale,
		video.FrameHeight*sdl2PixelScale,
		sdl.WINDOW_SHOWN,
	)
	if err != nil {
		sdl.Quit()
		return nil, fmt.Errorf("failed to create window: %v", err)
	}

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		window.Destroy()
		sdl.Quit()
		return nil, fmt.Errorf("failed to create renderer: %v", err)
	}

	texture, err := renderer.CreateTexture(
		sdl.PIXELFORMAT_ABGR8888,
		sdl.TEXTUREACCESS_STREAMING,
		video.FrameWidth,
		video.FrameHeight,
	)
	if err != nil {
		renderer.Destroy()
		window.Destroy()
		sdl.Quit()
		return nil, fmt.Errorf("failed to create texture: %v", err)
	}

	spec := sdl.AudioSpec{
		Freq:     audio.SampleRate,
		Format:   sdl.AUDIO_S16SYS,
		Channels: 2,
		Samples:  audio.SamplesPerBuffer,
	}
	device, err := sdl.OpenAudioDevice("", false, &spec, nil, 0)
	if err != nil {
		texture.Destroy()
		renderer.Destroy()
		window.Destroy()
		sdl.Quit()
		return nil, fmt.Errorf("failed to open audio device: %v", err)
	}
	sdl.PauseAudioDevice(device, false)

	return &SDL2{
		window:      window,
		renderer:    renderer,
		texture:     texture,
		audioDevice: device,
		pixels:      make([]byte, video.FrameWidth*video.FrameHeight*4),
		samples:     make([]int16, audio.BufferLen),
	}, nil
}

// Run drives the emulator at roughly 60 frames per second until the
// window closes.
func (s *SDL2) Run(emu *gb.DMG) error {
	defer s.cleanup()

	for {
		start := time.Now()

		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch ev := event.(type) {
			case *sdl.QuitEvent:
				return nil
			case *sdl.KeyboardEvent:
				if done := s.handleKey(emu, ev); done {
					return nil
				}
			}
		}

		if err := emu.RunUntilFrame(); err != nil {
			return err
		}

		for emu.AudioBufferReady() {
			emu.PullAudioSamples(s.samples)
			data := unsafe.Slice((*byte)(unsafe.Pointer(&s.samples[0])), len(s.samples)*2)
			if err := sdl.QueueAudio(s.audioDevice, data); err != nil {
				return err
			}
		}

		s.pixels = emu.GetCurrentFrame().ToRGBA(s.pixels, video.DefaultPalette)
		if err := s.texture.Update(nil, unsafe.Pointer(&s.pixels[0]), video.FrameWidth*4); err != nil {
			return err
		}
		s.renderer.Copy(s.texture, nil, nil)
		s.renderer.Present()

		if elapsed := time.Since(start); elapsed < time.Second/60 {
			time.Sleep(time.Second/60 - elapsed)
		}
	}
}

var sdlKeyButtons = map[sdl.Keycode]memory.Button{
	sdl.K_UP:        memory.ButtonUp,
	sdl.K_DOWN:      memory.ButtonDown,
	sdl.K_LEFT:      memory.ButtonLeft,
	sdl.K_RIGHT:     memory.ButtonRight,
	sdl.K_z:         memory.ButtonB,
	sdl.K_x:         memory.ButtonA,
	sdl.K_RETURN:    memory.ButtonStart,
	sdl.K_BACKSPACE: memory.ButtonSelect,
}

func (s *SDL2) handleKey(emu *gb.DMG, ev *sdl.KeyboardEvent) bool {
	if ev.Keysym.Sym == sdl.K_ESCAPE {
		return true
	}
	button, mapped := sdlKeyButtons[ev.Keysym.Sym]
	if !mapped {
		return false
	}
	emu.SetButton(button, ev.Type == sdl.KEYDOWN)
	return false
}

func (s *SDL2) cleanup() {
	sdl.CloseAudioDevice(s.audioDevice)
	s.texture.Destroy()
	s.renderer.Destroy()
	s.window.Destroy()
	sdl.Quit()
}
