package audio

import (
	"log/slog"
	"sync"

	"github.com/Stenodyon/gb/gb/addr"
)

const (
	// SampleRate is the output rate in Hz, stereo interleaved.
	SampleRate = 44100
	// SamplesPerBuffer is the number of stereo frames per audio buffer.
	SamplesPerBuffer = 1024
	// BufferLen is the length of one interleaved buffer in samples.
	BufferLen = SamplesPerBuffer * 2

	cpuFrequency = 4194304
	// cyclesPerSample uses a x1000 fixed point so the 44.1 kHz rate
	// stays exact over time instead of drifting with rounding.
	cyclesPerSample = cpuFrequency * 1000 / SampleRate
	cycleIncrement  = 1000

	baseVolume = 0.10
)

// APU owns the four sound channels, the stereo mixer and the double
// buffer shared with the host audio consumer. The producer side runs on
// the emulator thread, one Tick per machine cycle; the consumer calls
// Callback from the host audio thread.
type APU struct {
	nr50 uint8
	nr51 uint8
	nr52 uint8

	channel1 *Channel1
	channel2 *Channel2
	channel3 *Channel3
	channel4 *Channel4

	cycleCounter int

	mu         sync.Mutex
	frontEmpty chan struct{}
	front      []int16
	back       []int16
	bufferPos  int
}

// NewAPU creates the APU with empty buffers and all channels stopped.
func NewAPU() *APU {
	a := &APU{
		channel1:   NewChannel1(),
		channel2:   NewChannel2(),
		channel3:   NewChannel3(),
		channel4:   NewChannel4(),
		front:      make([]int16, BufferLen),
		back:       make([]int16, BufferLen),
		frontEmpty: make(chan struct{}, 1),
	}
	a.frontEmpty <- struct{}{}
	return a
}

func (a *APU) soundEnabled() bool { return a.nr52&0x80 != 0 }

func (a *APU) leftVolume() float64  { return float64(a.nr50>>4&0x07) / 7 }
func (a *APU) rightVolume() float64 { return float64(a.nr50&0x07) / 7 }

// Tick advances the APU by one machine cycle: every channel clocks, and
// the sample accumulator decides whether a stereo sample is due.
func (a *APU) Tick() {
	a.channel1.Cycle()
	a.channel2.Cycle()
	a.channel3.Cycle()
	a.channel4.Cycle()

	a.cycleCounter += cycleIncrement
	if a.cycleCounter >= cyclesPerSample {
		a.cycleCounter %= cyclesPerSample
		a.sampleAudio()
	}
}

// sampleAudio mixes one stereo sample into the back buffer per the
// NR51 routing mask and the NR50 volumes.
func (a *APU) sampleAudio() {
	if !a.soundEnabled() {
		a.addSample(0, 0)
		return
	}

	var left, right float64

	samples := [4]float64{
		a.channel1.Sample(),
		a.channel2.Sample(),
		a.channel3.Sample(),
		a.channel4.Sample(),
	}
	for i, sample := range samples {
		if a.nr51&(1<<(4+i)) != 0 {
			left += sample
		}
		if a.nr51&(1<<i) != 0 {
			right += sample
		}
	}

	left *= a.leftVolume() * baseVolume
	right *= a.rightVolume() * baseVolume

	a.addSample(quantize(left), quantize(right))
}

func quantize(value float64) int16 {
	if value > 1 {
		value = 1
	} else if value < -1 {
		value = -1
	}
	return int16(value * 32767)
}

// addSample appends one stereo sample; when the back buffer fills it
// waits for the consumer to drain the front buffer, then swaps.
func (a *APU) addSample(left, right int16) {
	a.back[a.bufferPos] = left
	a.back[a.bufferPos+1] = right
	a.bufferPos += 2

	if a.bufferPos >= BufferLen {
		<-a.frontEmpty
		a.mu.Lock()
		a.front, a.back = a.back, a.front
		a.mu.Unlock()
		a.bufferPos = 0
	}
}

// BufferReady reports whether a finished front buffer is waiting for
// the consumer. Frontends that poll instead of running an audio
// callback use this to avoid draining silence.
func (a *APU) BufferReady() bool {
	return len(a.frontEmpty) == 0
}

// Callback fills dst from the front buffer. It is the host audio
// consumer entry point: if no finished buffer is ready yet the output
// is silence and a warning is logged, the producer is never blocked by
// the consumer.
func (a *APU) Callback(dst []int16) {
	if len(a.frontEmpty) > 0 {
		for i := range dst {
			dst[i] = 0
		}
		slog.Warn("audio can't keep up")
		return
	}

	a.mu.Lock()
	copy(dst, a.front)
	a.mu.Unlock()
	a.frontEmpty <- struct{}{}
}

// stop clears every channel register and stops all channels; this is
// what dropping NR52 bit 7 does.
func (a *APU) stop() {
	a.channel1.SetNR10(0)
	a.channel1.SetNR11(0)
	a.channel1.SetNR12(0)
	a.channel1.SetNR13(0)
	a.channel1.nr14 = 0
	a.channel1.Stop()

	a.channel2.SetNR21(0)
	a.channel2.SetNR22(0)
	a.channel2.SetNR23(0)
	a.channel2.nr24 = 0
	a.channel2.Stop()

	a.channel3.nr30 = 0
	a.channel3.SetNR31(0)
	a.channel3.SetNR32(0)
	a.channel3.SetNR33(0)
	a.channel3.nr34 = 0
	a.channel3.Stop()

	a.channel4.SetNR41(0)
	a.channel4.SetNR42(0)
	a.channel4.SetNR43(0)
	a.channel4.nr44 = 0
	a.channel4.Stop()

	a.nr50 = 0
	a.nr51 = 0
}

// NR52 reports the master enable plus the per-channel status bits.
func (a *APU) NR52() uint8 {
	status := a.nr52&0x80 | 0x70
	if !a.channel1.Stopped() {
		status |= 0x01
	}
	if !a.channel2.Stopped() {
		status |= 0x02
	}
	if !a.channel3.Stopped() {
		status |= 0x04
	}
	if !a.channel4.Stopped() {
		status |= 0x08
	}
	return status
}

// ReadRegister reads one of the NR registers or wave RAM.
func (a *APU) ReadRegister(address uint16) uint8 {
	if address >= addr.WaveRAMStart && address <= addr.WaveRAMEnd {
		return a.channel3.ReadWavePattern(uint8(address - addr.WaveRAMStart))
	}

	switch address {
	case addr.NR10:
		return a.channel1.NR10()
	case addr.NR11:
		return a.channel1.NR11()
	case addr.NR12:
		return a.channel1.NR12()
	case addr.NR13:
		return a.channel1.NR13()
	case addr.NR14:
		return a.channel1.NR14()
	case addr.NR21:
		return a.channel2.NR21()
	case addr.NR22:
		return a.channel2.NR22()
	case addr.NR23:
		return a.channel2.NR23()
	case addr.NR24:
		return a.channel2.NR24()
	case addr.NR30:
		return a.channel3.NR30()
	case addr.NR31:
		return a.channel3.NR31()
	case addr.NR32:
		return a.channel3.NR32()
	case addr.NR33:
		return a.channel3.NR33()
	case addr.NR34:
		return a.channel3.NR34()
	case addr.NR41:
		return a.channel4.NR41()
	case addr.NR42:
		return a.channel4.NR42()
	case addr.NR43:
		return a.channel4.NR43()
	case addr.NR44:
		return a.channel4.NR44()
	case addr.NR50:
		return a.nr50
	case addr.NR51:
		return a.nr51
	case addr.NR52:
		return a.NR52()
	}
	return 0xFF
}

// WriteRegister writes one of the NR registers or wave RAM.
func (a *APU) WriteRegister(address uint16, value uint8) {
	if address >= addr.WaveRAMStart && address <= addr.WaveRAMEnd {
		a.channel3.SetWavePattern(uint8(address-addr.WaveRAMStart), value)
		return
	}

	switch address {
	case addr.NR10:
		a.channel1.SetNR10(value)
	case addr.NR11:
		a.channel1.SetNR11(value)
	case addr.NR12:
		a.channel1.SetNR12(value)
	case addr.NR13:
		a.channel1.SetNR13(value)
	case addr.NR14:
		a.channel1.SetNR14(value)
	case addr.NR21:
		a.channel2.SetNR21(value)
	case addr.NR22:
		a.channel2.SetNR22(value)
	case addr.NR23:
		a.channel2.SetNR23(value)
	case addr.NR24:
		a.channel2.SetNR24(value)
	case addr.NR30:
		a.channel3.SetNR30(value)
	case addr.NR31:
		a.channel3.SetNR31(value)
	case addr.NR32:
		a.channel3.SetNR32(value)
	case addr.NR33:
		a.channel3.SetNR33(value)
	case addr.NR34:
		a.channel3.SetNR34(value)
	case addr.NR41:
		a.channel4.SetNR41(value)
	case addr.NR42:
		a.channel4.SetNR42(value)
	case addr.NR43:
		a.channel4.SetNR43(value)
	case addr.NR44:
		a.channel4.SetNR44(value)
	case addr.NR50:
		a.nr50 = value
	case addr.NR51:
		a.nr51 = value
	case addr.NR52:
		a.nr52 = value
		if !a.soundEnabled() {
			a.stop()
		}
	}
}
