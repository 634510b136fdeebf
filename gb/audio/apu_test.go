package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Stenodyon/gb/gb/addr"
)

// drain consumes finished buffers so the producer never blocks, and
// returns how many buffers were pulled.
func drain(a *APU) int {
	buffers := 0
	for a.BufferReady() {
		buf := make([]int16, BufferLen)
		a.Callback(buf)
		buffers++
	}
	return buffers
}

func tickAPU(a *APU, cycles int) {
	for i := 0; i < cycles; i++ {
		a.Tick()
		drain(a)
	}
}

func TestSamplingRate(t *testing.T) {
	// over N machine cycles the sample count is N*1000/cyclesPerSample,
	// give or take one; a sample was emitted whenever the accumulator
	// wrapped
	const n = 500000
	a := NewAPU()
	samples := 0
	for i := 0; i < n; i++ {
		before := a.cycleCounter
		a.Tick()
		if a.cycleCounter < before+cycleIncrement {
			samples++
		}
		drain(a)
	}

	want := n * 1000 / cyclesPerSample
	assert.InDelta(t, want, samples, 1)
}

func TestBufferSwapAndCallback(t *testing.T) {
	a := NewAPU()

	// produce exactly one full buffer of samples
	for i := 0; i < SamplesPerBuffer; i++ {
		a.sampleAudio()
	}
	require.True(t, a.BufferReady())

	buf := make([]int16, BufferLen)
	a.Callback(buf)
	assert.False(t, a.BufferReady())
}

func TestCallbackUnderrunZeroFills(t *testing.T) {
	a := NewAPU()

	buf := make([]int16, BufferLen)
	for i := range buf {
		buf[i] = 0x7F
	}
	a.Callback(buf)

	for _, sample := range buf {
		require.Equal(t, int16(0), sample, "underrun must zero the stream")
	}
}

func TestNR52ReadMask(t *testing.T) {
	a := NewAPU()
	a.WriteRegister(addr.NR52, 0x80)

	status := a.ReadRegister(addr.NR52)
	assert.Equal(t, uint8(0xF0), status, "bits 4-6 read as 1, all channels stopped")

	// trigger channel 2 with an audible envelope
	a.WriteRegister(addr.NR22, 0xF0)
	a.WriteRegister(addr.NR24, 0x80)
	status = a.ReadRegister(addr.NR52)
	assert.Equal(t, uint8(0xF2), status, "channel 2 status bit set")
}

func TestNR52PowerOffClearsChannels(t *testing.T) {
	a := NewAPU()
	a.WriteRegister(addr.NR52, 0x80)
	a.WriteRegister(addr.NR50, 0x77)
	a.WriteRegister(addr.NR51, 0xF3)
	a.WriteRegister(addr.NR12, 0xF3)
	a.WriteRegister(addr.NR14, 0x80)
	require.False(t, a.channel1.Stopped())

	a.WriteRegister(addr.NR52, 0x00)

	assert.True(t, a.channel1.Stopped())
	assert.True(t, a.channel2.Stopped())
	assert.True(t, a.channel3.Stopped())
	assert.True(t, a.channel4.Stopped())
	assert.Equal(t, uint8(0), a.nr50)
	assert.Equal(t, uint8(0), a.nr51)
}

func TestRegisterReadOrMasks(t *testing.T) {
	a := NewAPU()

	tests := []struct {
		address uint16
		write   uint8
		want    uint8
	}{
		{addr.NR10, 0x00, 0x80},
		{addr.NR11, 0x80, 0xBF},
		{addr.NR13, 0x12, 0xFF},
		{addr.NR14, 0x00, 0xBF},
		{addr.NR21, 0x80, 0xBF},
		{addr.NR23, 0x34, 0xFF},
		{addr.NR24, 0x00, 0xBF},
		{addr.NR30, 0x00, 0x7F},
		{addr.NR31, 0x55, 0xFF},
		{addr.NR32, 0x00, 0x9F},
		{addr.NR33, 0x66, 0xFF},
		{addr.NR34, 0x00, 0xBF},
		{addr.NR41, 0x12, 0xFF},
		{addr.NR44, 0x00, 0xBF},
	}
	for _, tt := range tests {
		a.WriteRegister(tt.address, tt.write)
		assert.Equal(t, tt.want, a.ReadRegister(tt.address),
			"register 0x%04X", tt.address)
	}
}

func TestSquareChannelDutyPeriod(t *testing.T) {
	ch := NewChannel2()
	ch.SetNR22(0xF0) // full volume, no envelope
	ch.SetNR23(0x00)
	ch.SetNR24(0x87) // trigger, frequency high bits = 7 -> freq 0x700

	// period = (2048 - 0x700) * 4 = 1024 cycles per duty step
	require.False(t, ch.Stopped())
	start := ch.dutyPos
	for i := 0; i < 1024; i++ {
		ch.Cycle()
	}
	assert.Equal(t, (start+1)&7, ch.dutyPos, "one duty advance per period")

	for i := 0; i < 1024*8; i++ {
		ch.Cycle()
	}
	assert.Equal(t, (start+1)&7, ch.dutyPos, "duty wraps after 8 steps")
}

func TestSquareChannelSample(t *testing.T) {
	ch := NewChannel2()
	ch.SetNR21(0x80) // duty 2 (50%)
	ch.SetNR22(0xF0)
	ch.SetNR24(0x80)

	ch.dutyPos = 0 // duty pattern 2 starts high
	assert.Equal(t, 1.0, ch.Sample())
	ch.dutyPos = 2
	assert.Equal(t, 0.0, ch.Sample())

	ch.Stop()
	assert.Equal(t, 0.0, ch.Sample())
}

func TestEnvelopeRamp(t *testing.T) {
	ch := NewChannel2()
	ch.SetNR22(0x19) // start volume 1, increase, period 1
	ch.SetNR24(0x80)
	require.Equal(t, uint8(1), ch.envelopeVolume)

	for i := 0; i < cyclesPerEnvelopeTick; i++ {
		ch.Cycle()
	}
	assert.Equal(t, uint8(2), ch.envelopeVolume)

	// volume saturates at 15
	for i := 0; i < cyclesPerEnvelopeTick*20; i++ {
		ch.Cycle()
	}
	assert.Equal(t, uint8(15), ch.envelopeVolume)
}

func TestLengthCounterStopsChannel(t *testing.T) {
	ch := NewChannel2()
	ch.SetNR21(0x3F) // length data 63 -> counter 1
	ch.SetNR22(0xF0)
	ch.SetNR24(0xC0) // trigger + stop after length

	require.False(t, ch.Stopped())
	for i := 0; i < cyclesPerLengthTick; i++ {
		ch.Cycle()
	}
	assert.True(t, ch.Stopped())
}

func TestWaveChannelOutput(t *testing.T) {
	ch := NewChannel3()
	ch.SetNR30(0x80) // DAC on
	ch.SetNR32(0x20) // full output level
	for i := uint8(0); i < 16; i++ {
		ch.SetWavePattern(i, 0xF0)
	}
	ch.SetNR34(0x80)

	ch.wavePosition = 0 // high nibble = 0xF
	assert.Equal(t, 1.0, ch.Sample())
	ch.wavePosition = 1 // low nibble = 0
	assert.Equal(t, 0.0, ch.Sample())

	// output level 2 shifts the nibble down once
	ch.SetNR32(0x40)
	ch.wavePosition = 0
	assert.InDelta(t, float64(0xF>>1)/15, ch.Sample(), 1e-9)

	// level 0 silences
	ch.SetNR32(0x00)
	assert.Equal(t, 0.0, ch.Sample())
}

func TestWaveRAMWriteWhilePlaying(t *testing.T) {
	ch := NewChannel3()
	ch.SetWavePattern(5, 0xAB)
	assert.Equal(t, uint8(0xAB), ch.ReadWavePattern(5))

	ch.SetNR30(0x80)
	ch.SetNR34(0x80) // trigger -> playing, position 0
	ch.SetWavePattern(5, 0xCD)
	assert.Equal(t, uint8(0xCD), ch.ReadWavePattern(0),
		"write lands at the playing position")
	assert.Equal(t, uint8(0xAB), ch.ReadWavePattern(5))
}

func TestNoiseChannelLFSR(t *testing.T) {
	ch := NewChannel4()
	ch.SetNR42(0xF0)
	ch.SetNR44(0x80)
	require.Equal(t, uint16(lfsrInitialValue), ch.shiftRegister)

	// all ones: feedback = 1^1 = 0, shifts toward zero
	ch.clockShiftRegister()
	assert.Equal(t, uint16(0x3FFF), ch.shiftRegister)

	// 15 bit sequence must not get stuck
	seen := map[uint16]bool{}
	for i := 0; i < 1000; i++ {
		ch.clockShiftRegister()
		seen[ch.shiftRegister] = true
	}
	assert.Greater(t, len(seen), 100)
}

func TestNoisePeriodTable(t *testing.T) {
	ch := NewChannel4()

	ch.SetNR43(0x00) // divisor 8, shift 1
	assert.Equal(t, uint32(16), ch.period())

	ch.SetNR43(0x07) // divisor 112, shift 1
	assert.Equal(t, uint32(224), ch.period())

	ch.SetNR43(0x23) // divisor 48, shift 3
	assert.Equal(t, uint32(48<<3), ch.period())
}

func TestMixerRouting(t *testing.T) {
	a := NewAPU()
	a.WriteRegister(addr.NR52, 0x80)
	a.WriteRegister(addr.NR50, 0x77) // full volume both sides
	a.WriteRegister(addr.NR22, 0xF0)
	a.WriteRegister(addr.NR21, 0x80) // 50% duty
	a.WriteRegister(addr.NR24, 0x80) // trigger
	a.channel2.dutyPos = 0           // output high

	// route channel 2 left only
	a.WriteRegister(addr.NR51, 0x20)
	a.sampleAudio()
	left, right := a.back[0], a.back[1]
	assert.Greater(t, left, int16(0))
	assert.Equal(t, int16(0), right)

	// both sides
	a.WriteRegister(addr.NR51, 0x22)
	a.sampleAudio()
	left, right = a.back[2], a.back[3]
	assert.Equal(t, left, right)
	assert.Greater(t, right, int16(0))
}

func TestTickDoesNotBlockWhenDrained(t *testing.T) {
	a := NewAPU()
	done := make(chan struct{})
	go func() {
		// two buffers worth of cycles; needs the consumer to drain
		tickAPU(a, cyclesPerSample/1000*BufferLen)
		close(done)
	}()
	<-done
}
