package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Stenodyon/gb/gb/addr"
)

func TestTimerDIVAdvances(t *testing.T) {
	var timer Timer

	for i := 0; i < 256; i++ {
		timer.Tick()
	}
	assert.Equal(t, uint8(1), timer.Read(addr.DIV))

	timer.Write(addr.DIV, 0x55)
	assert.Equal(t, uint8(0), timer.Read(addr.DIV), "any DIV write resets the counter")
}

func TestTimerEdgeTrigger(t *testing.T) {
	// TAC=0x05: enabled, trigger on divider bit 3, one TIMA increment
	// every 16 machine cycles
	var timer Timer
	timer.Write(addr.TAC, 0x05)

	for _, n := range []int{16, 160, 1000} {
		timer = Timer{}
		timer.Write(addr.TAC, 0x05)
		for i := 0; i < n; i++ {
			timer.Tick()
		}
		assert.Equal(t, uint8(n/16), timer.Read(addr.TIMA), "after %d cycles", n)
	}
}

func TestTimerDisabled(t *testing.T) {
	var timer Timer
	timer.Write(addr.TAC, 0x01) // clock select set but not enabled

	for i := 0; i < 1024; i++ {
		timer.Tick()
	}
	assert.Equal(t, uint8(0), timer.Read(addr.TIMA))
}

func TestTimerOverflow(t *testing.T) {
	fired := 0
	var timer Timer
	timer.Interrupt = func() { fired++ }
	timer.Write(addr.TMA, 0xAA)
	timer.Write(addr.TIMA, 0xFF)
	timer.Write(addr.TAC, 0x05)

	for i := 0; i < 16; i++ {
		timer.Tick()
	}

	assert.Equal(t, uint8(0xAA), timer.Read(addr.TIMA), "TIMA reloads from TMA")
	assert.Equal(t, 1, fired, "overflow raises the timer interrupt")
}

func TestTimerDIVWriteGlitch(t *testing.T) {
	// with bit 3 selected and high, resetting DIV is a falling edge
	var timer Timer
	timer.Write(addr.TAC, 0x05)
	for i := 0; i < 8; i++ {
		timer.Tick()
	}
	assert.Equal(t, uint8(0), timer.Read(addr.TIMA))

	timer.Write(addr.DIV, 0x00)
	assert.Equal(t, uint8(1), timer.Read(addr.TIMA), "DIV reset while trigger bit high increments TIMA")
}

func TestTimerTACWriteGlitch(t *testing.T) {
	// disabling the timer while the trigger bit is high also counts as
	// a falling edge
	var timer Timer
	timer.Write(addr.TAC, 0x05)
	for i := 0; i < 8; i++ {
		timer.Tick()
	}

	timer.Write(addr.TAC, 0x01)
	assert.Equal(t, uint8(1), timer.Read(addr.TIMA))
}

func TestTimerClockSelects(t *testing.T) {
	tests := []struct {
		tac    uint8
		period int
	}{
		{0x04, 1024},
		{0x05, 16},
		{0x06, 64},
		{0x07, 256},
	}
	for _, tt := range tests {
		var timer Timer
		timer.Write(addr.TAC, tt.tac)
		for i := 0; i < tt.period*4; i++ {
			timer.Tick()
		}
		assert.Equal(t, uint8(4), timer.Read(addr.TIMA), "TAC=0x%02X", tt.tac)
	}
}
