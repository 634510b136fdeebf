package memory

// Button is one of the eight joypad inputs.
type Button uint8

const (
	ButtonRight Button = iota
	ButtonLeft
	ButtonUp
	ButtonDown
	ButtonA
	ButtonB
	ButtonSelect
	ButtonStart
)

// Joypad projects the 8 button matrix through the P1 selector register.
// Bits 4 (directions) and 5 (buttons) are active low selectors; the low
// nibble reports the OR of the selected rows, also active low.
type Joypad struct {
	pressed  [8]bool
	selector uint8
	lowBits  uint8

	// Interrupt is invoked when a selected input line goes low.
	Interrupt func()
}

// NewJoypad returns a joypad with no buttons held and no row selected.
func NewJoypad() *Joypad {
	return &Joypad{selector: 0x30, lowBits: 0x0F}
}

// SetButton updates the raw state of a button. The register and the
// joypad interrupt follow on the next machine tick.
func (j *Joypad) SetButton(b Button, down bool) {
	j.pressed[b] = down
}

// Read returns the P1 register: selector bits, recomputed low nibble,
// unused bits 6-7 high.
func (j *Joypad) Read() uint8 {
	return 0xC0 | j.selector | j.lowBits
}

// Write stores the selector bits; only bits 4-5 are writable.
func (j *Joypad) Write(value uint8) {
	j.selector = value & 0x30
}

// Tick recomputes the low nibble from the selected rows and raises the
// joypad interrupt on any line that newly went low.
func (j *Joypad) Tick() {
	buttons := j.selector&0x20 == 0
	directions := j.selector&0x10 == 0

	var low uint8 = 0x0F
	lines := [4][2]Button{
		{ButtonA, ButtonRight},
		{ButtonB, ButtonLeft},
		{ButtonSelect, ButtonUp},
		{ButtonStart, ButtonDown},
	}
	for i, pair := range lines {
		if (buttons && j.pressed[pair[0]]) || (directions && j.pressed[pair[1]]) {
			low &^= 1 << i
		}
	}

	newlyLow := j.lowBits & ^low & 0x0F
	j.lowBits = low

	if newlyLow != 0 && j.Interrupt != nil {
		j.Interrupt()
	}
}
