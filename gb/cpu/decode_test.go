package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorRoundTrip(t *testing.T) {
	for op := uint16(0); op <= 0xFF; op++ {
		desc := Describe(op)
		assert.Equal(t, op, desc.Opcode)
		require.NotNil(t, desc.handler, "opcode 0x%02X has no handler", op)
		require.NotEmpty(t, desc.Mnemonic, "opcode 0x%02X has no mnemonic", op)
		assert.LessOrEqual(t, desc.Operands, uint8(2))
	}

	for op := uint16(0); op <= 0xFF; op++ {
		desc := Describe(0xCB00 | op)
		assert.Equal(t, 0xCB00|op, desc.Opcode)
		require.NotNil(t, desc.handler)
		require.NotEmpty(t, desc.Mnemonic)
		assert.Zero(t, desc.Operands, "CB ops take no immediates")
	}
}

func TestDescriptorOperandSizes(t *testing.T) {
	tests := []struct {
		opcode uint16
		want   uint8
	}{
		{0x00, 0}, // NOP
		{0x01, 2}, // LD BC, nn
		{0x06, 1}, // LD B, n
		{0x18, 1}, // JR n
		{0xC3, 2}, // JP nn
		{0xCD, 2}, // CALL nn
		{0xE0, 1}, // LDH (n), A
		{0xEA, 2}, // LD (nn), A
		{0xE8, 1}, // ADD SP, n
		{0xFE, 1}, // CP n
		{0xC9, 0}, // RET
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Describe(tt.opcode).Operands, "opcode 0x%02X", tt.opcode)
	}
}

func TestDescriptorMnemonics(t *testing.T) {
	assert.Equal(t, "NOP", Describe(0x00).Mnemonic)
	assert.Equal(t, "HALT", Describe(0x76).Mnemonic)
	assert.Equal(t, "LD B, C", Describe(0x41).Mnemonic)
	assert.Equal(t, "ADD A, (HL)", Describe(0x86).Mnemonic)
	assert.Equal(t, "RLC B", Describe(0xCB00).Mnemonic)
	assert.Equal(t, "BIT 7, (HL)", Describe(0xCB7E).Mnemonic)
	assert.Equal(t, "SET 7, A", Describe(0xCBFF).Mnemonic)
}

// TestRegisterFieldEncoding checks the 3 bit register field shared by
// the LD grid, the ALU block and the CB table: B C D E H L (HL) A.
func TestRegisterFieldEncoding(t *testing.T) {
	order := []string{"B", "C", "D", "E", "H", "L", "(HL)", "A"}
	for i, reg := range order {
		assert.Equal(t, "LD B, "+reg, Describe(uint16(0x40+i)).Mnemonic)
		assert.Equal(t, "SUB "+reg, Describe(uint16(0x90+i)).Mnemonic)
		assert.Equal(t, "SWAP "+reg, Describe(uint16(0xCB30+i)).Mnemonic)
	}
}
