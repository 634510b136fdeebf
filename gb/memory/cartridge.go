package memory

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

const (
	titleAddress          = 0x134
	titleLength           = 16
	cartridgeTypeAddress  = 0x147
	romSizeAddress        = 0x148
	ramSizeAddress        = 0x149
	headerChecksumAddress = 0x14D

	romBankSize = 0x4000
	ramBankSize = 0x2000
)

// Construction errors for malformed cartridge images.
var (
	ErrROMTooSmall    = errors.New("cartridge: ROM image smaller than header")
	ErrUnknownMBC     = errors.New("cartridge: unknown memory bank controller")
	ErrUnknownROMSize = errors.New("cartridge: unknown ROM size code")
	ErrUnknownRAMSize = errors.New("cartridge: unknown RAM size code")
)

// MBCType identifies the memory bank controller wired into a cartridge.
type MBCType uint8

const (
	NoMBCType MBCType = iota
	MBC1Type
	MBC2Type
	MBC3Type
	MBC5Type
)

func (t MBCType) String() string {
	switch t {
	case NoMBCType:
		return "none"
	case MBC1Type:
		return "MBC1"
	case MBC2Type:
		return "MBC2"
	case MBC3Type:
		return "MBC3"
	case MBC5Type:
		return "MBC5"
	}
	return "unknown"
}

// Cartridge owns the ROM image and the header metadata parsed out of it.
type Cartridge struct {
	data  []byte
	title string

	mbcType      MBCType
	cartType     uint8
	romBankCount int
	ramBankCount int
	hasBattery   bool
}

// NewCartridge initializes a Cartridge from a raw ROM image, parsing and
// validating the header at 0x100..0x14F.
func NewCartridge(data []byte) (*Cartridge, error) {
	if len(data) < 0x150 {
		return nil, fmt.Errorf("%w: %d bytes", ErrROMTooSmall, len(data))
	}

	cart := &Cartridge{
		data:     make([]byte, len(data)),
		cartType: data[cartridgeTypeAddress],
	}
	copy(cart.data, data)

	titleBytes := data[titleAddress : titleAddress+titleLength]
	cart.title = strings.TrimRight(string(titleBytes), "\x00")

	mbcType, hasBattery, err := decodeCartType(cart.cartType)
	if err != nil {
		return nil, err
	}
	cart.mbcType = mbcType
	cart.hasBattery = hasBattery

	cart.romBankCount, err = decodeROMSize(data[romSizeAddress])
	if err != nil {
		return nil, err
	}

	cart.ramBankCount, err = decodeRAMSize(data[ramSizeAddress])
	if err != nil {
		return nil, err
	}

	slog.Info("loaded cartridge",
		"title", cart.title,
		"mbc", cart.mbcType.String(),
		"rom_banks", cart.romBankCount,
		"ram_banks", cart.ramBankCount,
	)

	if !cart.ChecksumValid() {
		slog.Warn("cartridge header checksum mismatch",
			"stored", fmt.Sprintf("0x%02X", data[headerChecksumAddress]))
	}

	return cart, nil
}

// ChecksumValid recomputes the header checksum over 0x134..0x14C and
// compares it with the stored byte at 0x14D.
func (c *Cartridge) ChecksumValid() bool {
	var sum uint8
	for i := 0x134; i <= 0x14C; i++ {
		sum = sum - c.data[i] - 1
	}
	return sum == c.data[headerChecksumAddress]
}

// Title returns the game title from the header, NUL padding stripped.
func (c *Cartridge) Title() string { return c.title }

// Type returns the decoded memory bank controller kind.
func (c *Cartridge) Type() MBCType { return c.mbcType }

// ROMBankCount returns the number of 16 KiB ROM banks.
func (c *Cartridge) ROMBankCount() int { return c.romBankCount }

// RAMBankCount returns the number of 8 KiB external RAM banks.
func (c *Cartridge) RAMBankCount() int { return c.ramBankCount }

// HasBattery reports whether external RAM is battery backed.
func (c *Cartridge) HasBattery() bool { return c.hasBattery }

// romBankMask returns the mask applied to bank indexes so that selecting
// a bank past the end of the image wraps instead of reading garbage.
func (c *Cartridge) romBankMask() int {
	mask := 1
	for mask < c.romBankCount {
		mask <<= 1
	}
	return mask - 1
}

func decodeCartType(code uint8) (mbc MBCType, battery bool, err error) {
	switch code {
	case 0x00, 0x08:
		return NoMBCType, false, nil
	case 0x09:
		return NoMBCType, true, nil
	case 0x01, 0x02:
		return MBC1Type, false, nil
	case 0x03:
		return MBC1Type, true, nil
	case 0x05:
		return MBC2Type, false, nil
	case 0x06:
		return MBC2Type, true, nil
	case 0x0F, 0x10, 0x13:
		return MBC3Type, true, nil
	case 0x11, 0x12:
		return MBC3Type, false, nil
	case 0x19, 0x1A, 0x1C, 0x1D:
		return MBC5Type, false, nil
	case 0x1B, 0x1E:
		return MBC5Type, true, nil
	}
	return 0, false, fmt.Errorf("%w: type 0x%02X", ErrUnknownMBC, code)
}

func decodeROMSize(code uint8) (int, error) {
	switch {
	case code <= 0x08:
		return 2 << code, nil
	case code == 0x52:
		return 72, nil
	case code == 0x53:
		return 80, nil
	case code == 0x54:
		return 96, nil
	}
	return 0, fmt.Errorf("%w: 0x%02X", ErrUnknownROMSize, code)
}

func decodeRAMSize(code uint8) (int, error) {
	switch code {
	case 0x00:
		return 0, nil
	case 0x01, 0x02:
		// code 1 is a single partial 2 KiB bank, still one bank
		return 1, nil
	case 0x03:
		return 4, nil
	case 0x04:
		return 16, nil
	case 0x05:
		return 8, nil
	}
	return 0, fmt.Errorf("%w: 0x%02X", ErrUnknownRAMSize, code)
}
