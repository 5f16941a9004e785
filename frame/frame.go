/*
Package frame defines the linear layout of a color-barcode codeword and
the color alphabet its symbols are drawn from.

A codeword is an ordered symbol sequence of a fixed geometry: a START
marker, an INDEX calibration block running 0 through 7, the
Reed-Solomon protected data block and an END marker. Each data byte
becomes four symbols, two per nibble.
*/
package frame

import (
	"errors"
	"fmt"

	"github.com/alexhaugland/uuid-border/rs"
)

const (
	// StartLen, IndexLen and EndLen are the symbol counts of the fixed
	// regions surrounding the data block.
	StartLen = 6
	IndexLen = 8
	EndLen   = 6

	// SymbolsPerByte is how many symbols one data byte occupies: two
	// nibbles of two symbols each.
	SymbolsPerByte = 4

	// DefaultRedundancy doubles the codeword: sixteen parity bytes for
	// a sixteen byte payload, correcting up to eight corrupted bytes.
	DefaultRedundancy = 1.0
)

// Markers bracketing the frame. START is validated before any decode
// work happens; END is advisory only.
var (
	StartMarker = [StartLen]int{1, 1, 1, 0, 1, 2}
	EndMarker   = [EndLen]int{2, 1, 0, 1, 1, 1}
)

var (
	// ErrStartMarker is returned when the leading symbols of a frame do
	// not resemble the START marker, meaning no codeword is present.
	ErrStartMarker = errors.New("frame: start marker mismatch")

	errSymbolRange = errors.New("frame: symbol out of range")
)

// NibbleToSymbols maps a nibble to its symbol pair. Only one bit of
// the first symbol carries data, a deliberate rate-for-robustness
// trade.
func NibbleToSymbols(n byte) (int, int) {
	return int(n >> 3), int(n & 7)
}

// SymbolsToNibble inverts NibbleToSymbols.
func SymbolsToNibble(hi, lo int) byte {
	return byte(hi&1)<<3 | byte(lo&7)
}

// MatchMarker reports whether got matches want within a per-symbol
// tolerance of one alphabet index either way.
func MatchMarker(got, want []int) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		d := got[i] - want[i]
		if d < -1 || d > 1 {
			return false
		}
	}
	return true
}

// Codec converts payloads to codeword symbol sequences and back. The
// geometry is fixed at construction: encode and decode sides must be
// built with the same payload length and redundancy factor, or
// decoding fails as uncorrectable.
type Codec struct {
	codec      *rs.Codec
	totalBytes int
}

// NewCodec returns a codec for payloads of payloadLen bytes protected
// by redundancyFactor worth of parity.
func NewCodec(payloadLen int, redundancyFactor float64) (*Codec, error) {
	if redundancyFactor <= 0 {
		return nil, fmt.Errorf("frame: redundancy factor %g is not positive", redundancyFactor)
	}

	codec, err := rs.New(payloadLen, rs.ParityBytes(payloadLen, redundancyFactor))
	if err != nil {
		return nil, err
	}

	return &Codec{
		codec:      codec,
		totalBytes: codec.CodewordLen(),
	}, nil
}

// TotalBytes returns the data block size in bytes, payload plus parity.
func (c *Codec) TotalBytes() int { return c.totalBytes }

// PayloadLen returns the payload size in bytes.
func (c *Codec) PayloadLen() int { return c.codec.PayloadLen() }

// TotalSegments returns the codeword length in symbols.
func (c *Codec) TotalSegments() int {
	return StartLen + IndexLen + SymbolsPerByte*c.totalBytes + EndLen
}

// DataOffset returns the symbol index where the data block begins.
func (c *Codec) DataOffset() int { return StartLen + IndexLen }

// Encode produces the full codeword symbol sequence for payload.
func (c *Codec) Encode(payload []byte) ([]int, error) {
	data, err := c.codec.Encode(payload)
	if err != nil {
		return nil, err
	}

	symbols := make([]int, 0, c.TotalSegments())
	symbols = append(symbols, StartMarker[:]...)
	for i := 0; i < IndexLen; i++ {
		symbols = append(symbols, i)
	}
	for _, b := range data {
		hi, lo := NibbleToSymbols(b >> 4)
		symbols = append(symbols, hi, lo)
		hi, lo = NibbleToSymbols(b & 0x0f)
		symbols = append(symbols, hi, lo)
	}
	symbols = append(symbols, EndMarker[:]...)

	return symbols, nil
}

// Result is the outcome of decoding a codeword.
type Result struct {
	// Payload is the RS-verified payload. Nil when decoding failed.
	Payload []byte

	// Raw is the payload-sized prefix of the data block exactly as
	// read, before any correction. On failure a caller may present it
	// as an explicitly unverified reading.
	Raw []byte

	// EndMarkerMatched records whether the trailing marker looked
	// right. It never blocks a successful decode.
	EndMarkerMatched bool

	// ErrorsCorrected reports whether correction changed the payload
	// prefix relative to the raw reading.
	ErrorsCorrected bool
}

// Decode reconstructs the payload from a full codeword symbol
// sequence. The START marker is checked first and rejects cheaply
// before any Reed-Solomon work; the END marker only sets a flag.
// On an uncorrectable data block the returned Result still carries
// the raw reading alongside the error.
func (c *Codec) Decode(symbols []int) (*Result, error) {
	total := c.TotalSegments()
	if len(symbols) != total {
		return nil, fmt.Errorf("frame: got %d symbols, want %d", len(symbols), total)
	}
	for _, s := range symbols {
		if s < 0 || s >= AlphabetSize {
			return nil, errSymbolRange
		}
	}

	if !MatchMarker(symbols[:StartLen], StartMarker[:]) {
		return nil, ErrStartMarker
	}

	data := make([]byte, c.totalBytes)
	off := c.DataOffset()
	for i := range data {
		base := off + i*SymbolsPerByte
		hi := SymbolsToNibble(symbols[base], symbols[base+1])
		lo := SymbolsToNibble(symbols[base+2], symbols[base+3])
		data[i] = hi<<4 | lo
	}

	payloadLen := c.codec.PayloadLen()
	result := &Result{
		Raw:              append([]byte(nil), data[:payloadLen]...),
		EndMarkerMatched: MatchMarker(symbols[total-EndLen:], EndMarker[:]),
	}

	payload, _, err := c.codec.Decode(data)
	if err != nil {
		return result, err
	}

	result.Payload = append([]byte(nil), payload...)
	for i := range result.Payload {
		if result.Payload[i] != result.Raw[i] {
			result.ErrorsCorrected = true
			break
		}
	}

	return result, nil
}
