/*
Package border encodes 128-bit identifiers into calibrated color
strips suitable for rendering as a thin border on an image, and
recovers them from noisy, rescaled or offset captures of that border.
*/
package border

import (
	"log"

	"github.com/google/uuid"

	"github.com/alexhaugland/uuid-border/frame"
	"github.com/alexhaugland/uuid-border/rs"
	"github.com/alexhaugland/uuid-border/scan"
)

// PayloadSize is the identifier size in bytes.
const PayloadSize = 16

// Border ties the codec pipeline to an optional identifier registry.
type Border struct {
	registry *Registry
	logger   *log.Logger
	codec    *frame.Codec
	cfg      scan.Config
}

// New returns a Border at the default redundancy. The registry may be
// nil when only encoding and decoding are needed.
func New(registry *Registry, logger *log.Logger) (*Border, error) {
	return NewWithRedundancy(registry, logger, frame.DefaultRedundancy)
}

// NewWithRedundancy returns a Border whose codewords carry
// redundancyFactor worth of parity. Encode and decode sides must agree
// on the factor; a mismatch surfaces as an uncorrectable decode.
func NewWithRedundancy(registry *Registry, logger *log.Logger, redundancyFactor float64) (*Border, error) {
	codec, err := frame.NewCodec(PayloadSize, redundancyFactor)
	if err != nil {
		return nil, err
	}

	return &Border{
		registry: registry,
		logger:   logger,
		codec:    codec,
		cfg:      scan.DefaultConfig(),
	}, nil
}

// TotalSegments returns the codeword length in symbols, the minimum
// strip width in pixels with any chance of decoding.
func (b *Border) TotalSegments() int {
	return b.codec.TotalSegments()
}

// Result is a successfully recovered identifier.
type Result struct {
	ID uuid.UUID

	// EndMarkerMatched is advisory: a verified decode is trusted even
	// when the trailing marker looked wrong.
	EndMarkerMatched bool

	// ErrorsCorrected reports whether the raw reading differed from
	// the corrected identifier.
	ErrorsCorrected bool
}

// UnverifiedError is returned when the data block could not be
// certified. Raw carries the identifier exactly as read; callers may
// present it as long as they mark it unverified.
type UnverifiedError struct {
	Raw uuid.UUID
}

func (e *UnverifiedError) Error() string {
	return "border: uncorrectable code, raw reading " + e.Raw.String() + " is unverified"
}

func (e *UnverifiedError) Unwrap() error { return rs.ErrUncorrectable }
