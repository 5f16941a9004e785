package scan

import (
	"math"

	"github.com/alexhaugland/uuid-border/frame"
)

// RowDecoder reads symbols back out of a calibrated row.
type RowDecoder struct {
	sample Sampler
	cal    *Calibration
	cfg    Config

	startX int
	width  int
}

// NewRowDecoder wraps a sampler with the calibration derived from it.
// The window bounds must match the ones given to Calibrate.
func NewRowDecoder(sample Sampler, cal *Calibration, startX, width int, cfg Config) *RowDecoder {
	return &RowDecoder{
		sample: sample,
		cal:    cal,
		cfg:    cfg,
		startX: startX,
		width:  width,
	}
}

// segment averages the in-alphabet pixels of one symbol-wide span and
// classifies each channel against the calibrated threshold. Pixels
// beyond the strict tolerance are excluded from the average; if none
// qualify the unfiltered span mean is classified instead, so a fully
// out-of-gamut segment still decodes from real data and surfaces at
// the Reed-Solomon layer rather than silently reading as symbol zero.
func (d *RowDecoder) segment(x float64) int {
	var strict, loose frame.Color
	strictN, looseN := 0, 0

	for px := int(math.Ceil(x - 0.5)); float64(px) < x+d.cal.UnitWidth-0.5; px++ {
		if px < d.startX || px >= d.startX+d.width {
			continue
		}
		s := d.sample(px)
		for c := 0; c < 3; c++ {
			loose[c] += s[c]
		}
		looseN++
		if _, dist := frame.Closest(s); dist <= d.cfg.StrictTolerance {
			for c := 0; c < 3; c++ {
				strict[c] += s[c]
			}
			strictN++
		}
	}

	mean, n := strict, strictN
	if n == 0 {
		if looseN == 0 {
			return 0
		}
		mean, n = loose, looseN
	}

	sym := 0
	for c := 0; c < 3; c++ {
		if mean[c]/float64(n) > d.cal.Thresholds[c] {
			sym |= 1 << c
		}
	}
	return sym
}

// Symbols reads the full codeword, one segment per symbol starting at
// the calibrated frame position.
func (d *RowDecoder) Symbols(totalSegments int) []int {
	symbols := make([]int, totalSegments)
	for i := range symbols {
		symbols[i] = d.segment(d.cal.EncodingStartX + float64(i)*d.cal.UnitWidth)
	}
	return symbols
}

// Decode runs the whole single-row pipeline: calibrate the window,
// read the symbols and hand them to the frame codec. It is the
// single-attempt primitive; any retry policy belongs to the caller.
func Decode(sample Sampler, startX, width int, codec *frame.Codec, cfg Config) (*frame.Result, error) {
	cal, err := Calibrate(sample, startX, width, codec.TotalSegments(), cfg)
	if err != nil {
		return nil, err
	}

	d := NewRowDecoder(sample, cal, startX, width, cfg)
	return codec.Decode(d.Symbols(codec.TotalSegments()))
}
