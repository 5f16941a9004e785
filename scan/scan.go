/*
Package scan recovers codeword symbols from a single pixel row of an
unknown image.

Nothing about the row is assumed up front: the strip may sit at any
offset, at any scale and under any rendering bias. Calibration derives
everything it needs from the INDEX block of the frame itself, then a
row decoder applies the calibration to read symbols back out. Both
passes are pure functions over an injected sample accessor; every
decode attempt calibrates from scratch and shares no state.
*/
package scan

import (
	"errors"
	"math"
	"sort"

	"github.com/alexhaugland/uuid-border/frame"
)

// Sampler returns the color at a single x along the scan row. The
// coordinate is relative to whatever window the caller chose; the
// package never samples outside [startX, startX+width).
type Sampler func(x int) frame.Color

// Config carries the classification tolerances. The zero value is not
// usable; start from DefaultConfig.
type Config struct {
	// CoarseTolerance is the loose distance-to-alphabet bound used
	// while hunting for the frame. It only has to separate strip
	// pixels from arbitrary background.
	CoarseTolerance float64

	// StrictTolerance gates which pixels contribute to a segment
	// average once calibrated.
	StrictTolerance float64
}

// DefaultConfig returns the tolerances tuned for the stock alphabet,
// where colors sit 20 to 35 units apart.
func DefaultConfig() Config {
	return Config{
		CoarseTolerance: 60,
		StrictTolerance: 30,
	}
}

// ErrNoCode is returned when calibration finds no INDEX pattern in the
// window, meaning no decodable code is present.
var ErrNoCode = errors.New("scan: no code detected")

// Run is a maximal span of consecutive pixels sharing one coarse
// classification.
type Run struct {
	Start  int
	End    int // inclusive
	Index  int // coarse 3-bit classification
	Mean   frame.Color
	Length int
}

// Calibration holds everything derived from the INDEX block: the
// per-channel decision thresholds, the symbol pixel width and the
// absolute position of the frame. It is computed fresh per attempt
// and thrown away afterwards.
type Calibration struct {
	Thresholds     [3]float64
	UnitWidth      float64
	EncodingStartX float64
	DataStartX     float64
}

// collectRuns performs the coarse pass: classify every pixel in the
// window against the provisional midpoint, drop anything further than
// the loose tolerance from the alphabet and collapse the rest into
// runs.
func collectRuns(sample Sampler, startX, width int, tolerance float64) []Run {
	var runs []Run
	open := false

	for x := startX; x < startX+width; x++ {
		s := sample(x)
		if _, d := frame.Closest(s); d > tolerance {
			open = false
			continue
		}
		coarse := frame.CoarseIndex(s)

		if open {
			r := &runs[len(runs)-1]
			if r.Index == coarse && r.End == x-1 {
				r.End = x
				r.Length++
				for c := 0; c < 3; c++ {
					r.Mean[c] += s[c]
				}
				continue
			}
		}
		runs = append(runs, Run{Start: x, End: x, Index: coarse, Mean: s, Length: 1})
		open = true
	}

	for i := range runs {
		for c := 0; c < 3; c++ {
			runs[i].Mean[c] /= float64(runs[i].Length)
		}
	}
	return runs
}

// findIndexBlock looks for eight consecutive runs whose coarse indices
// ascend 0 through 7, tolerating up to two merged or split runs. It
// returns the offset of the best-matching window.
func findIndexBlock(runs []Run) (int, bool) {
	const need = frame.IndexLen - 2

	best, bestMatches := -1, 0
	for i := 0; i+frame.IndexLen <= len(runs); i++ {
		matches := 0
		for k := 0; k < frame.IndexLen; k++ {
			if runs[i+k].Index == k {
				matches++
			}
		}
		if matches >= need && matches > bestMatches {
			best, bestMatches = i, matches
		}
	}
	return best, best >= 0
}

// medianOfFour returns the median of exactly four values, the mean of
// the middle pair.
func medianOfFour(v []float64) float64 {
	sort.Float64s(v)
	return (v[1] + v[2]) / 2
}

// refineUnit tightens the unit width estimate by walking measured run
// boundaries forward across the data block. The eight INDEX runs alone
// pin the width only to within a pixel over eight symbols, and that
// rounding gets amplified 140x by the time the END marker is reached;
// each confidently-placed boundary further out divides the error by
// the symbol count it spans.
func refineUnit(runs []Run, indexRun0 int, unit float64, totalSegments int) float64 {
	base := float64(runs[indexRun0].Start)
	remaining := float64(totalSegments - frame.StartLen + 1)
	prevEnd := runs[indexRun0].End

	for i := indexRun0 + 1; i < len(runs); i++ {
		r := runs[i]
		if r.Start != prevEnd+1 {
			break // gap in the strip, we have left the frame
		}
		span := float64(r.End+1) - base
		if span > remaining*unit {
			break
		}
		k := math.Round(span / unit)
		if k >= 1 && math.Abs(span/unit-k) <= 0.4 {
			unit = span / k
		}
		prevEnd = r.End
	}
	return unit
}

// Calibrate derives thresholds, symbol width and frame position from a
// window believed to contain one codeword. totalSegments is the
// expected codeword length in symbols, which fixes how far the frame
// extends past the INDEX block.
func Calibrate(sample Sampler, startX, width, totalSegments int, cfg Config) (*Calibration, error) {
	runs := collectRuns(sample, startX, width, cfg.CoarseTolerance)

	i0, ok := findIndexBlock(runs)
	if !ok {
		return nil, ErrNoCode
	}
	index := runs[i0 : i0+frame.IndexLen]

	unit := 0.0
	for _, r := range index {
		unit += float64(r.Length)
	}
	unit /= frame.IndexLen

	unit = refineUnit(runs, i0, unit, totalSegments)

	// Per channel, the eight INDEX colors split by construction into
	// four with the bit clear and four with it set. Recalibrating the
	// boundary against their medians absorbs rendering bias that a
	// fixed global threshold cannot.
	var cal Calibration
	for c := 0; c < 3; c++ {
		lows := make([]float64, 0, 4)
		highs := make([]float64, 0, 4)
		for k, r := range index {
			if k>>c&1 != 0 {
				highs = append(highs, r.Mean[c])
			} else {
				lows = append(lows, r.Mean[c])
			}
		}
		cal.Thresholds[c] = (medianOfFour(lows) + medianOfFour(highs)) / 2
	}

	cal.UnitWidth = unit
	cal.EncodingStartX = float64(index[0].Start) - frame.StartLen*unit
	cal.DataStartX = cal.EncodingStartX + float64(frame.StartLen+frame.IndexLen)*unit

	return &cal, nil
}
