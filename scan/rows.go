package scan

import (
	"math"

	"github.com/alexhaugland/uuid-border/frame"
)

// voteOffsets are the fractional in-segment positions resampled during
// multi-row voting.
var voteOffsets = [3]float64{0.25, 0.5, 0.75}

// ScoreRow counts the pixels of a window that sit within the loose
// tolerance of the alphabet. It is a cheap proxy for "this row crosses
// the strip".
func ScoreRow(sample Sampler, startX, width int, cfg Config) int {
	score := 0
	for x := startX; x < startX+width; x++ {
		if _, d := frame.Closest(sample(x)); d <= cfg.CoarseTolerance {
			score++
		}
	}
	return score
}

// BestRow returns the index of the candidate row with the highest
// in-alphabet pixel count, or -1 when no row scores at all.
func BestRow(rows []Sampler, startX, width int, cfg Config) int {
	best, bestScore := -1, 0
	for i, row := range rows {
		if s := ScoreRow(row, startX, width, cfg); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

// voteSegment averages samples taken at the fractional offsets of one
// segment across every row, then classifies the mean against the
// calibrated thresholds. Pure pre-threshold noise averaging; it never
// touches the decode logic downstream.
func voteSegment(rows []Sampler, cal *Calibration, startX, width int, cfg Config, x float64) int {
	var strict, loose frame.Color
	strictN, looseN := 0, 0

	for _, row := range rows {
		for _, off := range voteOffsets {
			px := int(math.Round(x + off*cal.UnitWidth))
			if px < startX || px >= startX+width {
				continue
			}
			s := row(px)
			for c := 0; c < 3; c++ {
				loose[c] += s[c]
			}
			looseN++
			if _, d := frame.Closest(s); d <= cfg.StrictTolerance {
				for c := 0; c < 3; c++ {
					strict[c] += s[c]
				}
				strictN++
			}
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
		if mean[c]/float64(n) > cal.Thresholds[c] {
			sym |= 1 << c
		}
	}
	return sym
}

// DecodeVoting calibrates once on a representative row, then reads
// each symbol by averaging samples across all the given rows before
// thresholding. The rows are expected to be adjacent scan lines
// crossing the same strip.
func DecodeVoting(rows []Sampler, representative int, startX, width int, codec *frame.Codec, cfg Config) (*frame.Result, error) {
	if representative < 0 || representative >= len(rows) {
		representative = 0
	}

	cal, err := Calibrate(rows[representative], startX, width, codec.TotalSegments(), cfg)
	if err != nil {
		return nil, err
	}

	total := codec.TotalSegments()
	symbols := make([]int, total)
	for i := range symbols {
		x := cal.EncodingStartX + float64(i)*cal.UnitWidth
		symbols[i] = voteSegment(rows, cal, startX, width, cfg, x)
	}

	return codec.Decode(symbols)
}
