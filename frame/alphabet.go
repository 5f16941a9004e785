package frame

import "math"

const (
	// The alphabet is built around a neutral grey base; each of the
	// three bits of a symbol pushes one channel above or below it.
	neutralBase = 133
	colorOffset = 10

	// AlphabetSize is the number of symbols, one per 3-bit value.
	AlphabetSize = 8

	// Midpoint is the provisional per-channel decision boundary used
	// before real thresholds have been calibrated from an image.
	Midpoint = float64(neutralBase)
)

// Color is a single RGB sample. Channels are kept as floats so that
// averaged samples keep sub-integer precision.
type Color [3]float64

// Alphabet holds the eight reference colors. Color i has channel c set
// to base+offset when bit c of i is set and base-offset otherwise, so
// any two colors differing in one bit sit exactly 2*colorOffset apart.
var Alphabet = makeAlphabet()

func makeAlphabet() [AlphabetSize]Color {
	var a [AlphabetSize]Color
	for i := range a {
		for c := 0; c < 3; c++ {
			if i>>c&1 != 0 {
				a[i][c] = neutralBase + colorOffset
			} else {
				a[i][c] = neutralBase - colorOffset
			}
		}
	}
	return a
}

// Distance returns the Euclidean distance between two colors.
func Distance(a, b Color) float64 {
	var sum float64
	for c := 0; c < 3; c++ {
		d := a[c] - b[c]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Closest returns the alphabet index nearest to s and its distance.
// Ties resolve to the lowest index.
func Closest(s Color) (int, float64) {
	best, bestDist := 0, math.MaxFloat64
	for i, c := range Alphabet {
		if d := Distance(s, c); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

// CoarseIndex classifies each channel of s against the provisional
// midpoint, yielding a 3-bit symbol with no calibration at all.
func CoarseIndex(s Color) int {
	sym := 0
	for c := 0; c < 3; c++ {
		if s[c] > Midpoint {
			sym |= 1 << c
		}
	}
	return sym
}
