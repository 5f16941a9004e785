package scan_test

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexhaugland/uuid-border/frame"
	"github.com/alexhaugland/uuid-border/scan"
)

var testID = uuid.MustParse("12345678-1234-4234-8234-123456789abc")

func testCodec(t *testing.T) *frame.Codec {
	t.Helper()
	c, err := frame.NewCodec(16, frame.DefaultRedundancy)
	require.NoError(t, err)
	return c
}

// renderRow paints a symbol sequence across width pixels, the same
// solid-block rendering the real painter uses.
func renderRow(symbols []int, width int) []frame.Color {
	row := make([]frame.Color, width)
	for x := range row {
		row[x] = frame.Alphabet[symbols[x*len(symbols)/width]]
	}
	return row
}

func sampler(row []frame.Color) scan.Sampler {
	return func(x int) frame.Color { return row[x] }
}

// addNoise perturbs every channel of every pixel by -1, 0 or +1.
func addNoise(r *rand.Rand, row []frame.Color) []frame.Color {
	out := make([]frame.Color, len(row))
	for i, px := range row {
		for c := 0; c < 3; c++ {
			out[i][c] = px[c] + float64(r.Intn(3)-1)
		}
	}
	return out
}

func randomRow(r *rand.Rand, n int) []frame.Color {
	row := make([]frame.Color, n)
	for i := range row {
		for c := 0; c < 3; c++ {
			row[i][c] = float64(r.Intn(256))
		}
	}
	return row
}

func TestCalibrationInvariance(t *testing.T) {
	codec := testCodec(t)
	symbols, err := codec.Encode(testID[:])
	require.NoError(t, err)

	for _, width := range []int{420, 500, 672, 840, 1000} {
		row := renderRow(symbols, width)

		result, err := scan.Decode(sampler(row), 0, width, codec, scan.DefaultConfig())
		require.NoError(t, err, "width=%d", width)
		assert.Equal(t, testID[:], result.Payload, "width=%d", width)
		assert.True(t, result.EndMarkerMatched)
		assert.False(t, result.ErrorsCorrected)
	}
}

func TestOffsetInvariance(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	codec := testCodec(t)
	symbols, err := codec.Encode(testID[:])
	require.NoError(t, err)

	for _, pad := range []int{1, 37, 137, 500} {
		width := 592
		row := append(randomRow(r, pad), renderRow(symbols, width)...)

		result, err := scan.Decode(sampler(row), pad, width, codec, scan.DefaultConfig())
		require.NoError(t, err, "pad=%d", pad)
		assert.Equal(t, testID[:], result.Payload)
	}
}

func TestNoiseTolerance(t *testing.T) {
	r := rand.New(rand.NewSource(6))
	codec := testCodec(t)
	symbols, err := codec.Encode(testID[:])
	require.NoError(t, err)

	for _, width := range []int{420, 592, 1000} {
		for trial := 0; trial < 10; trial++ {
			row := addNoise(r, renderRow(symbols, width))

			result, err := scan.Decode(sampler(row), 0, width, codec, scan.DefaultConfig())
			require.NoError(t, err, "width=%d trial=%d", width, trial)
			assert.Equal(t, testID[:], result.Payload)
		}
	}
}

func TestCalibrationValues(t *testing.T) {
	codec := testCodec(t)
	symbols, err := codec.Encode(testID[:])
	require.NoError(t, err)

	width := 592 // four pixels per symbol exactly
	row := renderRow(symbols, width)

	cal, err := scan.Calibrate(sampler(row), 0, width, codec.TotalSegments(), scan.DefaultConfig())
	require.NoError(t, err)

	assert.InDelta(t, 4.0, cal.UnitWidth, 0.01)
	assert.InDelta(t, 0.0, cal.EncodingStartX, 0.05)
	assert.InDelta(t, 14*4.0, cal.DataStartX, 0.6)
	for c := 0; c < 3; c++ {
		assert.InDelta(t, frame.Midpoint, cal.Thresholds[c], 1.0)
	}
}

func TestCalibrationFailsOnNoise(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	// All channels well above the alphabet's gamut, so nothing ever
	// classifies as a strip pixel.
	row := make([]frame.Color, 600)
	for i := range row {
		for c := 0; c < 3; c++ {
			row[i][c] = float64(200 + r.Intn(56))
		}
	}

	codec := testCodec(t)
	_, err := scan.Calibrate(sampler(row), 0, 600, codec.TotalSegments(), scan.DefaultConfig())
	assert.Equal(t, scan.ErrNoCode, err)
}

func TestScoreAndBestRow(t *testing.T) {
	r := rand.New(rand.NewSource(8))
	codec := testCodec(t)
	symbols, err := codec.Encode(testID[:])
	require.NoError(t, err)

	width := 592
	strip := renderRow(symbols, width)
	background := randomRow(r, width)

	cfg := scan.DefaultConfig()
	assert.Greater(t, scan.ScoreRow(sampler(strip), 0, width, cfg), scan.ScoreRow(sampler(background), 0, width, cfg))

	rows := []scan.Sampler{sampler(background), sampler(strip), sampler(background)}
	assert.Equal(t, 1, scan.BestRow(rows, 0, width, cfg))
}

func TestDecodeVoting(t *testing.T) {
	r := rand.New(rand.NewSource(9))
	codec := testCodec(t)
	symbols, err := codec.Encode(testID[:])
	require.NoError(t, err)

	width := 592
	clean := renderRow(symbols, width)
	rows := []scan.Sampler{
		sampler(addNoise(r, clean)),
		sampler(addNoise(r, clean)),
		sampler(addNoise(r, clean)),
	}

	result, err := scan.DecodeVoting(rows, 1, 0, width, codec, scan.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, testID[:], result.Payload)
}

// A damaged strip within the correction bound still decodes, and the
// correction is reported.
func TestDecodeWithDamage(t *testing.T) {
	codec := testCodec(t)
	symbols, err := codec.Encode(testID[:])
	require.NoError(t, err)

	width := 592
	row := renderRow(symbols, width)

	// Overwrite four data bytes' worth of pixels with one color.
	unit := width / codec.TotalSegments()
	start := (codec.DataOffset() + 8) * unit
	for x := start; x < start+16*unit; x++ {
		row[x] = frame.Alphabet[7]
	}

	result, err := scan.Decode(sampler(row), 0, width, codec, scan.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, testID[:], result.Payload)
	assert.True(t, result.ErrorsCorrected)
}
