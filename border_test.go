package border_test

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	border "github.com/alexhaugland/uuid-border"
)

var testID = uuid.MustParse("12345678-1234-4234-8234-123456789abc")

func testBorder(t *testing.T) *border.Border {
	t.Helper()
	b, err := border.New(nil, log.New(ioutil.Discard, "", 0))
	require.NoError(t, err)
	return b
}

func TestEncodeDecodeStrip(t *testing.T) {
	b := testBorder(t)

	for _, width := range []int{420, 592, 1000} {
		strip, err := b.EncodeStrip(testID, width, 8)
		require.NoError(t, err)
		assert.Equal(t, width, strip.Bounds().Dx())

		result, err := b.DecodeImage(strip)
		require.NoError(t, err, "width=%d", width)
		assert.Equal(t, testID, result.ID)
		assert.True(t, result.EndMarkerMatched)
		assert.False(t, result.ErrorsCorrected)
	}
}

func TestEncodeStripTooNarrow(t *testing.T) {
	b := testBorder(t)
	_, err := b.EncodeStrip(testID, 100, 8)
	assert.Error(t, err)
}

// background fills an image with colors far from the strip alphabet.
func background(width, height int) *image.RGBA {
	m := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			m.SetRGBA(x, y, color.RGBA{uint8(x), 0xff, 0x40, 0xff})
		}
	}
	return m
}

func TestStampAndDecode(t *testing.T) {
	b := testBorder(t)

	m := background(640, 480)
	require.NoError(t, b.Stamp(m, testID, 10))

	result, err := b.DecodeImage(m)
	require.NoError(t, err)
	assert.Equal(t, testID, result.ID)
}

func TestStampBadHeight(t *testing.T) {
	b := testBorder(t)
	m := background(640, 480)
	assert.Error(t, b.Stamp(m, testID, 0))
	assert.Error(t, b.Stamp(m, testID, 481))
}

func TestDecodePaletted(t *testing.T) {
	b := testBorder(t)

	strip, err := b.EncodeStrip(testID, 592, 8)
	require.NoError(t, err)

	result, err := b.DecodeImage(border.Paletted(strip))
	require.NoError(t, err)
	assert.Equal(t, testID, result.ID)
}

func TestDecodeNoCode(t *testing.T) {
	b := testBorder(t)

	_, err := b.DecodeImage(background(640, 100))
	assert.Error(t, err)
}

func TestRedundancyMismatch(t *testing.T) {
	logger := log.New(ioutil.Discard, "", 0)

	encSide, err := border.NewWithRedundancy(nil, logger, 1.0)
	require.NoError(t, err)
	decSide, err := border.NewWithRedundancy(nil, logger, 0.5)
	require.NoError(t, err)

	strip, err := encSide.EncodeStrip(testID, 592, 8)
	require.NoError(t, err)

	_, err = decSide.DecodeImage(strip)
	assert.Error(t, err, "mismatched redundancy must not certify a payload")
}

func TestUnverifiedReading(t *testing.T) {
	b := testBorder(t)

	strip, err := b.EncodeStrip(testID, 592, 8)
	require.NoError(t, err)

	// Trash ten bytes' worth of data segments, past the correction
	// bound, while leaving START and INDEX alone.
	unit := 592 / b.TotalSegments()
	start := (6 + 8 + 20) * unit
	grey := color.RGBA{123, 123, 143, 0xff}
	for x := start; x < start+40*unit; x++ {
		for y := 0; y < 8; y++ {
			strip.SetRGBA(x, y, grey)
		}
	}

	_, err = b.DecodeImage(strip)
	require.Error(t, err)

	var unverified *border.UnverifiedError
	if assert.True(t, errors.As(err, &unverified)) {
		assert.NotEqual(t, testID, unverified.Raw)
	}
}

func TestRegistry(t *testing.T) {
	registry, err := border.OpenRegistry(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	defer registry.Close()

	label, err := registry.Lookup(testID)
	require.NoError(t, err)
	assert.Empty(t, label)

	require.NoError(t, registry.Tag(testID, "staging screenshot"))

	label, err = registry.Lookup(testID)
	require.NoError(t, err)
	assert.Equal(t, "staging screenshot", label)

	// Re-tagging replaces the label.
	require.NoError(t, registry.Tag(testID, "production screenshot"))
	label, err = registry.Lookup(testID)
	require.NoError(t, err)
	assert.Equal(t, "production screenshot", label)

	entries, err := registry.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, testID, entries[0].ID)
	assert.Equal(t, "production screenshot", entries[0].Label)
}

func writePNG(t *testing.T, file string, m image.Image) {
	t.Helper()
	f, err := os.Create(file)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, m))
}

func TestScan(t *testing.T) {
	dir := t.TempDir()

	registry, err := border.OpenRegistry(filepath.Join(dir, "registry.db"))
	require.NoError(t, err)
	defer registry.Close()
	require.NoError(t, registry.Tag(testID, "tagged"))

	b, err := border.New(registry, log.New(ioutil.Discard, "", 0))
	require.NoError(t, err)

	stamped := background(640, 120)
	require.NoError(t, b.Stamp(stamped, testID, 8))
	writePNG(t, filepath.Join(dir, "stamped.png"), stamped)
	writePNG(t, filepath.Join(dir, "plain.png"), background(640, 120))

	matches, err := b.Scan(dir)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, filepath.Join(dir, "stamped.png"), matches[0].Path)
	assert.Equal(t, testID, matches[0].Match.ID)
	assert.Equal(t, "tagged", matches[0].Label)
}
