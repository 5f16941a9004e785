package border

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/ericpauley/go-quantize/quantize"
	"github.com/google/uuid"

	"github.com/alexhaugland/uuid-border/frame"
	"github.com/alexhaugland/uuid-border/scan"
)

// DefaultStripHeight is how many pixel rows a rendered strip spans.
const DefaultStripHeight = 8

var errTooNarrow = errors.New("border: strip narrower than one pixel per symbol")

// RenderStrip paints a codeword symbol sequence into a strip of the
// requested size, one solid block of alphabet color per symbol.
func RenderStrip(symbols []int, width, height int) (*image.RGBA, error) {
	if width < len(symbols) {
		return nil, errTooNarrow
	}

	m := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		sym := symbols[x*len(symbols)/width]
		c := frame.Alphabet[sym]
		px := color.RGBA{uint8(c[0]), uint8(c[1]), uint8(c[2]), 0xff}
		for y := 0; y < height; y++ {
			m.SetRGBA(x, y, px)
		}
	}
	return m, nil
}

// EncodeStrip renders id as a standalone strip image of the given
// pixel size.
func (b *Border) EncodeStrip(id uuid.UUID, width, height int) (*image.RGBA, error) {
	symbols, err := b.codec.Encode(id[:])
	if err != nil {
		return nil, err
	}
	return RenderStrip(symbols, width, height)
}

// Stamp draws id as a border across the top rows of dst.
func (b *Border) Stamp(dst draw.Image, id uuid.UUID, height int) error {
	bounds := dst.Bounds()
	if height <= 0 || height > bounds.Dy() {
		return fmt.Errorf("border: strip height %d does not fit image", height)
	}

	strip, err := b.EncodeStrip(id, bounds.Dx(), height)
	if err != nil {
		return err
	}

	r := image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Min.Y+height)
	draw.Draw(dst, r, strip, image.Point{}, draw.Src)
	return nil
}

// rowSampler adapts one scan line of an image to the sampler contract.
// Coordinates are relative to the left edge of the image bounds.
func rowSampler(m image.Image, y int) scan.Sampler {
	bounds := m.Bounds()
	return func(x int) frame.Color {
		r, g, b, _ := m.At(bounds.Min.X+x, y).RGBA()
		return frame.Color{float64(r >> 8), float64(g >> 8), float64(b >> 8)}
	}
}

// maxScoredRows bounds how many candidate rows get scored on large
// images.
const maxScoredRows = 256

// DecodeImage recovers an identifier from an image containing a strip
// on some scan line. Candidate rows are scored by in-alphabet pixel
// count, the best row is decoded on its own, and if that attempt
// cannot be certified the adjacent rows vote on a second attempt.
func (b *Border) DecodeImage(m image.Image) (*Result, error) {
	bounds := m.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < b.codec.TotalSegments() || height < 1 {
		return nil, scan.ErrNoCode
	}

	step := height / maxScoredRows
	if step < 1 {
		step = 1
	}

	bestY, bestScore := -1, 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		if s := scan.ScoreRow(rowSampler(m, y), 0, width, b.cfg); s > bestScore {
			bestY, bestScore = y, s
		}
	}
	if bestY < 0 {
		return nil, scan.ErrNoCode
	}

	result, err := scan.Decode(rowSampler(m, bestY), 0, width, b.codec, b.cfg)
	if err != nil {
		// Retry with the neighbouring rows averaging into the vote.
		var rows []scan.Sampler
		representative := 0
		for y := bestY - 1; y <= bestY+1; y++ {
			if y < bounds.Min.Y || y >= bounds.Max.Y {
				continue
			}
			if y == bestY {
				representative = len(rows)
			}
			rows = append(rows, rowSampler(m, y))
		}

		voted, votedErr := scan.DecodeVoting(rows, representative, 0, width, b.codec, b.cfg)
		if votedErr != nil {
			if result == nil && voted != nil {
				result = voted
			}
			if result != nil && result.Raw != nil {
				raw, rawErr := uuid.FromBytes(result.Raw)
				if rawErr == nil {
					return nil, &UnverifiedError{Raw: raw}
				}
			}
			return nil, err
		}
		result = voted
	}

	id, err := uuid.FromBytes(result.Payload)
	if err != nil {
		return nil, err
	}

	return &Result{
		ID:               id,
		EndMarkerMatched: result.EndMarkerMatched,
		ErrorsCorrected:  result.ErrorsCorrected,
	}, nil
}

// Paletted quantizes an image down to a 256 color palette for formats
// that need one, such as GIF.
func Paletted(m image.Image) *image.Paletted {
	q := quantize.MedianCutQuantizer{}
	p := q.Quantize(make(color.Palette, 0, 256), m)

	pm := image.NewPaletted(m.Bounds(), p)
	draw.Draw(pm, m.Bounds(), m, m.Bounds().Min, draw.Src)
	return pm
}
