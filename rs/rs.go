/*
Package rs implements a systematic Reed-Solomon codec over GF(2^8).

A codec is constructed for a fixed payload length and parity count and
appends nsym parity bytes to each payload. Decoding corrects up to
nsym/2 corrupted bytes anywhere in the codeword and fails closed: it
reports ErrUncorrectable rather than ever guessing at a payload it
cannot certify.
*/
package rs

import (
	"errors"
	"fmt"
	"sync"
)

const (
	// The field's primitive polynomial, x^8 + x^4 + x^3 + x^2 + 1.
	primitivePoly = 0x11d

	fieldOrder = 255
)

var (
	// ErrUncorrectable is returned when a codeword holds more errors
	// than the parity can correct. Callers must treat it as "cannot
	// certify this payload", not "payload is unchanged".
	ErrUncorrectable = errors.New("rs: uncorrectable codeword")
)

var expTable, logTable = makeTables()

// makeTables builds the log/antilog tables for the field. The antilog
// table is doubled so products of two logs never need reducing mod 255.
func makeTables() ([512]byte, [256]byte) {
	var exp [512]byte
	var log [256]byte

	x := 1
	for i := 0; i < fieldOrder; i++ {
		exp[i] = byte(x)
		log[x] = byte(i)
		x <<= 1
		if x&0x100 != 0 {
			x ^= primitivePoly
		}
	}
	for i := fieldOrder; i < len(exp); i++ {
		exp[i] = exp[i-fieldOrder]
	}

	return exp, log
}

func mul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return expTable[int(logTable[a])+int(logTable[b])]
}

// inv returns the multiplicative inverse of a nonzero field element.
func inv(a byte) byte {
	return expTable[fieldOrder-int(logTable[a])]
}

// pow returns the field generator raised to n, n >= 0.
func pow(n int) byte {
	return expTable[n%fieldOrder]
}

// powNeg returns the field generator raised to -n, n >= 0.
func powNeg(n int) byte {
	return expTable[(fieldOrder-n%fieldOrder)%fieldOrder]
}

var (
	generatorMu    sync.Mutex
	generatorCache = map[int][]byte{}
)

// buildGenerator returns the generator polynomial for nsym parity
// bytes, the product of (x - g^i) for i = 0..nsym-1, with the most
// significant coefficient first. Polynomials are cached per nsym.
func buildGenerator(nsym int) []byte {
	generatorMu.Lock()
	defer generatorMu.Unlock()

	if g, ok := generatorCache[nsym]; ok {
		return g
	}

	g := []byte{1}
	for i := 0; i < nsym; i++ {
		root := pow(i)
		next := make([]byte, len(g)+1)
		for j, c := range g {
			next[j] ^= c
			next[j+1] ^= mul(c, root)
		}
		g = next
	}

	generatorCache[nsym] = g
	return g
}

// ParityBytes derives the parity count for a payload length and
// redundancy factor. Encode and decode sides must use the same
// derivation or decoding is guaranteed to fail. The result is clamped
// to an even value of at least two, since only nsym/2 errors are
// correctable and an odd parity byte buys nothing.
func ParityBytes(payloadLen int, redundancyFactor float64) int {
	nsym := int(float64(payloadLen) * redundancyFactor)
	if nsym < 2 {
		nsym = 2
	}
	return nsym &^ 1
}

// Codec encodes and decodes codewords of a fixed geometry. The payload
// and parity lengths are set at construction and never change. A Codec
// is safe for concurrent use.
type Codec struct {
	payloadLen int
	nsym       int
	generator  []byte
}

// New returns a codec producing codewords of payloadLen+nsym bytes.
func New(payloadLen, nsym int) (*Codec, error) {
	if payloadLen < 1 || nsym < 1 {
		return nil, fmt.Errorf("rs: invalid geometry %d+%d", payloadLen, nsym)
	}
	if payloadLen+nsym > fieldOrder {
		return nil, fmt.Errorf("rs: codeword length %d exceeds field order", payloadLen+nsym)
	}

	return &Codec{
		payloadLen: payloadLen,
		nsym:       nsym,
		generator:  buildGenerator(nsym),
	}, nil
}

// PayloadLen returns the fixed payload length in bytes.
func (c *Codec) PayloadLen() int { return c.payloadLen }

// ParityLen returns the fixed number of parity bytes.
func (c *Codec) ParityLen() int { return c.nsym }

// CodewordLen returns the total codeword length in bytes.
func (c *Codec) CodewordLen() int { return c.payloadLen + c.nsym }

// Encode appends nsym parity bytes to payload and returns the
// systematic codeword. The parity is the remainder of the payload
// polynomial times x^nsym divided by the generator polynomial.
func (c *Codec) Encode(payload []byte) ([]byte, error) {
	if len(payload) != c.payloadLen {
		return nil, fmt.Errorf("rs: payload is %d bytes, want %d", len(payload), c.payloadLen)
	}

	msg := make([]byte, c.payloadLen+c.nsym)
	copy(msg, payload)

	for i := 0; i < c.payloadLen; i++ {
		coef := msg[i]
		if coef == 0 {
			continue
		}
		for j := 1; j < len(c.generator); j++ {
			msg[i+j] ^= mul(c.generator[j], coef)
		}
	}

	copy(msg, payload)
	return msg, nil
}

// syndromes evaluates the received polynomial at each generator root.
// An all-zero result means no detectable error.
func (c *Codec) syndromes(msg []byte) []byte {
	syn := make([]byte, c.nsym)
	for i := range syn {
		root := pow(i)
		var s byte
		for _, b := range msg {
			s = mul(s, root) ^ b
		}
		syn[i] = s
	}
	return syn
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// errorLocator runs Berlekamp-Massey over the syndromes and returns the
// error locator polynomial with the least significant coefficient
// first, or ErrUncorrectable if its degree exceeds the correction
// bound.
func (c *Codec) errorLocator(syn []byte) ([]byte, error) {
	locator := []byte{1}
	prev := []byte{1}
	degree := 0
	shift := 1
	lastDiscrepancy := byte(1)

	for n := 0; n < c.nsym; n++ {
		d := syn[n]
		for i := 1; i <= degree && i < len(locator); i++ {
			d ^= mul(locator[i], syn[n-i])
		}

		switch {
		case d == 0:
			shift++
		case 2*degree <= n:
			saved := append([]byte(nil), locator...)
			coef := mul(d, inv(lastDiscrepancy))
			for len(locator) < len(prev)+shift {
				locator = append(locator, 0)
			}
			for i := range prev {
				locator[i+shift] ^= mul(coef, prev[i])
			}
			degree = n + 1 - degree
			prev = saved
			lastDiscrepancy = d
			shift = 1
		default:
			coef := mul(d, inv(lastDiscrepancy))
			for len(locator) < len(prev)+shift {
				locator = append(locator, 0)
			}
			for i := range prev {
				locator[i+shift] ^= mul(coef, prev[i])
			}
			shift++
		}
	}

	for len(locator) > 1 && locator[len(locator)-1] == 0 {
		locator = locator[:len(locator)-1]
	}

	if len(locator)-1 != degree || 2*degree > c.nsym {
		return nil, ErrUncorrectable
	}
	return locator, nil
}

// evalAt evaluates a least-significant-first polynomial at x.
func evalAt(poly []byte, x byte) byte {
	var v byte
	for i := len(poly) - 1; i >= 0; i-- {
		v = mul(v, x) ^ poly[i]
	}
	return v
}

// findErrors runs a Chien search over every codeword position and
// returns the degrees at which errors sit. The root count must agree
// with the locator degree or the codeword is uncorrectable.
func (c *Codec) findErrors(locator []byte) ([]int, error) {
	n := c.payloadLen + c.nsym
	var degrees []int
	for j := 0; j < n; j++ {
		if evalAt(locator, powNeg(j)) == 0 {
			degrees = append(degrees, j)
		}
	}
	if len(degrees) != len(locator)-1 {
		return nil, ErrUncorrectable
	}
	return degrees, nil
}

// Decode corrects received in place if possible and returns the
// payload prefix along with the number of byte positions corrected.
// It never returns a payload reflecting more corrections than the
// parity certifies; any inconsistency yields ErrUncorrectable.
func (c *Codec) Decode(received []byte) ([]byte, int, error) {
	if len(received) != c.payloadLen+c.nsym {
		return nil, 0, fmt.Errorf("rs: codeword is %d bytes, want %d", len(received), c.payloadLen+c.nsym)
	}

	syn := c.syndromes(received)
	if allZero(syn) {
		return received[:c.payloadLen], 0, nil
	}

	locator, err := c.errorLocator(syn)
	if err != nil {
		return nil, 0, err
	}

	degrees, err := c.findErrors(locator)
	if err != nil {
		return nil, 0, err
	}

	// Error evaluator, syn*locator mod x^nsym.
	evaluator := make([]byte, c.nsym)
	for i, s := range syn {
		for j, l := range locator {
			if i+j < c.nsym {
				evaluator[i+j] ^= mul(s, l)
			}
		}
	}

	// Forney's formula at each located position.
	n := c.payloadLen + c.nsym
	for _, j := range degrees {
		xInv := powNeg(j)

		numerator := evalAt(evaluator, xInv)

		// Formal derivative of the locator: in GF(2^8) only the
		// odd-degree terms survive.
		var denominator byte
		for i := 1; i < len(locator); i += 2 {
			t := locator[i]
			for k := 0; k < i-1; k++ {
				t = mul(t, xInv)
			}
			denominator ^= t
		}
		if denominator == 0 {
			return nil, 0, ErrUncorrectable
		}

		magnitude := mul(pow(j), mul(numerator, inv(denominator)))
		received[n-1-j] ^= magnitude
	}

	if !allZero(c.syndromes(received)) {
		return nil, 0, ErrUncorrectable
	}

	return received[:c.payloadLen], len(degrees), nil
}
