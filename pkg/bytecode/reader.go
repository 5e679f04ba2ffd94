package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrMalformed signals a read past the end of the image, or any other
// structurally invalid encoding.
var ErrMalformed = errors.New("bytecode: malformed")

// Reader provides bounds-checked little-endian decoding primitives
// over a read-only image. It never panics; every accessor returns an
// error wrapping ErrMalformed on out-of-range access.
type Reader struct {
	Image []byte
}

// NewReader wraps image for bounds-checked decoding.
func NewReader(image []byte) Reader {
	return Reader{Image: image}
}

func (r Reader) need(pos, n int) error {
	if pos < 0 || n < 0 || pos+n > len(r.Image) {
		return fmt.Errorf("%w: read of %d bytes at offset %d overruns image of length %d", ErrMalformed, n, pos, len(r.Image))
	}
	return nil
}

// ReadU8 reads one byte at pos.
func (r Reader) ReadU8(pos int) (byte, error) {
	if err := r.need(pos, 1); err != nil {
		return 0, err
	}
	return r.Image[pos], nil
}

// ReadU32 reads a little-endian uint32 at pos.
func (r Reader) ReadU32(pos int) (uint32, error) {
	if err := r.need(pos, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(r.Image[pos : pos+4]), nil
}

// ReadI64 reads a little-endian two's-complement int64 at pos.
func (r Reader) ReadI64(pos int) (int64, error) {
	if err := r.need(pos, 8); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(r.Image[pos : pos+8])), nil
}

// ReadF64 reads a little-endian IEEE-754 binary64 at pos.
func (r Reader) ReadF64(pos int) (float64, error) {
	if err := r.need(pos, 8); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(r.Image[pos : pos+8])), nil
}

// ReadBytes reads length bytes at pos and returns them as a UTF-8
// string; well-formedness is not separately validated.
func (r Reader) ReadBytes(pos, length int) (string, error) {
	if err := r.need(pos, length); err != nil {
		return "", err
	}
	return string(r.Image[pos : pos+length]), nil
}

// Len returns the image length, the sentinel value for the return
// stack and the halting condition for ip.
func (r Reader) Len() int {
	return len(r.Image)
}
