// Package testutil provides a small byte-builder for hand-assembling
// .NYET bytecode images in tests, mirroring the wire format pinned in
// pkg/bytecode byte-for-byte. It is test infrastructure, not a
// compiler or assembler: there is no notion of labels, variables, or
// source syntax, only raw opcode/operand emission.
package testutil

import (
	"encoding/binary"
	"math"
)

// Builder accumulates raw bytecode bytes.
type Builder struct {
	buf []byte
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// Bytes returns the accumulated image.
func (b *Builder) Bytes() []byte { return b.buf }

// Len returns the current offset, useful for recording jump targets.
func (b *Builder) Len() int { return len(b.buf) }

func (b *Builder) u8(v byte) *Builder {
	b.buf = append(b.buf, v)
	return b
}

func (b *Builder) u32(v uint32) *Builder {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
	return b
}

func (b *Builder) i64(v int64) *Builder {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	b.buf = append(b.buf, tmp[:]...)
	return b
}

func (b *Builder) f64(v float64) *Builder {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	b.buf = append(b.buf, tmp[:]...)
	return b
}

func (b *Builder) str(s string) *Builder {
	b.u32(uint32(len(s)))
	b.buf = append(b.buf, []byte(s)...)
	return b
}

// Envelope prepends "NYET" + version 0x01.
func (b *Builder) Envelope() *Builder {
	prefix := append([]byte("NYET"), 0x01)
	b.buf = append(prefix, b.buf...)
	return b
}

func (b *Builder) NOP() *Builder   { return b.u8(0x00) }
func (b *Builder) POP() *Builder   { return b.u8(0x02) }
func (b *Builder) CMP() *Builder   { return b.u8(0x03) }
func (b *Builder) RET() *Builder   { return b.u8(0x12) }
func (b *Builder) HALT() *Builder  { return b.u8(0x40) }
func (b *Builder) PRINT() *Builder { return b.u8(0x50) }
func (b *Builder) INPUT() *Builder { return b.u8(0x51) }
func (b *Builder) ADD() *Builder   { return b.u8(0x60) }
func (b *Builder) SUB() *Builder   { return b.u8(0x61) }

func (b *Builder) DEF(name string) *Builder {
	return b.u8(0x10).str(name)
}

func (b *Builder) CALL(name string) *Builder {
	return b.u8(0x11).str(name)
}

func (b *Builder) STORE(addr uint32) *Builder {
	return b.u8(0x20).u32(addr)
}

func (b *Builder) LOAD(addr uint32) *Builder {
	return b.u8(0x21).u32(addr)
}

func (b *Builder) JMP(target uint32) *Builder {
	return b.u8(0x30).u32(target)
}

func (b *Builder) JZ(target uint32) *Builder {
	return b.u8(0x31).u32(target)
}

func (b *Builder) JNZ(target uint32) *Builder {
	return b.u8(0x32).u32(target)
}

func (b *Builder) PushNull() *Builder {
	return b.u8(0x01).u8(0)
}

func (b *Builder) PushInt(v int64) *Builder {
	return b.u8(0x01).u8(1).i64(v)
}

func (b *Builder) PushDouble(v float64) *Builder {
	return b.u8(0x01).u8(2).f64(v)
}

func (b *Builder) PushBool(v bool) *Builder {
	var bv byte
	if v {
		bv = 1
	}
	return b.u8(0x01).u8(3).u8(bv)
}

func (b *Builder) PushString(s string) *Builder {
	return b.u8(0x01).u8(4).str(s)
}

// Raw appends arbitrary bytes verbatim, for negative tests that need
// to hand-craft malformed fields.
func (b *Builder) Raw(bytes ...byte) *Builder {
	b.buf = append(b.buf, bytes...)
	return b
}
