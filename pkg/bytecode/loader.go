package bytecode

import (
	"bytes"
	"fmt"

	"github.com/rs/zerolog"
)

// FunctionTable maps a DEF's name to the byte offset of the first
// instruction after its name field.
type FunctionTable map[string]int

// Program is the loaded, pre-scanned result handed to the interpreter:
// a read-only image plus the function table discovered by the
// pre-scan.
type Program struct {
	Image     []byte
	Functions FunctionTable
}

// Loader strips the optional file envelope and drives the function
// pre-scan.
type Loader struct {
	Log zerolog.Logger
}

// NewLoader returns a Loader that logs through log (zero value is a
// valid no-op logger).
func NewLoader(log zerolog.Logger) Loader {
	return Loader{Log: log}
}

// Load strips the envelope if present and scans the resulting image
// for DEF records, building the FunctionTable. It does not execute
// anything.
func (l Loader) Load(raw []byte) (*Program, error) {
	return l.load(l.stripEnvelope(raw))
}

// LoadBare skips envelope detection entirely and treats raw as the
// image verbatim, even if it happens to start with the "NYET" magic
// (the CLI's -n/--no-verify path).
func (l Loader) LoadBare(raw []byte) (*Program, error) {
	return l.load(raw)
}

func (l Loader) load(image []byte) (*Program, error) {
	functions, err := l.preScan(image)
	if err != nil {
		return nil, err
	}

	l.Log.Debug().
		Int("image_bytes", len(image)).
		Int("functions", len(functions)).
		Msg("bytecode: load complete")

	return &Program{Image: image, Functions: functions}, nil
}

// stripEnvelope removes the 5-byte "NYET"+version envelope when
// present; otherwise the buffer is used unchanged.
func (l Loader) stripEnvelope(raw []byte) []byte {
	if len(raw) >= 5 && bytes.Equal(raw[:4], Magic[:]) && raw[4] == Version {
		l.Log.Debug().Int("stripped_bytes", 5).Msg("bytecode: envelope stripped")
		return raw[5:]
	}
	return raw
}

// preScan walks the image from offset 0 collecting DEF records until
// the first non-DEF opcode at the top level.
func (l Loader) preScan(image []byte) (FunctionTable, error) {
	r := NewReader(image)
	functions := make(FunctionTable)
	pos := 0

	for pos < len(image) {
		opByte, err := r.ReadU8(pos)
		if err != nil {
			return nil, err
		}
		op := Op(opByte)
		if op != OpDEF {
			break
		}

		nameLen, err := r.ReadU32(pos + 1)
		if err != nil {
			return nil, err
		}
		name, err := r.ReadBytes(pos+5, int(nameLen))
		if err != nil {
			return nil, err
		}
		entry := pos + 5 + int(nameLen)

		if _, exists := functions[name]; exists {
			return nil, fmt.Errorf("%w: duplicate DEF %q", ErrMalformed, name)
		}
		functions[name] = entry

		pos, err = skipDefBody(r, entry)
		if err != nil {
			return nil, err
		}
	}

	return functions, nil
}

// skipDefBody advances past instructions starting at pos until it
// finds the next DEF (returned as-is, for the caller's loop to
// consume) or runs out of image.
func skipDefBody(r Reader, pos int) (int, error) {
	for pos < r.Len() {
		opByte, err := r.ReadU8(pos)
		if err != nil {
			return 0, err
		}
		if Op(opByte) == OpDEF {
			return pos, nil
		}
		next, err := skipInstruction(r, pos)
		if err != nil {
			return 0, err
		}
		pos = next
	}
	return pos, nil
}

// skipInstruction returns the offset of the byte following the
// instruction at pos. It reads only the operand-length-determining
// fields, never the bytecode's effect.
func skipInstruction(r Reader, pos int) (int, error) {
	opByte, err := r.ReadU8(pos)
	if err != nil {
		return 0, err
	}
	op := Op(opByte)
	pos++

	switch op {
	case OpNOP, OpPOP, OpHALT, OpPRINT, OpINPUT, OpADD, OpSUB, OpCMP, OpRET:
		return pos, nil

	case OpSTORE, OpLOAD, OpJMP, OpJZ, OpJNZ:
		if _, err := r.ReadU32(pos); err != nil {
			return 0, err
		}
		return pos + 4, nil

	case OpCALL, OpDEF:
		n, err := r.ReadU32(pos)
		if err != nil {
			return 0, err
		}
		end := pos + 4 + int(n)
		if err := checkRange(r, pos+4, int(n)); err != nil {
			return 0, err
		}
		return end, nil

	case OpPUSH:
		tagByte, err := r.ReadU8(pos)
		if err != nil {
			return 0, err
		}
		pos++
		switch Tag(tagByte) {
		case TagNull:
			return pos, nil
		case TagInt, TagDouble:
			if err := checkRange(r, pos, 8); err != nil {
				return 0, err
			}
			return pos + 8, nil
		case TagBool:
			if err := checkRange(r, pos, 1); err != nil {
				return 0, err
			}
			return pos + 1, nil
		case TagString:
			n, err := r.ReadU32(pos)
			if err != nil {
				return 0, err
			}
			if err := checkRange(r, pos+4, int(n)); err != nil {
				return 0, err
			}
			return pos + 4 + int(n), nil
		default:
			return 0, fmt.Errorf("%w: unknown PUSH type tag 0x%02x", ErrMalformed, tagByte)
		}

	default:
		return 0, fmt.Errorf("%w: unknown opcode 0x%02x during pre-scan", ErrMalformed, opByte)
	}
}

func checkRange(r Reader, pos, n int) error {
	if pos < 0 || n < 0 || pos+n > r.Len() {
		return fmt.Errorf("%w: field at offset %d length %d overruns image", ErrMalformed, pos, n)
	}
	return nil
}
