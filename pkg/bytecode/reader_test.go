package bytecode_test

import (
	"errors"
	"testing"

	"github.com/dotnyet/vm/pkg/bytecode"
)

func TestReaderPrimitives(t *testing.T) {
	image := []byte{
		0x2a,                   // u8
		0x01, 0x00, 0x00, 0x00, // u32 = 1
		0x05, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // i64 = 5
		'h', 'i',
	}
	r := bytecode.NewReader(image)

	u8, err := r.ReadU8(0)
	if err != nil || u8 != 0x2a {
		t.Fatalf("ReadU8 = %v, %v", u8, err)
	}
	u32, err := r.ReadU32(1)
	if err != nil || u32 != 1 {
		t.Fatalf("ReadU32 = %v, %v", u32, err)
	}
	i64, err := r.ReadI64(5)
	if err != nil || i64 != 5 {
		t.Fatalf("ReadI64 = %v, %v", i64, err)
	}
	s, err := r.ReadBytes(13, 2)
	if err != nil || s != "hi" {
		t.Fatalf("ReadBytes = %q, %v", s, err)
	}
}

func TestReaderOutOfRange(t *testing.T) {
	r := bytecode.NewReader([]byte{1, 2, 3})

	if _, err := r.ReadU32(0); !errors.Is(err, bytecode.ErrMalformed) {
		t.Errorf("ReadU32 overrun: err = %v, want ErrMalformed", err)
	}
	if _, err := r.ReadU8(3); !errors.Is(err, bytecode.ErrMalformed) {
		t.Errorf("ReadU8 past end: err = %v, want ErrMalformed", err)
	}
	if _, err := r.ReadBytes(1, 10); !errors.Is(err, bytecode.ErrMalformed) {
		t.Errorf("ReadBytes overrun: err = %v, want ErrMalformed", err)
	}
}
