package bytecode_test

import (
	"errors"
	"testing"

	"github.com/dotnyet/vm/internal/testutil"
	"github.com/dotnyet/vm/pkg/bytecode"
)

func TestLoaderStripsEnvelope(t *testing.T) {
	bare := testutil.NewBuilder()
	bare.DEF("main").PushString("hi").PRINT().HALT()

	framed := testutil.NewBuilder()
	framed.DEF("main").PushString("hi").PRINT().HALT()
	framed.Envelope()

	l := bytecode.NewLoader(zerologNop())
	prog, err := l.Load(framed.Bytes())
	if err != nil {
		t.Fatalf("Load framed: %v", err)
	}
	if len(prog.Image) != len(bare.Bytes()) {
		t.Errorf("framed image length = %d, want %d (envelope not stripped)", len(prog.Image), len(bare.Bytes()))
	}
}

func TestLoaderBareImage(t *testing.T) {
	b := testutil.NewBuilder()
	b.DEF("main").PushInt(1).HALT()

	l := bytecode.NewLoader(zerologNop())
	prog, err := l.Load(b.Bytes())
	if err != nil {
		t.Fatalf("Load bare: %v", err)
	}
	if _, ok := prog.Functions["main"]; !ok {
		t.Errorf("expected main in function table")
	}
}

func TestLoaderFunctionTable(t *testing.T) {
	b := testutil.NewBuilder()
	b.DEF("helper")
	b.PushInt(1).RET()
	b.DEF("main")
	b.CALL("helper").HALT()

	l := bytecode.NewLoader(zerologNop())
	prog, err := l.Load(b.Bytes())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(prog.Functions) != 2 {
		t.Fatalf("expected 2 functions, got %d: %v", len(prog.Functions), prog.Functions)
	}
}

func TestLoaderDuplicateDEF(t *testing.T) {
	b := testutil.NewBuilder()
	b.DEF("main").HALT()
	b.DEF("main").HALT()

	l := bytecode.NewLoader(zerologNop())
	if _, err := l.Load(b.Bytes()); !errors.Is(err, bytecode.ErrMalformed) {
		t.Errorf("duplicate DEF: err = %v, want ErrMalformed", err)
	}
}

func TestLoaderTruncatedPushString(t *testing.T) {
	b := testutil.NewBuilder()
	b.DEF("main")
	// PUSH String with a length that overshoots the buffer.
	b.Raw(0x01, 0x04).Raw(0xFF, 0x00, 0x00, 0x00) // len = 255, no bytes follow

	l := bytecode.NewLoader(zerologNop())
	if _, err := l.Load(b.Bytes()); !errors.Is(err, bytecode.ErrMalformed) {
		t.Errorf("truncated PUSH string: err = %v, want ErrMalformed", err)
	}
}

func TestLoaderUnknownTypeTag(t *testing.T) {
	b := testutil.NewBuilder()
	b.DEF("main")
	b.Raw(0x01, 0x09) // PUSH with tag 0x09

	l := bytecode.NewLoader(zerologNop())
	if _, err := l.Load(b.Bytes()); !errors.Is(err, bytecode.ErrMalformed) {
		t.Errorf("unknown type tag: err = %v, want ErrMalformed", err)
	}
}

func TestLoaderEmptyImageHasNoMain(t *testing.T) {
	l := bytecode.NewLoader(zerologNop())
	prog, err := l.Load([]byte{})
	if err != nil {
		t.Fatalf("Load empty: %v", err)
	}
	if _, ok := prog.Functions["main"]; ok {
		t.Errorf("empty image should not define main")
	}
}
