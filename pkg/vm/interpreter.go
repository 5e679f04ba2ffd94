package vm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dotnyet/vm/pkg/bytecode"
	"github.com/dotnyet/vm/pkg/value"
)

// Interpreter is the dispatch loop over a loaded program image: an
// instruction pointer, an operand stack, a return-address stack, and
// a keyed memory map. Each instance exclusively owns its stacks,
// memory, and program image; it is not safe for concurrent use from
// multiple goroutines.
type Interpreter struct {
	reader    bytecode.Reader
	functions bytecode.FunctionTable

	ip      int
	operand *OperandStack
	ret     *ReturnStack
	memory  *Memory

	stdout io.Writer
	stdin  *bufio.Reader

	log zerolog.Logger
}

// Option configures an Interpreter at construction time.
type Option func(*Interpreter)

// WithLimits overrides the default resource bounds.
func WithLimits(l Limits) Option {
	return func(in *Interpreter) {
		in.operand = newOperandStack(l.MaxOperandStack)
		in.ret = newReturnStack(l.MaxReturnStack)
		in.memory = newMemory(l.MaxMemory)
	}
}

// WithStdout redirects PRINT's destination (default os.Stdout).
func WithStdout(w io.Writer) Option {
	return func(in *Interpreter) { in.stdout = w }
}

// WithStdin redirects INPUT's source (default os.Stdin).
func WithStdin(r io.Reader) Option {
	return func(in *Interpreter) { in.stdin = bufio.NewReader(r) }
}

// WithLogger sets the structured logger used for trap warnings and
// diagnostics (default: a disabled logger, i.e. silent).
func WithLogger(log zerolog.Logger) Option {
	return func(in *Interpreter) { in.log = log }
}

// New constructs an Interpreter over prog with the given options
// applied in order. Defaults match the recommended resource limits and
// the real stdin/stdout of the process.
func New(prog *bytecode.Program, opts ...Option) *Interpreter {
	limits := DefaultLimits()
	in := &Interpreter{
		reader:    bytecode.NewReader(prog.Image),
		functions: prog.Functions,
		operand:   newOperandStack(limits.MaxOperandStack),
		ret:       newReturnStack(limits.MaxReturnStack),
		memory:    newMemory(limits.MaxMemory),
		stdout:    os.Stdout,
		stdin:     bufio.NewReader(os.Stdin),
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// OperandStack exposes the operand stack for inspection (tests, CLI
// pre-seeding of the argv string).
func (in *Interpreter) OperandStack() *OperandStack { return in.operand }

// Memory exposes the memory map for inspection.
func (in *Interpreter) Memory() *Memory { return in.memory }

// Run requires a function named "main" in the function table
// (KindNoMain otherwise), pushes the program-end sentinel onto the
// return stack, and dispatches from main's entry until ip reaches the
// sentinel or HALT executes.
func (in *Interpreter) Run() error {
	entry, ok := in.functions["main"]
	if !ok {
		return in.fail(KindNoMain, 0, 0, nil, "no function named \"main\"")
	}

	if err := in.ret.Push(in.reader.Len()); err != nil {
		return in.fail(KindResourceLimit, 0, 0, err, "return stack: %v", err)
	}
	in.ip = entry

	for in.ip != in.reader.Len() {
		if err := in.step(); err != nil {
			return err
		}
	}
	return nil
}

// step fetches, decodes, and executes one instruction.
func (in *Interpreter) step() error {
	ip := in.ip
	opByte, err := in.reader.ReadU8(ip)
	if err != nil {
		return in.fail(KindMalformedBytecode, ip, 0, err, "%v", err)
	}
	op := bytecode.Op(opByte)
	in.ip++

	switch op {
	case bytecode.OpNOP:
		return nil

	case bytecode.OpPUSH:
		return in.execPush(ip)

	case bytecode.OpPOP:
		if _, err := in.operand.Pop(); err != nil {
			return in.fail(KindStackUnderflow, ip, opByte, err, "POP: %v", err)
		}
		return nil

	case bytecode.OpDEF:
		return in.skipDefHeader(ip)

	case bytecode.OpCALL:
		return in.execCall(ip, opByte)

	case bytecode.OpRET:
		target, err := in.ret.Pop()
		if err != nil {
			return in.fail(KindReturnUnderflow, ip, opByte, err, "RET: %v", err)
		}
		in.ip = target
		return nil

	case bytecode.OpSTORE:
		return in.execStore(ip, opByte)

	case bytecode.OpLOAD:
		return in.execLoad(ip, opByte)

	case bytecode.OpJMP:
		target, err := in.readJumpTarget(ip)
		if err != nil {
			return err
		}
		in.ip = target
		return nil

	case bytecode.OpJZ, bytecode.OpJNZ:
		return in.execConditionalJump(ip, op, opByte)

	case bytecode.OpHALT:
		in.ip = in.reader.Len()
		return nil

	case bytecode.OpPRINT:
		v, err := in.operand.Pop()
		if err != nil {
			return in.fail(KindStackUnderflow, ip, opByte, err, "PRINT: %v", err)
		}
		if _, err := io.WriteString(in.stdout, v.String()); err != nil {
			return in.fail(KindHostIOError, ip, opByte, err, "PRINT: %v", err)
		}
		return nil

	case bytecode.OpINPUT:
		return in.execInput(ip, opByte)

	case bytecode.OpADD:
		return in.execBinary(ip, opByte, value.Add)

	case bytecode.OpSUB:
		return in.execBinary(ip, opByte, value.Sub)

	case bytecode.OpCMP:
		return in.execBinary(ip, opByte, value.Eq)

	default:
		return in.fail(KindUnknownOpcode, ip, opByte, nil, "unknown opcode 0x%02x", opByte)
	}
}

func (in *Interpreter) execPush(ip int) error {
	tagByte, err := in.reader.ReadU8(in.ip)
	if err != nil {
		return in.fail(KindMalformedBytecode, ip, byte(bytecode.OpPUSH), err, "%v", err)
	}
	in.ip++

	var v value.Value
	switch bytecode.Tag(tagByte) {
	case bytecode.TagNull:
		v = value.NewNull()

	case bytecode.TagInt:
		i, err := in.reader.ReadI64(in.ip)
		if err != nil {
			return in.fail(KindMalformedBytecode, ip, byte(bytecode.OpPUSH), err, "%v", err)
		}
		in.ip += 8
		v = value.NewInt(i)

	case bytecode.TagDouble:
		f, err := in.reader.ReadF64(in.ip)
		if err != nil {
			return in.fail(KindMalformedBytecode, ip, byte(bytecode.OpPUSH), err, "%v", err)
		}
		in.ip += 8
		v = value.NewDouble(f)

	case bytecode.TagBool:
		b, err := in.reader.ReadU8(in.ip)
		if err != nil {
			return in.fail(KindMalformedBytecode, ip, byte(bytecode.OpPUSH), err, "%v", err)
		}
		in.ip++
		v = value.NewBool(b != 0)

	case bytecode.TagString:
		n, err := in.reader.ReadU32(in.ip)
		if err != nil {
			return in.fail(KindMalformedBytecode, ip, byte(bytecode.OpPUSH), err, "%v", err)
		}
		in.ip += 4
		s, err := in.reader.ReadBytes(in.ip, int(n))
		if err != nil {
			return in.fail(KindMalformedBytecode, ip, byte(bytecode.OpPUSH), err, "%v", err)
		}
		in.ip += int(n)
		v = value.NewString(s)

	default:
		return in.fail(KindUnknownTypeTag, ip, byte(bytecode.OpPUSH), nil, "unknown PUSH type tag 0x%02x", tagByte)
	}

	if err := in.operand.Push(v); err != nil {
		return in.fail(KindResourceLimit, ip, byte(bytecode.OpPUSH), err, "PUSH: %v", err)
	}
	return nil
}

// skipDefHeader advances past a DEF's name field. DEF is discovered by
// the pre-scan and has no effect when the dispatch loop reaches it.
func (in *Interpreter) skipDefHeader(ip int) error {
	n, err := in.reader.ReadU32(in.ip)
	if err != nil {
		return in.fail(KindMalformedBytecode, ip, byte(bytecode.OpDEF), err, "%v", err)
	}
	in.ip += 4 + int(n)
	return nil
}

func (in *Interpreter) execCall(ip int, opByte byte) error {
	n, err := in.reader.ReadU32(in.ip)
	if err != nil {
		return in.fail(KindMalformedBytecode, ip, opByte, err, "%v", err)
	}
	name, err := in.reader.ReadBytes(in.ip+4, int(n))
	if err != nil {
		return in.fail(KindMalformedBytecode, ip, opByte, err, "%v", err)
	}
	in.ip += 4 + int(n)

	target, ok := in.functions[name]
	if !ok {
		return in.fail(KindMalformedBytecode, ip, opByte, nil, "CALL to unknown function %q", name)
	}

	if err := in.ret.Push(in.ip); err != nil {
		return in.fail(KindResourceLimit, ip, opByte, err, "CALL: %v", err)
	}
	in.ip = target
	return nil
}

func (in *Interpreter) execStore(ip int, opByte byte) error {
	addr, err := in.reader.ReadU32(in.ip)
	if err != nil {
		return in.fail(KindMalformedBytecode, ip, opByte, err, "%v", err)
	}
	in.ip += 4

	v, err := in.operand.Pop()
	if err != nil {
		return in.fail(KindStackUnderflow, ip, opByte, err, "STORE: %v", err)
	}
	if err := in.memory.Store(addr, v); err != nil {
		return in.fail(KindResourceLimit, ip, opByte, err, "STORE: %v", err)
	}
	return nil
}

func (in *Interpreter) execLoad(ip int, opByte byte) error {
	addr, err := in.reader.ReadU32(in.ip)
	if err != nil {
		return in.fail(KindMalformedBytecode, ip, opByte, err, "%v", err)
	}
	in.ip += 4

	v, err := in.memory.Load(addr)
	if err != nil {
		return in.fail(KindUnmappedLoad, ip, opByte, err, "LOAD address 0x%08x: %v", addr, err)
	}
	if err := in.operand.Push(v); err != nil {
		return in.fail(KindResourceLimit, ip, opByte, err, "LOAD: %v", err)
	}
	return nil
}

func (in *Interpreter) readJumpTarget(ip int) (int, error) {
	target, err := in.reader.ReadU32(in.ip)
	if err != nil {
		return 0, in.fail(KindMalformedBytecode, ip, byte(bytecode.OpJMP), err, "%v", err)
	}
	in.ip += 4
	if int(target) < 0 || int(target) > in.reader.Len() {
		return 0, in.fail(KindBadJump, ip, byte(bytecode.OpJMP), nil, "jump target 0x%08x out of range [0, %d]", target, in.reader.Len())
	}
	return int(target), nil
}

func (in *Interpreter) execConditionalJump(ip int, op bytecode.Op, opByte byte) error {
	target, err := in.reader.ReadU32(in.ip)
	if err != nil {
		return in.fail(KindMalformedBytecode, ip, opByte, err, "%v", err)
	}
	in.ip += 4

	v, err := in.operand.Pop()
	if err != nil {
		return in.fail(KindStackUnderflow, ip, opByte, err, "%s: %v", op, err)
	}

	branch := (op == bytecode.OpJZ && !v.Truthy()) || (op == bytecode.OpJNZ && v.Truthy())
	if !branch {
		return nil
	}
	if int(target) < 0 || int(target) > in.reader.Len() {
		return in.fail(KindBadJump, ip, opByte, nil, "jump target 0x%08x out of range [0, %d]", target, in.reader.Len())
	}
	in.ip = int(target)
	return nil
}

func (in *Interpreter) execInput(ip int, opByte byte) error {
	line, err := in.stdin.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			line = ""
		} else {
			return in.fail(KindHostIOError, ip, opByte, err, "INPUT: %v", err)
		}
	}
	line = strings.TrimRight(line, "\r\n")
	if err := in.operand.Push(value.NewString(line)); err != nil {
		return in.fail(KindResourceLimit, ip, opByte, err, "INPUT: %v", err)
	}
	return nil
}

func (in *Interpreter) execBinary(ip int, opByte byte, f func(a, b value.Value) (value.Value, error)) error {
	b, err := in.operand.Pop()
	if err != nil {
		return in.fail(KindStackUnderflow, ip, opByte, err, "%v", err)
	}
	a, err := in.operand.Pop()
	if err != nil {
		return in.fail(KindStackUnderflow, ip, opByte, err, "%v", err)
	}
	result, err := f(a, b)
	if err != nil {
		return in.fail(KindTypeError, ip, opByte, err, "%v", err)
	}
	if err := in.operand.Push(result); err != nil {
		return in.fail(KindResourceLimit, ip, opByte, err, "%v", err)
	}
	return nil
}

// fail builds a *Trap, logs it at warn level, and returns it.
func (in *Interpreter) fail(kind Kind, ip int, opcode byte, cause error, format string, args ...any) error {
	t := newTrap(kind, ip, opcode, cause, format, args...)
	in.log.Warn().
		Str("kind", string(t.Kind)).
		Int("ip", t.IP).
		Str("opcode", fmt.Sprintf("0x%02x", t.Opcode)).
		Msg(t.Message)
	return t
}
