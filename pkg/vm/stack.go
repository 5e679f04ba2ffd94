package vm

import "github.com/dotnyet/vm/pkg/value"

// OperandStack is a LIFO of value.Value with no fixed capacity beyond
// the configured resource Limit; growth is amortized.
type OperandStack struct {
	items []value.Value
	limit int
}

func newOperandStack(limit int) *OperandStack {
	return &OperandStack{limit: limit}
}

// Size returns the number of values currently on the stack.
func (s *OperandStack) Size() int { return len(s.items) }

// Push appends v. It returns an error (never panics) if the configured
// limit would be exceeded.
func (s *OperandStack) Push(v value.Value) error {
	if s.limit > 0 && len(s.items) >= s.limit {
		return errResourceLimit
	}
	s.items = append(s.items, v)
	return nil
}

// Pop removes and returns the top value, or errStackUnderflow if empty.
func (s *OperandStack) Pop() (value.Value, error) {
	if len(s.items) == 0 {
		return value.Value{}, errStackUnderflow
	}
	v := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return v, nil
}

// Peek returns the value at depth from the top (0 = top) without
// removing it, or errStackUnderflow if depth >= size.
func (s *OperandStack) Peek(depth int) (value.Value, error) {
	if depth < 0 || depth >= len(s.items) {
		return value.Value{}, errStackUnderflow
	}
	return s.items[len(s.items)-1-depth], nil
}

// ReturnStack is a LIFO of instruction-pointer offsets used by
// CALL/RET. Its sentinel "program end" entry equals the image length.
type ReturnStack struct {
	offsets []int
	limit   int
}

func newReturnStack(limit int) *ReturnStack {
	return &ReturnStack{limit: limit}
}

// Size returns the number of saved offsets.
func (s *ReturnStack) Size() int { return len(s.offsets) }

// Push saves ip, or errResourceLimit if the configured depth limit
// would be exceeded.
func (s *ReturnStack) Push(ip int) error {
	if s.limit > 0 && len(s.offsets) >= s.limit {
		return errResourceLimit
	}
	s.offsets = append(s.offsets, ip)
	return nil
}

// Pop removes and returns the most recently saved offset, or
// errReturnUnderflow if empty.
func (s *ReturnStack) Pop() (int, error) {
	if len(s.offsets) == 0 {
		return 0, errReturnUnderflow
	}
	ip := s.offsets[len(s.offsets)-1]
	s.offsets = s.offsets[:len(s.offsets)-1]
	return ip, nil
}

// Memory is the finite u32-address to value.Value mapping. STORE
// overwrites; LOAD of an unmapped address traps.
type Memory struct {
	cells map[uint32]value.Value
	limit int
}

func newMemory(limit int) *Memory {
	return &Memory{cells: make(map[uint32]value.Value), limit: limit}
}

// Size returns the number of mapped addresses.
func (m *Memory) Size() int { return len(m.cells) }

// Store assigns memory[addr] := v, overwriting any prior value. A
// brand-new address beyond the configured limit is rejected with
// errResourceLimit; overwriting an existing address never is.
func (m *Memory) Store(addr uint32, v value.Value) error {
	if _, exists := m.cells[addr]; !exists && m.limit > 0 && len(m.cells) >= m.limit {
		return errResourceLimit
	}
	m.cells[addr] = v
	return nil
}

// Load returns memory[addr], or errUnmappedLoad if addr was never
// stored to.
func (m *Memory) Load(addr uint32) (value.Value, error) {
	v, ok := m.cells[addr]
	if !ok {
		return value.Value{}, errUnmappedLoad
	}
	return v, nil
}
