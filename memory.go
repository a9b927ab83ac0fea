package webshell

import (
	"encoding/binary"

	"github.com/tetratelabs/wazero/api"

	"github.com/mizchi/web-shell/errors"
)

// Memory represents guest linear memory.
//
// Read returns a view of the underlying bytes, not a copy; callers that keep
// the data past the current call must copy it. Every accessor fails with an
// errors.KindOutOfBounds error when the range is not inside memory.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// ByteMemory is a Memory backed by a plain byte slice. Little endian, like
// WebAssembly memory.
type ByteMemory struct {
	buf []byte
}

// NewByteMemory allocates a zeroed memory of size bytes.
func NewByteMemory(size uint32) *ByteMemory {
	return &ByteMemory{buf: make([]byte, size)}
}

// Bytes exposes the backing slice.
func (m *ByteMemory) Bytes() []byte { return m.buf }

// Size implements MemorySizer.
func (m *ByteMemory) Size() uint32 { return uint32(len(m.buf)) }

func (m *ByteMemory) span(phase errors.Phase, offset uint32, length uint64) ([]byte, error) {
	end := uint64(offset) + length
	if end > uint64(len(m.buf)) {
		return nil, errors.MemoryFault(phase, offset, length, uint64(len(m.buf)))
	}
	return m.buf[offset:end], nil
}

func (m *ByteMemory) Read(offset uint32, length uint32) ([]byte, error) {
	return m.span(errors.PhaseDecode, offset, uint64(length))
}

func (m *ByteMemory) Write(offset uint32, data []byte) error {
	b, err := m.span(errors.PhaseEncode, offset, uint64(len(data)))
	if err != nil {
		return err
	}
	copy(b, data)
	return nil
}

func (m *ByteMemory) ReadU8(offset uint32) (uint8, error) {
	b, err := m.span(errors.PhaseDecode, offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (m *ByteMemory) ReadU16(offset uint32) (uint16, error) {
	b, err := m.span(errors.PhaseDecode, offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (m *ByteMemory) ReadU32(offset uint32) (uint32, error) {
	b, err := m.span(errors.PhaseDecode, offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (m *ByteMemory) ReadU64(offset uint32) (uint64, error) {
	b, err := m.span(errors.PhaseDecode, offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (m *ByteMemory) WriteU8(offset uint32, value uint8) error {
	b, err := m.span(errors.PhaseEncode, offset, 1)
	if err != nil {
		return err
	}
	b[0] = value
	return nil
}

func (m *ByteMemory) WriteU16(offset uint32, value uint16) error {
	b, err := m.span(errors.PhaseEncode, offset, 2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b, value)
	return nil
}

func (m *ByteMemory) WriteU32(offset uint32, value uint32) error {
	b, err := m.span(errors.PhaseEncode, offset, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, value)
	return nil
}

func (m *ByteMemory) WriteU64(offset uint32, value uint64) error {
	b, err := m.span(errors.PhaseEncode, offset, 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b, value)
	return nil
}

// WazeroMemory wraps wazero memory to implement Memory
type WazeroMemory struct {
	mem api.Memory
}

// WrapMemory adapts a guest module's exported memory.
func WrapMemory(mem api.Memory) *WazeroMemory {
	return &WazeroMemory{mem: mem}
}

// Size implements MemorySizer.
func (m *WazeroMemory) Size() uint32 { return m.mem.Size() }

func (m *WazeroMemory) fault(phase errors.Phase, offset uint32, length uint64) error {
	return errors.MemoryFault(phase, offset, length, uint64(m.mem.Size()))
}

func (m *WazeroMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, m.fault(errors.PhaseDecode, offset, uint64(length))
	}
	return data, nil
}

func (m *WazeroMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return m.fault(errors.PhaseEncode, offset, uint64(len(data)))
	}
	return nil
}

func (m *WazeroMemory) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, m.fault(errors.PhaseDecode, offset, 1)
	}
	return v, nil
}

func (m *WazeroMemory) ReadU16(offset uint32) (uint16, error) {
	v, ok := m.mem.ReadUint16Le(offset)
	if !ok {
		return 0, m.fault(errors.PhaseDecode, offset, 2)
	}
	return v, nil
}

func (m *WazeroMemory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, m.fault(errors.PhaseDecode, offset, 4)
	}
	return v, nil
}

func (m *WazeroMemory) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, m.fault(errors.PhaseDecode, offset, 8)
	}
	return v, nil
}

func (m *WazeroMemory) WriteU8(offset uint32, value uint8) error {
	if !m.mem.WriteByte(offset, value) {
		return m.fault(errors.PhaseEncode, offset, 1)
	}
	return nil
}

func (m *WazeroMemory) WriteU16(offset uint32, value uint16) error {
	if !m.mem.WriteUint16Le(offset, value) {
		return m.fault(errors.PhaseEncode, offset, 2)
	}
	return nil
}

func (m *WazeroMemory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return m.fault(errors.PhaseEncode, offset, 4)
	}
	return nil
}

func (m *WazeroMemory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return m.fault(errors.PhaseEncode, offset, 8)
	}
	return nil
}
