package preview1

import (
	"fmt"

	webshell "github.com/mizchi/web-shell"
	"github.com/mizchi/web-shell/errors"
)

// field is one scalar of a fixed-layout record.
type field struct {
	name   string
	offset uint32
	width  uint32 // 1, 2, 4 or 8 bytes
}

// shape is the layout of a record in guest memory. Fields are listed in
// declaration order; padding between them is zero on encode.
type shape struct {
	name   string
	fields []field
	size   uint32
}

var (
	prestatShape = shape{name: "prestat", size: 8, fields: []field{
		{"tag", 0, 1},
		{"name_len", 4, 4},
	}}
	iovecShape = shape{name: "iovec", size: 8, fields: []field{
		{"buf", 0, 4},
		{"buf_len", 4, 4},
	}}
	fdstatShape = shape{name: "fdstat", size: 24, fields: []field{
		{"fs_filetype", 0, 1},
		{"fs_flags", 2, 2},
		{"fs_rights_base", 8, 8},
		{"fs_rights_inheriting", 16, 8},
	}}
	direntShape = shape{name: "dirent", size: 24, fields: []field{
		{"d_next", 0, 8},
		{"d_ino", 8, 8},
		{"d_namlen", 16, 4},
		{"d_type", 20, 1},
	}}
	filestatShape = shape{name: "filestat", size: 64, fields: []field{
		{"dev", 0, 8},
		{"ino", 8, 8},
		{"filetype", 16, 1},
		{"nlink", 24, 8},
		{"size", 32, 8},
		{"atim", 40, 8},
		{"mtim", 48, 8},
		{"ctim", 56, 8},
	}}
	// subscriptionShape covers the header; the union payload starts at 16
	// and is sized for the largest variant (clock).
	subscriptionShape = shape{name: "subscription", size: 48, fields: []field{
		{"userdata", 0, 8},
		{"tag", 8, 1},
	}}
	subclockShape = shape{name: "subscription_clock", size: 32, fields: []field{
		{"id", 0, 4},
		{"timeout", 8, 8},
		{"precision", 16, 8},
		{"flags", 24, 2},
	}}
	subFDShape = shape{name: "subscription_fd_readwrite", size: 4, fields: []field{
		{"file_descriptor", 0, 4},
	}}
	eventShape = shape{name: "event", size: 32, fields: []field{
		{"userdata", 0, 8},
		{"error", 8, 2},
		{"type", 10, 1},
		{"nbytes", 16, 8},
		{"flags", 24, 2},
	}}
)

const subscriptionUnionOffset = 16

// encode zeroes the record at ptr and stores values in field order.
func (s *shape) encode(mem webshell.Memory, ptr uint32, values ...uint64) error {
	if len(values) != len(s.fields) {
		panic(fmt.Sprintf("preview1: %s takes %d fields, got %d", s.name, len(s.fields), len(values)))
	}
	if err := mem.Write(ptr, make([]byte, s.size)); err != nil {
		return errors.New(errors.PhaseEncode, errors.KindOutOfBounds).
			Type(s.name).
			Detail("record at %d", ptr).
			Cause(err).
			Build()
	}
	for i, f := range s.fields {
		if err := writeScalar(mem, ptr+f.offset, f.width, values[i]); err != nil {
			return errors.New(errors.PhaseEncode, errors.KindOutOfBounds).
				Path(s.name, f.name).
				Cause(err).
				Build()
		}
	}
	return nil
}

// decode loads the record at ptr and returns its fields in order.
func (s *shape) decode(mem webshell.Memory, ptr uint32) ([]uint64, error) {
	if _, err := mem.Read(ptr, s.size); err != nil {
		return nil, errors.New(errors.PhaseDecode, errors.KindOutOfBounds).
			Type(s.name).
			Detail("record at %d", ptr).
			Cause(err).
			Build()
	}
	out := make([]uint64, len(s.fields))
	for i, f := range s.fields {
		v, err := readScalar(mem, ptr+f.offset, f.width)
		if err != nil {
			return nil, errors.New(errors.PhaseDecode, errors.KindOutOfBounds).
				Path(s.name, f.name).
				Cause(err).
				Build()
		}
		out[i] = v
	}
	return out, nil
}

func writeScalar(mem webshell.Memory, ptr, width uint32, v uint64) error {
	switch width {
	case 1:
		return mem.WriteU8(ptr, uint8(v))
	case 2:
		return mem.WriteU16(ptr, uint16(v))
	case 4:
		return mem.WriteU32(ptr, uint32(v))
	}
	return mem.WriteU64(ptr, v)
}

func readScalar(mem webshell.Memory, ptr, width uint32) (uint64, error) {
	switch width {
	case 1:
		v, err := mem.ReadU8(ptr)
		return uint64(v), err
	case 2:
		v, err := mem.ReadU16(ptr)
		return uint64(v), err
	case 4:
		v, err := mem.ReadU32(ptr)
		return uint64(v), err
	}
	return mem.ReadU64(ptr)
}

// Prestat describes a preopened directory. Tag is always the directory
// variant.
type Prestat struct {
	Tag     uint8
	NameLen uint32
}

// IOVec is one buffer of a scatter/gather list.
type IOVec struct {
	Buf uint32
	Len uint32
}

// Fdstat is the result of fd_fdstat_get.
type Fdstat struct {
	FileType         FileType
	Flags            FDFlags
	RightsBase       uint64
	RightsInheriting uint64
}

// Dirent is the header written before each name by fd_readdir.
type Dirent struct {
	Next    uint64
	Ino     uint64
	NameLen uint32
	Type    FileType
}

// Filestat is the result of fd_filestat_get and path_filestat_get.
// Timestamps are nanoseconds since the Unix epoch.
type Filestat struct {
	Dev      uint64
	Ino      uint64
	FileType FileType
	Nlink    uint64
	Size     uint64
	Atim     uint64
	Mtim     uint64
	Ctim     uint64
}

// SubscriptionClock is the clock variant of a subscription.
type SubscriptionClock struct {
	ID        ClockID
	Timeout   uint64
	Precision uint64
	Flags     SubclockFlags
}

// Subscription is one entry of poll_oneoff's input. Clock is set for
// EventTypeClock and FD for the readiness variants; an unknown tag leaves
// both zero.
type Subscription struct {
	Userdata uint64
	Type     EventType
	Clock    SubscriptionClock
	FD       uint32
}

// Event is one entry of poll_oneoff's output.
type Event struct {
	Userdata uint64
	Errno    Errno
	Type     EventType
	NBytes   uint64
	Flags    uint16
}

// Record sizes in guest memory.
const (
	PrestatSize      = 8
	IOVecSize        = 8
	FdstatSize       = 24
	DirentSize       = 24
	FilestatSize     = 64
	SubscriptionSize = 48
	EventSize        = 32
)

func EncodePrestat(mem webshell.Memory, ptr uint32, v Prestat) error {
	return prestatShape.encode(mem, ptr, uint64(v.Tag), uint64(v.NameLen))
}

func DecodeIOVec(mem webshell.Memory, ptr uint32) (IOVec, error) {
	f, err := iovecShape.decode(mem, ptr)
	if err != nil {
		return IOVec{}, err
	}
	return IOVec{Buf: uint32(f[0]), Len: uint32(f[1])}, nil
}

func EncodeIOVec(mem webshell.Memory, ptr uint32, v IOVec) error {
	return iovecShape.encode(mem, ptr, uint64(v.Buf), uint64(v.Len))
}

func EncodeFdstat(mem webshell.Memory, ptr uint32, v Fdstat) error {
	return fdstatShape.encode(mem, ptr,
		uint64(v.FileType), uint64(v.Flags), v.RightsBase, v.RightsInheriting)
}

func DecodeFdstat(mem webshell.Memory, ptr uint32) (Fdstat, error) {
	f, err := fdstatShape.decode(mem, ptr)
	if err != nil {
		return Fdstat{}, err
	}
	return Fdstat{
		FileType:         FileType(f[0]),
		Flags:            FDFlags(f[1]),
		RightsBase:       f[2],
		RightsInheriting: f[3],
	}, nil
}

func EncodeDirent(mem webshell.Memory, ptr uint32, v Dirent) error {
	return direntShape.encode(mem, ptr, v.Next, v.Ino, uint64(v.NameLen), uint64(v.Type))
}

func DecodeDirent(mem webshell.Memory, ptr uint32) (Dirent, error) {
	f, err := direntShape.decode(mem, ptr)
	if err != nil {
		return Dirent{}, err
	}
	return Dirent{Next: f[0], Ino: f[1], NameLen: uint32(f[2]), Type: FileType(f[3])}, nil
}

func EncodeFilestat(mem webshell.Memory, ptr uint32, v Filestat) error {
	return filestatShape.encode(mem, ptr,
		v.Dev, v.Ino, uint64(v.FileType), v.Nlink, v.Size, v.Atim, v.Mtim, v.Ctim)
}

func DecodeFilestat(mem webshell.Memory, ptr uint32) (Filestat, error) {
	f, err := filestatShape.decode(mem, ptr)
	if err != nil {
		return Filestat{}, err
	}
	return Filestat{
		Dev: f[0], Ino: f[1], FileType: FileType(f[2]), Nlink: f[3],
		Size: f[4], Atim: f[5], Mtim: f[6], Ctim: f[7],
	}, nil
}

func EncodeSubscription(mem webshell.Memory, ptr uint32, v Subscription) error {
	if err := subscriptionShape.encode(mem, ptr, v.Userdata, uint64(v.Type)); err != nil {
		return err
	}
	payload := ptr + subscriptionUnionOffset
	switch v.Type {
	case EventTypeClock:
		return subclockShape.encode(mem, payload,
			uint64(v.Clock.ID), v.Clock.Timeout, v.Clock.Precision, uint64(v.Clock.Flags))
	case EventTypeFDRead, EventTypeFDWrite:
		return subFDShape.encode(mem, payload, uint64(v.FD))
	}
	return nil
}

func DecodeSubscription(mem webshell.Memory, ptr uint32) (Subscription, error) {
	h, err := subscriptionShape.decode(mem, ptr)
	if err != nil {
		return Subscription{}, err
	}
	sub := Subscription{Userdata: h[0], Type: EventType(h[1])}

	payload := ptr + subscriptionUnionOffset
	switch sub.Type {
	case EventTypeClock:
		c, err := subclockShape.decode(mem, payload)
		if err != nil {
			return Subscription{}, err
		}
		sub.Clock = SubscriptionClock{
			ID:        ClockID(c[0]),
			Timeout:   c[1],
			Precision: c[2],
			Flags:     SubclockFlags(c[3]),
		}
	case EventTypeFDRead, EventTypeFDWrite:
		fd, err := subFDShape.decode(mem, payload)
		if err != nil {
			return Subscription{}, err
		}
		sub.FD = uint32(fd[0])
	}
	return sub, nil
}

func EncodeEvent(mem webshell.Memory, ptr uint32, v Event) error {
	return eventShape.encode(mem, ptr,
		v.Userdata, uint64(v.Errno), uint64(v.Type), v.NBytes, uint64(v.Flags))
}

func DecodeEvent(mem webshell.Memory, ptr uint32) (Event, error) {
	f, err := eventShape.decode(mem, ptr)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Userdata: f[0],
		Errno:    Errno(f[1]),
		Type:     EventType(f[2]),
		NBytes:   f[3],
		Flags:    uint16(f[4]),
	}, nil
}

// ReadString copies length bytes at ptr out of guest memory.
func ReadString(mem webshell.Memory, ptr, length uint32) (string, error) {
	b, err := mem.Read(ptr, length)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteString stores s at ptr, truncated to limit bytes. No terminator is
// written.
func WriteString(mem webshell.Memory, ptr uint32, s string, limit uint32) error {
	if uint64(len(s)) > uint64(limit) {
		s = s[:limit]
	}
	return mem.Write(ptr, []byte(s))
}
