package preview1

import (
	"bytes"
	"encoding/binary"
	"testing"

	webshell "github.com/mizchi/web-shell"
	"github.com/mizchi/web-shell/errors"
)

func TestShapeSizes(t *testing.T) {
	tests := []struct {
		shape *shape
		size  uint32
	}{
		{&prestatShape, PrestatSize},
		{&iovecShape, IOVecSize},
		{&fdstatShape, FdstatSize},
		{&direntShape, DirentSize},
		{&filestatShape, FilestatSize},
		{&subscriptionShape, SubscriptionSize},
		{&eventShape, EventSize},
	}
	for _, tt := range tests {
		if tt.shape.size != tt.size {
			t.Errorf("%s: size %d, want %d", tt.shape.name, tt.shape.size, tt.size)
		}
		for _, f := range tt.shape.fields {
			if f.offset%f.width != 0 {
				t.Errorf("%s.%s: offset %d not aligned to %d", tt.shape.name, f.name, f.offset, f.width)
			}
			if f.offset+f.width > tt.shape.size {
				t.Errorf("%s.%s: extends past the record", tt.shape.name, f.name)
			}
		}
	}
}

func TestEncodeFdstatLayout(t *testing.T) {
	mem := webshell.NewByteMemory(64)
	copy(mem.Bytes(), bytes.Repeat([]byte{0xff}, 64))

	err := EncodeFdstat(mem, 8, Fdstat{
		FileType:         FileTypeDirectory,
		Flags:            FDFlagAppend,
		RightsBase:       0x0102030405060708,
		RightsInheriting: 42,
	})
	if err != nil {
		t.Fatalf("EncodeFdstat: %v", err)
	}

	b := mem.Bytes()[8:]
	if b[0] != byte(FileTypeDirectory) {
		t.Errorf("filetype = %d", b[0])
	}
	if b[1] != 0 {
		t.Errorf("padding not cleared: %d", b[1])
	}
	if got := binary.LittleEndian.Uint16(b[2:]); got != uint16(FDFlagAppend) {
		t.Errorf("flags = %d", got)
	}
	if got := binary.LittleEndian.Uint64(b[8:]); got != 0x0102030405060708 {
		t.Errorf("rights_base = %#x", got)
	}
	if got := binary.LittleEndian.Uint64(b[16:]); got != 42 {
		t.Errorf("rights_inheriting = %d", got)
	}
	if mem.Bytes()[7] != 0xff || mem.Bytes()[32] != 0xff {
		t.Error("bytes outside the record were modified")
	}
}

func TestDirentLayout(t *testing.T) {
	mem := webshell.NewByteMemory(32)
	want := Dirent{Next: 7, NameLen: 5, Type: FileTypeRegularFile}
	if err := EncodeDirent(mem, 0, want); err != nil {
		t.Fatal(err)
	}
	b := mem.Bytes()
	if binary.LittleEndian.Uint64(b[0:]) != 7 || binary.LittleEndian.Uint32(b[16:]) != 5 || b[20] != 4 {
		t.Errorf("unexpected bytes % x", b[:24])
	}
	got, err := DecodeDirent(mem, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("DecodeDirent = %+v, want %+v", got, want)
	}
}

func TestSubscriptionUnion(t *testing.T) {
	mem := webshell.NewByteMemory(160)

	clock := Subscription{
		Userdata: 9,
		Type:     EventTypeClock,
		Clock:    SubscriptionClock{ID: ClockMonotonic, Timeout: 1000, Precision: 10, Flags: SubclockAbstime},
	}
	if err := EncodeSubscription(mem, 0, clock); err != nil {
		t.Fatal(err)
	}
	b := mem.Bytes()
	if b[8] != 0 || binary.LittleEndian.Uint32(b[16:]) != 1 || binary.LittleEndian.Uint64(b[24:]) != 1000 ||
		binary.LittleEndian.Uint64(b[32:]) != 10 || binary.LittleEndian.Uint16(b[40:]) != 1 {
		t.Errorf("unexpected clock layout % x", b[:48])
	}
	got, err := DecodeSubscription(mem, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != clock {
		t.Errorf("clock round trip = %+v", got)
	}

	fd := Subscription{Userdata: 3, Type: EventTypeFDRead, FD: 5}
	if err := EncodeSubscription(mem, 48, fd); err != nil {
		t.Fatal(err)
	}
	got, err = DecodeSubscription(mem, 48)
	if err != nil {
		t.Fatal(err)
	}
	if got != fd {
		t.Errorf("fd round trip = %+v", got)
	}

	// Unknown tags decode with an empty payload.
	b[96+8] = 7
	binary.LittleEndian.PutUint32(b[96+16:], 99)
	got, err = DecodeSubscription(mem, 96)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != 7 || got.FD != 0 || got.Clock != (SubscriptionClock{}) {
		t.Errorf("unknown tag decoded as %+v", got)
	}
}

func TestEventLayout(t *testing.T) {
	mem := webshell.NewByteMemory(32)
	e := Event{Userdata: 1, Errno: ErrnoUnsupported, Type: EventTypeFDWrite, NBytes: 3, Flags: 1}
	if err := EncodeEvent(mem, 0, e); err != nil {
		t.Fatal(err)
	}
	b := mem.Bytes()
	if binary.LittleEndian.Uint16(b[8:]) != 52 || b[10] != 2 || binary.LittleEndian.Uint64(b[16:]) != 3 {
		t.Errorf("unexpected event layout % x", b)
	}
	got, err := DecodeEvent(mem, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != e {
		t.Errorf("DecodeEvent = %+v", got)
	}
}

func TestCodecOutOfBounds(t *testing.T) {
	mem := webshell.NewByteMemory(60)

	err := EncodeFilestat(mem, 0, Filestat{})
	if !errors.IsKind(err, errors.KindOutOfBounds) {
		t.Errorf("EncodeFilestat: expected out of bounds, got %v", err)
	}
	if _, err := DecodeIOVec(mem, 56); !errors.IsKind(err, errors.KindOutOfBounds) {
		t.Errorf("DecodeIOVec: expected out of bounds, got %v", err)
	}
	if _, err := ReadString(mem, 50, 20); !errors.IsKind(err, errors.KindOutOfBounds) {
		t.Errorf("ReadString: expected out of bounds, got %v", err)
	}
}

func TestWriteStringTruncates(t *testing.T) {
	mem := webshell.NewByteMemory(16)
	if err := WriteString(mem, 0, "/workspace", 4); err != nil {
		t.Fatal(err)
	}
	if got := string(mem.Bytes()[:5]); got != "/wor\x00" {
		t.Errorf("got %q", got)
	}
	s, err := ReadString(mem, 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if s != "wor" {
		t.Errorf("ReadString = %q", s)
	}
}
