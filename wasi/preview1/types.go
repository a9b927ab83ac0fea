package preview1

import "time"

// ModuleName is the import module guests link the host functions from.
const ModuleName = "wasi_snapshot_preview1"

// FirstPreopenFD is the first descriptor handed out by a FileTable.
// Descriptors 0 to 2 are the standard streams.
const FirstPreopenFD uint32 = 3

const (
	fdStdin  uint32 = 0
	fdStdout uint32 = 1
	fdStderr uint32 = 2
)

// FileType is the filetype enum of fdstat, filestat and dirent.
type FileType uint8

const (
	FileTypeUnknown FileType = iota
	FileTypeBlockDevice
	FileTypeCharacterDevice
	FileTypeDirectory
	FileTypeRegularFile
	FileTypeSocketDgram
	FileTypeSocketStream
	FileTypeSymbolicLink
)

// OFlags are the open flags of path_open.
type OFlags uint16

const (
	OFlagCreate OFlags = 1 << iota
	OFlagDirectory
	OFlagExclusive
	OFlagTruncate
)

// FDFlags are descriptor flags.
type FDFlags uint16

const (
	FDFlagAppend FDFlags = 1 << iota
	FDFlagDSync
	FDFlagNonBlock
	FDFlagRSync
	FDFlagSync
)

// Whence is the origin of fd_seek.
type Whence uint8

const (
	WhenceSet Whence = iota
	WhenceCur
	WhenceEnd
)

// ClockID names a clock of clock_time_get and clock subscriptions.
type ClockID uint32

const (
	ClockRealtime ClockID = iota
	ClockMonotonic
	ClockProcessCPUTime
	ClockThreadCPUTime
)

// EventType is the tag of subscriptions and events.
type EventType uint8

const (
	EventTypeClock EventType = iota
	EventTypeFDRead
	EventTypeFDWrite
)

// SubclockFlags modify a clock subscription.
type SubclockFlags uint16

// SubclockAbstime makes the timeout an absolute reading of the clock.
const SubclockAbstime SubclockFlags = 1

const preopenTypeDir uint8 = 0

const (
	rightsAll         uint64 = ^uint64(0)
	rightPathSymlink  uint64 = 1 << 24
	rightsInheritable uint64 = rightsAll &^ rightPathSymlink
)

const clockResolution = time.Millisecond
