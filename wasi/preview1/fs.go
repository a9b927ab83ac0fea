package preview1

import (
	"context"
	stderrors "errors"
	"io"

	"go.uber.org/zap"

	"github.com/mizchi/web-shell/vfs"
)

func (h *Host) fdPrestatGet(_ context.Context, c *call) error {
	pre, err := h.files.GetPreopen(c.u32(0))
	if err != nil {
		return err
	}
	return EncodePrestat(c.mem, c.u32(1), Prestat{
		Tag:     preopenTypeDir,
		NameLen: uint32(len(pre.Path())),
	})
}

func (h *Host) fdPrestatDirName(_ context.Context, c *call) error {
	pre, err := h.files.GetPreopen(c.u32(0))
	if err != nil {
		return err
	}
	return WriteString(c.mem, c.u32(1), pre.Path(), c.u32(2))
}

func (h *Host) pathOpen(ctx context.Context, c *call) error {
	var (
		dirfd   = c.u32(0)
		pathPtr = c.u32(2)
		pathLen = c.u32(3)
		oflags  = OFlags(c.u32(4))
		fdflags = FDFlags(c.u32(7))
		fdOut   = c.u32(8)
	)

	pre, err := h.files.GetPreopen(dirfd)
	if err != nil {
		return err
	}
	p, err := ReadString(c.mem, pathPtr, pathLen)
	if err != nil {
		return err
	}

	if fdflags&FDFlagNonBlock != 0 {
		Logger().Warn("non-blocking mode is not supported, opening in blocking mode",
			zap.String("path", p))
		fdflags &^= FDFlagNonBlock
	}
	if fdflags != 0 {
		return fail(ErrnoUnsupported)
	}

	fd, err := h.files.Open(ctx, pre, p, oflags)
	if err != nil {
		return err
	}
	return c.mem.WriteU32(fdOut, fd)
}

func (h *Host) fdClose(ctx context.Context, c *call) error {
	return h.files.Close(ctx, c.u32(0))
}

func (h *Host) fdRenumber(ctx context.Context, c *call) error {
	return h.files.Renumber(ctx, c.u32(0), c.u32(1))
}

func (h *Host) fdRead(ctx context.Context, c *call) error {
	fd := c.u32(0)
	var read func([]byte) (int, error)

	switch {
	case fd == fdStdin:
		read = h.readStdin
	case fd < FirstPreopenFD:
		return fail(ErrnoBadDescriptor)
	default:
		hd, err := h.files.Get(fd)
		if err != nil {
			return err
		}
		f, err := hd.AsFile()
		if err != nil {
			return err
		}
		read = func(buf []byte) (int, error) { return f.Read(ctx, buf) }
	}
	return forEachIOVec(ctx, c.mem, c.u32(1), c.u32(2), c.u32(3), read)
}

// readStdin does one read from stdin. End of input is a zero count.
func (h *Host) readStdin(buf []byte) (int, error) {
	if h.stdin == nil || len(buf) == 0 {
		return 0, nil
	}
	n, err := h.stdin.Read(buf)
	if err != nil && !stderrors.Is(err, io.EOF) {
		return n, err
	}
	return n, nil
}

func (h *Host) fdWrite(ctx context.Context, c *call) error {
	fd := c.u32(0)
	var write func([]byte) (int, error)

	switch fd {
	case fdStdout:
		write = h.stdout.Write
	case fdStderr:
		write = h.stderr.Write
	case fdStdin:
		return fail(ErrnoBadDescriptor)
	default:
		hd, err := h.files.Get(fd)
		if err != nil {
			return err
		}
		f, err := hd.AsFile()
		if err != nil {
			return err
		}
		write = func(buf []byte) (int, error) { return f.Write(ctx, buf) }
	}
	return forEachIOVec(ctx, c.mem, c.u32(1), c.u32(2), c.u32(3), write)
}

func (h *Host) fdFdstatGet(_ context.Context, c *call) error {
	fd := c.u32(0)
	filetype := FileTypeCharacterDevice
	if fd >= FirstPreopenFD {
		hd, err := h.files.Get(fd)
		if err != nil {
			return err
		}
		filetype = hd.FileType()
	}
	return EncodeFdstat(c.mem, c.u32(1), Fdstat{
		FileType:         filetype,
		RightsBase:       rightsAll,
		RightsInheriting: rightsInheritable,
	})
}

func (h *Host) pathCreateDirectory(ctx context.Context, c *call) error {
	pre, err := h.files.GetPreopen(c.u32(0))
	if err != nil {
		return err
	}
	p, err := ReadString(c.mem, c.u32(1), c.u32(2))
	if err != nil {
		return err
	}
	_, _, err = pre.GetFileOrDir(ctx, p, WantDir, OFlagCreate|OFlagDirectory|OFlagExclusive)
	return err
}

// pathRemove serves both path_remove_directory and path_unlink_file.
func (h *Host) pathRemove(ctx context.Context, c *call) error {
	pre, err := h.files.GetPreopen(c.u32(0))
	if err != nil {
		return err
	}
	p, err := ReadString(c.mem, c.u32(1), c.u32(2))
	if err != nil {
		return err
	}
	return pre.Delete(ctx, p)
}

func (h *Host) fdReaddir(ctx context.Context, c *call) error {
	var (
		fd      = c.u32(0)
		buf     = c.u32(1)
		bufLen  = c.u32(2)
		cookie  = c.u64(3)
		bufUsed = c.u32(4)
	)

	hd, err := h.files.Get(fd)
	if err != nil {
		return err
	}
	d, err := hd.AsDir()
	if err != nil {
		return err
	}
	cur, err := d.Entries(ctx, cookie)
	if err != nil {
		return err
	}

	start := buf
	for {
		e, err := cur.Next(ctx)
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		size := uint64(DirentSize) + uint64(len(e.Name))
		if uint64(bufLen) < size {
			if err := cur.Revert(e); err != nil {
				return err
			}
			break
		}

		cookie++
		if err := EncodeDirent(c.mem, buf, Dirent{
			Next:    cookie,
			NameLen: uint32(len(e.Name)),
			Type:    fileTypeOf(e.Kind),
		}); err != nil {
			return err
		}
		if err := c.mem.Write(buf+DirentSize, []byte(e.Name)); err != nil {
			return err
		}
		buf += uint32(size)
		bufLen -= uint32(size)
	}
	return c.mem.WriteU32(bufUsed, buf-start)
}

func fileTypeOf(k vfs.Kind) FileType {
	switch k {
	case vfs.KindFile:
		return FileTypeRegularFile
	case vfs.KindDir:
		return FileTypeDirectory
	}
	return FileTypeUnknown
}

func fileStat(info vfs.Info) Filestat {
	ns := uint64(info.ModTime.UnixNano())
	return Filestat{
		FileType: FileTypeRegularFile,
		Size:     uint64(info.Size),
		Atim:     ns,
		Mtim:     ns,
		Ctim:     ns,
	}
}

func (h *Host) pathFilestatGet(ctx context.Context, c *call) error {
	pre, err := h.files.GetPreopen(c.u32(0))
	if err != nil {
		return err
	}
	p, err := ReadString(c.mem, c.u32(2), c.u32(3))
	if err != nil {
		return err
	}
	f, _, err := pre.GetFileOrDir(ctx, p, WantAny, 0)
	if err != nil {
		return err
	}

	st := Filestat{FileType: FileTypeDirectory}
	if f != nil {
		info, err := f.Stat(ctx)
		if err != nil {
			return err
		}
		st = fileStat(info)
	}
	return EncodeFilestat(c.mem, c.u32(4), st)
}

func (h *Host) fdFilestatGet(ctx context.Context, c *call) error {
	fd := c.u32(0)
	st := Filestat{FileType: FileTypeCharacterDevice}
	if fd >= FirstPreopenFD {
		hd, err := h.files.Get(fd)
		if err != nil {
			return err
		}
		st = Filestat{FileType: FileTypeDirectory}
		if f, err := hd.AsFile(); err == nil {
			info, err := f.Stat(ctx)
			if err != nil {
				return err
			}
			st = fileStat(info)
		}
	}
	return EncodeFilestat(c.mem, c.u32(1), st)
}

func (h *Host) file(fd uint32) (*File, error) {
	hd, err := h.files.Get(fd)
	if err != nil {
		return nil, err
	}
	return hd.AsFile()
}

func (h *Host) fdSeek(ctx context.Context, c *call) error {
	f, err := h.file(c.u32(0))
	if err != nil {
		return err
	}
	pos, err := f.Seek(ctx, int64(c.u64(1)), Whence(c.u32(2)))
	if err != nil {
		return err
	}
	return c.mem.WriteU64(c.u32(3), uint64(pos))
}

func (h *Host) fdTell(_ context.Context, c *call) error {
	f, err := h.file(c.u32(0))
	if err != nil {
		return err
	}
	return c.mem.WriteU64(c.u32(1), uint64(f.Position()))
}

func (h *Host) fdDatasync(ctx context.Context, c *call) error {
	f, err := h.file(c.u32(0))
	if err != nil {
		return err
	}
	return f.Flush(ctx)
}

func (h *Host) fdSync(ctx context.Context, c *call) error {
	hd, err := h.files.Get(c.u32(0))
	if err != nil {
		return err
	}
	if f, err := hd.AsFile(); err == nil {
		return f.Flush(ctx)
	}
	return nil
}

func (h *Host) fdFilestatSetSize(ctx context.Context, c *call) error {
	f, err := h.file(c.u32(0))
	if err != nil {
		return err
	}
	size := c.u64(1)
	if int64(size) < 0 {
		return fail(ErrnoInvalidArgument)
	}
	return f.SetSize(ctx, int64(size))
}

func (h *Host) pollOneoff(ctx context.Context, c *call) error {
	var (
		in      = c.u32(0)
		out     = c.u32(1)
		nsubs   = c.u32(2)
		nevents = c.u32(3)
	)

	subs := make([]Subscription, 0, nsubs)
	for i := uint32(0); i < nsubs; i++ {
		s, err := DecodeSubscription(c.mem, in+i*SubscriptionSize)
		if err != nil {
			return err
		}
		subs = append(subs, s)
	}

	events, err := h.pollOnce(ctx, subs)
	if err != nil {
		return err
	}
	for i, e := range events {
		if err := EncodeEvent(c.mem, out+uint32(i)*EventSize, e); err != nil {
			return err
		}
	}
	return c.mem.WriteU32(nevents, uint32(len(events)))
}
