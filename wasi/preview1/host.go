package preview1

import (
	"context"
	"crypto/rand"
	"io"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	webshell "github.com/mizchi/web-shell"
	"github.com/mizchi/web-shell/errors"
	"github.com/mizchi/web-shell/vfs"
)

// Builder configures a Host. Use New and the With methods, then Build.
type Builder struct {
	ctx      context.Context
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	clock    Clock
	random   io.Reader
	env      map[string]string
	args     []string
	preopens []Preopen
}

// New creates a builder with no arguments, environment or preopens. Output
// is discarded and stdin is empty until configured.
func New() *Builder {
	return &Builder{
		stdout: io.Discard,
		stderr: io.Discard,
		random: rand.Reader,
		env:    make(map[string]string),
	}
}

// WithArgs sets the command-line arguments, program name first.
func (b *Builder) WithArgs(args ...string) *Builder {
	b.args = args
	return b
}

// WithEnv sets environment variables.
func (b *Builder) WithEnv(env map[string]string) *Builder {
	b.env = env
	return b
}

// WithPreopen exposes dir to the guest at guestPath. Preopens receive
// descriptors in the order they are added.
func (b *Builder) WithPreopen(guestPath string, dir vfs.Dir) *Builder {
	b.preopens = append(b.preopens, Preopen{Path: guestPath, Dir: dir})
	return b
}

// WithStdin sets the source of descriptor 0.
func (b *Builder) WithStdin(r io.Reader) *Builder {
	b.stdin = r
	return b
}

// WithStdout sets the sink of descriptor 1.
func (b *Builder) WithStdout(w io.Writer) *Builder {
	b.stdout = w
	return b
}

// WithStderr sets the sink of descriptor 2.
func (b *Builder) WithStderr(w io.Writer) *Builder {
	b.stderr = w
	return b
}

// WithClock replaces the system clock.
func (b *Builder) WithClock(c Clock) *Builder {
	b.clock = c
	return b
}

// WithRandSource replaces crypto/rand as the source of random_get.
func (b *Builder) WithRandSource(r io.Reader) *Builder {
	b.random = r
	return b
}

// WithContext binds the host to ctx: once it is done, every call in flight
// or made later fails with ECANCELED.
func (b *Builder) WithContext(ctx context.Context) *Builder {
	b.ctx = ctx
	return b
}

// Build creates the Host. ctx is the host's base context unless
// WithContext set one.
func (b *Builder) Build(ctx context.Context) (*Host, error) {
	files, err := NewFileTable(b.preopens)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseHost, errors.KindNotInitialized, err, "descriptor table")
	}

	base := b.ctx
	if base == nil {
		base = ctx
	}
	clock := b.clock
	if clock == nil {
		clock = NewSystemClock()
	}

	h := &Host{
		ctx:    base,
		files:  files,
		args:   newStringCollection(b.args),
		env:    envCollection(b.env),
		stdin:  b.stdin,
		stdout: NewLineWriter(b.stdout),
		stderr: NewLineWriter(b.stderr),
		clock:  clock,
		random: b.random,
		calls:  make(map[string]*hostFunc),
	}
	h.registerAll()

	Logger().Debug("host built",
		zap.Int("args", len(b.args)),
		zap.Int("env", len(b.env)),
		zap.Int("preopens", len(b.preopens)))
	return h, nil
}

// Host implements wasi_snapshot_preview1 over a FileTable. A Host serves
// one guest instance; calls are not safe for concurrent use.
type Host struct {
	ctx    context.Context
	stdin  io.Reader
	random io.Reader
	clock  Clock
	files  *FileTable
	args   *stringCollection
	env    *stringCollection
	stdout *LineWriter
	stderr *LineWriter
	calls  map[string]*hostFunc
	order  []*hostFunc
}

// Files returns the descriptor table.
func (h *Host) Files() *FileTable { return h.files }

// Close commits pending writes, closes every descriptor and flushes
// partial output lines.
func (h *Host) Close(ctx context.Context) error {
	err := h.files.CloseAll(ctx)
	if ferr := h.stdout.Flush(); err == nil {
		err = ferr
	}
	if ferr := h.stderr.Flush(); err == nil {
		err = ferr
	}
	return err
}

// call is one invocation of a host function.
type call struct {
	mod    api.Module // nil when invoked through Host.Call
	mem    webshell.Memory
	params []uint64
}

func (c *call) u32(i int) uint32 { return uint32(c.params[i]) }

func (c *call) u64(i int) uint64 { return c.params[i] }

type handler func(ctx context.Context, c *call) error

type hostFunc struct {
	fn       handler
	name     string
	params   []api.ValueType
	noResult bool
}

// register adds a host function. Handlers return nil for success or an
// error that translateError understands; anything else traps.
func (h *Host) register(name string, params []api.ValueType, fn handler) *hostFunc {
	sc := &hostFunc{name: name, params: params, fn: fn}
	h.calls[name] = sc
	h.order = append(h.order, sc)
	return sc
}

// invoke runs a handler and turns its outcome into the guest's status.
func (h *Host) invoke(ctx context.Context, sc *hostFunc, c *call) Errno {
	ctx, cancel := h.bind(ctx)
	defer cancel()

	err := sc.fn(ctx, c)
	if err == nil {
		err = ctx.Err()
		if err == nil && h.ctx != nil {
			err = h.ctx.Err()
		}
	}
	if err == nil {
		Logger().Debug("syscall", zap.String("name", sc.name), zap.Uint64s("params", c.params))
		return ErrnoSuccess
	}

	code, quiet, ok := translateError(err)
	if !ok {
		Logger().Error("unrecognized failure", zap.String("name", sc.name), zap.Error(err))
		panic(err)
	}
	if quiet {
		Logger().Debug("syscall failed", zap.String("name", sc.name), zap.Stringer("errno", code))
	} else {
		Logger().Warn("syscall failed",
			zap.String("name", sc.name),
			zap.Stringer("errno", code),
			zap.Error(err))
	}
	return code
}

// bind derives a call context that is also cancelled with the host's base
// context.
func (h *Host) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.ctx == nil || h.ctx.Done() == nil {
		return ctx, func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	if h.ctx.Err() != nil {
		cancel()
		return ctx, cancel
	}
	stop := context.AfterFunc(h.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Call invokes the host function name against mem, as a guest would.
// proc_exit panics with a *sys.ExitError.
func (h *Host) Call(ctx context.Context, mem webshell.Memory, name string, params ...uint64) (Errno, error) {
	sc, ok := h.calls[name]
	if !ok {
		return 0, errors.NotFound(errors.PhaseHost, "function", name)
	}
	if len(params) != len(sc.params) {
		return 0, errors.InvalidInput(errors.PhaseHost, name+": wrong number of parameters")
	}
	return h.invoke(ctx, sc, &call{mem: mem, params: params}), nil
}

// Instantiate registers the host as the wasi_snapshot_preview1 module of r.
func (h *Host) Instantiate(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	builder := r.NewHostModuleBuilder(ModuleName)

	for _, sc := range h.order {
		results := []api.ValueType{api.ValueTypeI32}
		if sc.noResult {
			results = nil
		}
		builder.NewFunctionBuilder().
			WithGoModuleFunction(h.goFunc(sc), sc.params, results).
			Export(sc.name)
	}

	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, errors.Registration(errors.PhaseHost, ModuleName, "*", err)
	}
	return mod, nil
}

func (h *Host) goFunc(sc *hostFunc) api.GoModuleFunc {
	n := len(sc.params)
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		var mem webshell.Memory = webshell.NewByteMemory(0)
		if m := mod.Memory(); m != nil {
			mem = webshell.WrapMemory(m)
		}
		params := make([]uint64, n)
		copy(params, stack[:n])

		errno := h.invoke(ctx, sc, &call{mod: mod, mem: mem, params: params})
		if !sc.noResult {
			stack[0] = uint64(errno)
		}
	}
}

// forEachIOVec runs op over each buffer of the iovec array at iovs and
// stores the total transferred at resultPtr. A short transfer ends the
// walk.
func forEachIOVec(ctx context.Context, mem webshell.Memory, iovs, iovsLen, resultPtr uint32, op func(buf []byte) (int, error)) error {
	var total uint32
	for i := uint32(0); i < iovsLen; i++ {
		v, err := DecodeIOVec(mem, iovs+i*IOVecSize)
		if err != nil {
			return err
		}
		buf, err := mem.Read(v.Buf, v.Len)
		if err != nil {
			return err
		}
		n, err := op(buf)
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		total += uint32(n)
		if n < len(buf) {
			break
		}
	}
	return mem.WriteU32(resultPtr, total)
}

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

func sig(types ...api.ValueType) []api.ValueType { return types }

func (h *Host) registerAll() {
	h.register("args_get", sig(i32, i32), h.argsGet)
	h.register("args_sizes_get", sig(i32, i32), h.argsSizesGet)
	h.register("environ_get", sig(i32, i32), h.environGet)
	h.register("environ_sizes_get", sig(i32, i32), h.environSizesGet)
	h.register("clock_res_get", sig(i32, i32), h.clockResGet)
	h.register("clock_time_get", sig(i32, i64, i32), h.clockTimeGet)
	h.register("fd_close", sig(i32), h.fdClose)
	h.register("fd_datasync", sig(i32), h.fdDatasync)
	h.register("fd_fdstat_get", sig(i32, i32), h.fdFdstatGet)
	h.register("fd_fdstat_set_flags", sig(i32, i32), unsupported)
	h.register("fd_filestat_get", sig(i32, i32), h.fdFilestatGet)
	h.register("fd_filestat_set_size", sig(i32, i64), h.fdFilestatSetSize)
	h.register("fd_prestat_get", sig(i32, i32), h.fdPrestatGet)
	h.register("fd_prestat_dir_name", sig(i32, i32, i32), h.fdPrestatDirName)
	h.register("fd_read", sig(i32, i32, i32, i32), h.fdRead)
	h.register("fd_readdir", sig(i32, i32, i32, i64, i32), h.fdReaddir)
	h.register("fd_renumber", sig(i32, i32), h.fdRenumber)
	h.register("fd_seek", sig(i32, i64, i32, i32), h.fdSeek)
	h.register("fd_sync", sig(i32), h.fdSync)
	h.register("fd_tell", sig(i32, i32), h.fdTell)
	h.register("fd_write", sig(i32, i32, i32, i32), h.fdWrite)
	h.register("path_create_directory", sig(i32, i32, i32), h.pathCreateDirectory)
	h.register("path_filestat_get", sig(i32, i32, i32, i32, i32), h.pathFilestatGet)
	h.register("path_link", sig(i32, i32, i32, i32, i32, i32, i32), unsupported)
	h.register("path_open", sig(i32, i32, i32, i32, i32, i64, i64, i32, i32), h.pathOpen)
	h.register("path_readlink", sig(i32, i32, i32, i32, i32, i32), unsupported)
	h.register("path_remove_directory", sig(i32, i32, i32), h.pathRemove)
	h.register("path_rename", sig(i32, i32, i32, i32, i32, i32), unsupported)
	h.register("path_symlink", sig(i32, i32, i32, i32, i32), unsupported)
	h.register("path_unlink_file", sig(i32, i32, i32), h.pathRemove)
	h.register("poll_oneoff", sig(i32, i32, i32, i32), h.pollOneoff)
	h.register("proc_exit", sig(i32), h.procExit).noResult = true
	h.register("random_get", sig(i32, i32), h.randomGet)

	// The rest of the preview1 surface, so that any guest links.
	h.register("fd_advise", sig(i32, i64, i64, i32), unsupported)
	h.register("fd_allocate", sig(i32, i64, i64), unsupported)
	h.register("fd_fdstat_set_rights", sig(i32, i64, i64), unsupported)
	h.register("fd_filestat_set_times", sig(i32, i64, i64, i32), unsupported)
	h.register("fd_pread", sig(i32, i32, i32, i64, i32), unsupported)
	h.register("fd_pwrite", sig(i32, i32, i32, i64, i32), unsupported)
	h.register("path_filestat_set_times", sig(i32, i32, i32, i32, i64, i64, i32), unsupported)
	h.register("proc_raise", sig(i32), unsupported)
	h.register("sched_yield", sig(), h.schedYield)
	h.register("sock_accept", sig(i32, i32, i32), unsupported)
	h.register("sock_recv", sig(i32, i32, i32, i32, i32, i32), unsupported)
	h.register("sock_send", sig(i32, i32, i32, i32, i32), unsupported)
	h.register("sock_shutdown", sig(i32, i32), unsupported)
}

func unsupported(context.Context, *call) error {
	return fail(ErrnoUnsupported)
}
