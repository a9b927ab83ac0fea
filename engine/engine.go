package engine

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/mizchi/web-shell/errors"
	"github.com/mizchi/web-shell/wasi/preview1"
)

// StartFunction is the export a command module runs.
const StartFunction = "_start"

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// CloseOnContextDone stops a running guest when the context passed to
	// Run is done. Without it only host calls observe cancellation.
	CloseOnContextDone bool
}

// Engine runs preview1 command modules on a wazero runtime. The
// wasi_snapshot_preview1 module of a runtime is bound to one Host, so runs
// on one Engine are serialized.
type Engine struct {
	runtime wazero.Runtime
	mu      sync.Mutex
}

// New creates an engine.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	if cfg.CloseOnContextDone {
		runtimeCfg = runtimeCfg.WithCloseOnContextDone(true)
	}
	return &Engine{runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg)}, nil
}

// Close releases the runtime and everything compiled on it.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Compile validates wasmBytes as a preview1 command: every import must
// come from wasi_snapshot_preview1 and _start must be exported.
func (e *Engine) Compile(ctx context.Context, wasmBytes []byte) (wazero.CompiledModule, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Load("compile module", err)
	}

	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		if module != preview1.ModuleName {
			_ = compiled.Close(ctx)
			return nil, errors.New(errors.PhaseLoad, errors.KindUnsupported).
				Path(module, name).
				Detail("import from unknown module %q", module).
				Build()
		}
	}
	if _, ok := compiled.ExportedFunctions()[StartFunction]; !ok {
		_ = compiled.Close(ctx)
		return nil, errors.NotFound(errors.PhaseLoad, "export", StartFunction)
	}
	return compiled, nil
}

// Run instantiates host and the module and calls _start. It returns the
// guest's exit code: the proc_exit argument, or 0 when _start returns.
// host is not closed.
func (e *Engine) Run(ctx context.Context, wasmBytes []byte, host *preview1.Host) (uint32, error) {
	compiled, err := e.Compile(ctx, wasmBytes)
	if err != nil {
		return 0, err
	}
	defer compiled.Close(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	hostMod, err := host.Instantiate(ctx, e.runtime)
	if err != nil {
		return 0, err
	}
	defer hostMod.Close(ctx)

	// Start functions are called explicitly so that exit codes are seen.
	guest, err := e.runtime.InstantiateModule(ctx, compiled,
		wazero.NewModuleConfig().WithName("").WithStartFunctions())
	if err != nil {
		return 0, errors.Instantiation(err)
	}
	defer guest.Close(ctx)

	Logger().Debug("running module",
		zap.Int("imports", len(compiled.ImportedFunctions())),
		zap.Uint32("memory", memorySize(guest.Memory())))

	_, err = guest.ExportedFunction(StartFunction).Call(ctx)
	return exitCode(ctx, err)
}

func exitCode(ctx context.Context, err error) (uint32, error) {
	if err == nil {
		return 0, nil
	}

	var exit *sys.ExitError
	if !stderrors.As(err, &exit) {
		Logger().Warn("guest trapped", zap.Error(err))
		return 0, errors.Trap(StartFunction, err)
	}
	switch exit.ExitCode() {
	case sys.ExitCodeContextCanceled, sys.ExitCodeDeadlineExceeded:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return exit.ExitCode(), ctxErr
		}
	}
	Logger().Debug("guest exited", zap.Uint32("code", exit.ExitCode()))
	return exit.ExitCode(), nil
}

func memorySize(m api.Memory) uint32 {
	if m == nil {
		return 0
	}
	return m.Size()
}
