// Package webshell runs sandboxed WebAssembly programs against a
// capability-scoped virtual filesystem.
//
// Guests talk to the host through the wasi_snapshot_preview1 system-call
// ABI. Every path a guest opens must resolve under one of the preopened
// capability roots; nothing outside them is reachable.
//
// # Architecture Overview
//
//	webshell/            Root package with the Memory interface and adapters
//	├── engine/          wazero runtime wrapper, runs a guest's _start
//	├── wasi/preview1/   wasi_snapshot_preview1 host: descriptor table,
//	│                    path resolver, struct codec, syscall handlers, poll
//	├── vfs/             Backing store interfaces and the shell namespace
//	│   ├── memfs/       In-memory store
//	│   └── osfs/        Store rooted at a real host directory
//	├── resource/        Generic handle table with lifecycle observers
//	├── errors/          Structured error types
//	└── cmd/webshell/    CLI: run a module, or an interactive shell
//
// # Quick Start
//
//	store := memfs.New("workspace")
//	host, err := preview1.New().
//	    WithArgs("hello.wasm").
//	    WithPreopen("/workspace", store).
//	    WithStdout(os.Stdout).
//	    Build(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	eng, err := engine.New(ctx, engine.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//	code, err := eng.Run(ctx, wasmBytes, host)
//
// # Memory Model
//
// The host never allocates guest memory. Handlers read arguments from and
// write results to caller-provided offsets through Memory; out of range
// accesses surface to the guest as EINVAL.
package webshell
