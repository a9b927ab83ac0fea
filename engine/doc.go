// Package engine runs WASI preview1 command modules on wazero.
//
// An Engine owns one wazero runtime. Each Run compiles the module, checks
// that it only imports wasi_snapshot_preview1, registers the given
// preview1.Host under that name, instantiates the guest and calls _start.
//
// # Exit Codes
//
// A guest that calls proc_exit reports its argument; a guest whose _start
// returns reports 0. Traps are returned as errors. With
// Config.CloseOnContextDone a guest stuck in a loop is stopped when the
// run's context is done and Run returns the context's error.
//
// # Usage
//
//	eng, err := engine.New(ctx, engine.Config{MemoryLimitPages: 1024})
//	if err != nil {
//	    return err
//	}
//	defer eng.Close(ctx)
//
//	host, err := preview1.New().WithArgs("prog").Build(ctx)
//	if err != nil {
//	    return err
//	}
//	defer host.Close(ctx)
//
//	code, err := eng.Run(ctx, wasmBytes, host)
package engine
