package preview1

import (
	"context"
	"io"

	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"
)

func (h *Host) argsSizesGet(_ context.Context, c *call) error {
	return h.args.sizes(c.mem, c.u32(0), c.u32(1))
}

func (h *Host) argsGet(_ context.Context, c *call) error {
	return h.args.get(c.mem, c.u32(0), c.u32(1))
}

func (h *Host) environSizesGet(_ context.Context, c *call) error {
	return h.env.sizes(c.mem, c.u32(0), c.u32(1))
}

func (h *Host) environGet(_ context.Context, c *call) error {
	return h.env.get(c.mem, c.u32(0), c.u32(1))
}

// procExit closes the module and unwinds the guest. It never returns.
func (h *Host) procExit(ctx context.Context, c *call) error {
	code := c.u32(0)
	Logger().Debug("proc_exit", zap.Uint32("code", code))
	if c.mod != nil {
		_ = c.mod.CloseWithExitCode(ctx, code)
	}
	panic(sys.NewExitError(code))
}

func (h *Host) randomGet(_ context.Context, c *call) error {
	buf, err := c.mem.Read(c.u32(0), c.u32(1))
	if err != nil {
		return err
	}
	_, err = io.ReadFull(h.random, buf)
	return err
}

func (h *Host) clockTimeGet(_ context.Context, c *call) error {
	return c.mem.WriteU64(c.u32(2), reading(h.clock, ClockID(c.u32(0))))
}

func (h *Host) clockResGet(_ context.Context, c *call) error {
	return c.mem.WriteU64(c.u32(1), uint64(clockResolution))
}

func (h *Host) schedYield(context.Context, *call) error { return nil }
