package engine

import (
	"context"

	gnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

// portListeners returns the pids holding a LISTEN socket on port
func portListeners(ctx context.Context, port int) ([]int32, error) {
	conns, err := gnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return nil, err
	}
	seen := map[int32]bool{}
	var pids []int32
	for _, c := range conns {
		if c.Status != "LISTEN" || c.Laddr.Port != uint32(port) {
			continue
		}
		if c.Pid <= 0 || seen[c.Pid] {
			continue
		}
		seen[c.Pid] = true
		pids = append(pids, c.Pid)
	}
	return pids, nil
}

// terminatePID asks a process to exit, or kills it outright with force
func terminatePID(ctx context.Context, pid int32, force bool) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return err
	}
	if force {
		return p.KillWithContext(ctx)
	}
	return p.TerminateWithContext(ctx)
}
