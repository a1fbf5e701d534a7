package resource

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const nvidiaQueryTimeout = 10 * time.Second

// NvidiaSMI queries memory usage through the nvidia-smi binary.
type NvidiaSMI struct {
	// Binary defaults to "nvidia-smi" looked up on PATH.
	Binary  string
	Timeout time.Duration

	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Snapshot runs one query. A missing binary or a failing invocation maps to
// ErrUnavailable; malformed output is reported as an error.
func (n *NvidiaSMI) Snapshot(ctx context.Context, deviceIndex int) (Snapshot, error) {
	timeout := n.Timeout
	if timeout <= 0 {
		timeout = nvidiaQueryTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	bin := n.Binary
	if bin == "" {
		bin = "nvidia-smi"
	}
	run := n.run
	if run == nil {
		if _, err := exec.LookPath(bin); err != nil {
			return Snapshot{}, ErrUnavailable
		}
		run = runCommand
	}
	out, err := run(ctx, bin,
		"--query-gpu=name,memory.total,memory.used",
		"--format=csv,noheader,nounits",
		"-i", strconv.Itoa(deviceIndex))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Snapshot{}, fmt.Errorf("nvidia-smi: %w", ctx.Err())
		}
		return Snapshot{}, fmt.Errorf("%w: nvidia-smi: %v", ErrUnavailable, err)
	}
	return parseNvidiaCSV(string(out))
}

// parseNvidiaCSV reads the first "name, total, used" line.
func parseNvidiaCSV(out string) (Snapshot, error) {
	line := strings.TrimSpace(strings.Split(strings.TrimSpace(out), "\n")[0])
	parts := strings.Split(line, ",")
	if len(parts) < 3 {
		return Snapshot{}, fmt.Errorf("nvidia-smi: unexpected output %q", line)
	}
	total, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("nvidia-smi: total: %w", err)
	}
	used, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("nvidia-smi: used: %w", err)
	}
	return NewSnapshot("NVIDIA "+strings.TrimSpace(parts[0]), int(total), int(used))
}
