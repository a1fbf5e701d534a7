// Package resource reports inference device capacity for the router's
// switch-up checks.
package resource

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable means no monitoring source is present. Callers proceed
// optimistically.
var ErrUnavailable = errors.New("resource monitoring unavailable")

// Snapshot is a point-in-time capacity reading. It is produced on demand and
// never cached.
type Snapshot struct {
	DeviceLabel string  `json:"device_label"`
	TotalMB     int     `json:"total_mb"`
	UsedMB      int     `json:"used_mb"`
	FreeMB      int     `json:"free_mb"`
	UsedRatio   float64 `json:"used_ratio"`
}

// Monitor takes capacity snapshots of one device.
type Monitor interface {
	Snapshot(ctx context.Context, deviceIndex int) (Snapshot, error)
}

// Confirmer is consulted after a passing check before switching up. A false
// return counts as a failed check.
type Confirmer interface {
	ConfirmSwitch(ctx context.Context, label string, requiredMB int) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, label string, requiredMB int) bool

func (f ConfirmFunc) ConfirmSwitch(ctx context.Context, label string, requiredMB int) bool {
	return f(ctx, label, requiredMB)
}

// NewSnapshot derives free capacity and the used ratio from total and used.
func NewSnapshot(label string, totalMB, usedMB int) (Snapshot, error) {
	if totalMB <= 0 {
		return Snapshot{}, fmt.Errorf("%s: invalid total %d MB", label, totalMB)
	}
	if usedMB < 0 {
		usedMB = 0
	}
	if usedMB > totalMB {
		usedMB = totalMB
	}
	return Snapshot{
		DeviceLabel: label,
		TotalMB:     totalMB,
		UsedMB:      usedMB,
		FreeMB:      totalMB - usedMB,
		UsedRatio:   float64(usedMB) / float64(totalMB),
	}, nil
}

// None always reports ErrUnavailable.
type None struct{}

func (None) Snapshot(context.Context, int) (Snapshot, error) { return Snapshot{}, ErrUnavailable }

// Static reports fixed, configured capacity.
type Static struct {
	Label   string
	TotalMB int
	UsedMB  int
}

func (s Static) Snapshot(ctx context.Context, _ int) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	if s.TotalMB <= 0 {
		return Snapshot{}, ErrUnavailable
	}
	label := s.Label
	if label == "" {
		label = "static"
	}
	return NewSnapshot(label, s.TotalMB, s.UsedMB)
}
