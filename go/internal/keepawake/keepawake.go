// Package keepawake keeps the host display awake while a game clock runs.
package keepawake

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrUnsupported is returned when the platform offers no way to inhibit sleep.
var ErrUnsupported = errors.New("keep-awake is not supported on this platform")

// Lock is a platform wake lock. Implementations must tolerate Release
// without a prior successful Acquire.
type Lock interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

// Noop satisfies Lock without touching the platform.
type Noop struct{}

func (Noop) Acquire(context.Context) error { return nil }
func (Noop) Release(context.Context) error { return nil }

// Inhibitor holds a platform inhibitor process (systemd-inhibit, caffeinate)
// while at least one holder has acquired it. One Inhibitor is shared by every
// session, so each Acquire must be paired with one Release.
type Inhibitor struct {
	command []string

	mu      sync.Mutex
	cmd     *exec.Cmd
	holders int
}

// NewInhibitor picks the inhibitor command for the running OS.
func NewInhibitor() (*Inhibitor, error) {
	command, err := inhibitCommand(runtime.GOOS)
	if err != nil {
		return nil, err
	}
	if _, err := exec.LookPath(command[0]); err != nil {
		return nil, fmt.Errorf("%w: %s not found", ErrUnsupported, command[0])
	}
	return &Inhibitor{command: command}, nil
}

func inhibitCommand(goos string) ([]string, error) {
	switch goos {
	case "linux":
		return []string{
			"systemd-inhibit",
			"--what=idle:sleep",
			"--who=tableclock",
			"--why=game clock running",
			"--mode=block",
			"sleep", "infinity",
		}, nil
	case "darwin":
		return []string{"caffeinate", "-d", "-i"}, nil
	default:
		return nil, ErrUnsupported
	}
}

// Acquire adds a holder, starting the inhibitor process for the first one.
func (i *Inhibitor) Acquire(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if i.cmd != nil {
		i.holders++
		return nil
	}

	// Not CommandContext: the process must outlive the acquire call.
	cmd := exec.Command(i.command[0], i.command[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", i.command[0], err)
	}
	i.cmd = cmd
	i.holders = 1

	log.Debug().Str("command", i.command[0]).Int("pid", cmd.Process.Pid).Msg("keep-awake acquired")
	return nil
}

// Release drops a holder. The inhibitor process stops when the last holder
// releases; a Release with no holders is a no-op.
func (i *Inhibitor) Release(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.cmd == nil {
		return nil
	}
	i.holders--
	if i.holders > 0 {
		log.Debug().Int("holders", i.holders).Msg("keep-awake still held")
		return nil
	}
	cmd := i.cmd
	i.cmd = nil
	i.holders = 0

	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("failed to stop %s: %w", i.command[0], err)
	}
	// Reap in the background; a killed inhibitor exits with a signal error.
	go func() { _ = cmd.Wait() }()

	log.Debug().Str("command", i.command[0]).Msg("keep-awake released")
	return nil
}

// Default returns the platform inhibitor, or Noop when the platform has none.
func Default() Lock {
	inhibitor, err := NewInhibitor()
	if err != nil {
		log.Warn().Err(err).Msg("keep-awake unavailable, continuing without it")
		return Noop{}
	}
	return inhibitor
}
