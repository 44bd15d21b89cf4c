package alert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultPlayer plays a WAV from stdin with ALSA.
var DefaultPlayer = []string{"aplay", "-q", "-"}

// ExecOpener returns an Opener for a command that plays a WAV read from stdin.
func ExecOpener(command []string) Opener {
	return func(ctx context.Context) (Device, error) {
		if len(command) == 0 {
			return nil, errors.New("alert: empty audio command")
		}
		path, err := exec.LookPath(command[0])
		if err != nil {
			return nil, fmt.Errorf("alert: audio player: %w", err)
		}
		return &execDevice{path: path, args: command[1:]}, nil
	}
}

// execDevice starts one player process per Play. It is never suspended.
type execDevice struct {
	path string
	args []string
}

func (d *execDevice) Suspended() bool { return false }

func (d *execDevice) Resume(context.Context) error { return nil }

func (d *execDevice) Play(ctx context.Context, wav []byte) error {
	cmd := exec.CommandContext(ctx, d.path, d.args...)
	cmd.Stdin = bytes.NewReader(wav)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", d.path, err, msg)
		}
		return fmt.Errorf("%s: %w", d.path, err)
	}
	return nil
}

func (d *execDevice) Close() error { return nil }
