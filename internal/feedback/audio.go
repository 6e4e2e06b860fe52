package feedback

import (
	"context"
	"fmt"
	"os/exec"
)

// Clip keys.  An accepted swipe plays the clip for its action; other
// outcomes play their own clip when configured.
const (
	ClipIn       = "in"
	ClipOut      = "out"
	ClipRejected = "rejected"
	ClipFailed   = "failed"
)

// AudioSink plays a sound file per outcome through an external player
// (aplay, paplay, afplay).
type AudioSink struct {
	// Player is the command and leading arguments; the clip path is
	// appended.  Defaults to "aplay -q".
	Player []string
	// Clips maps clip keys to file paths.  Missing keys are silent.
	Clips map[string]string

	// run is replaced in tests.
	run func(ctx context.Context, name string, args ...string) error
}

func NewAudioSink(player []string, clips map[string]string) *AudioSink {
	if len(player) == 0 {
		player = []string{"aplay", "-q"}
	}
	return &AudioSink{Player: player, Clips: clips, run: runCommand}
}

func (s *AudioSink) Notify(ctx context.Context, ev Event) error {
	path, ok := s.Clips[ClipFor(ev)]
	if !ok || path == "" {
		return nil
	}
	args := append(append([]string{}, s.Player[1:]...), path)
	if err := s.run(ctx, s.Player[0], args...); err != nil {
		return fmt.Errorf("audio %s: %w", path, err)
	}
	return nil
}

// ClipFor returns the clip key for ev, or "" when it plays nothing.
func ClipFor(ev Event) string {
	switch ev.Outcome {
	case OutcomeAccepted:
		if ev.Action == "OUT" {
			return ClipOut
		}
		return ClipIn
	case OutcomeRejected:
		return ClipRejected
	case OutcomeFailed:
		return ClipFailed
	}
	return ""
}

func runCommand(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}
