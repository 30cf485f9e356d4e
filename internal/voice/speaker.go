package voice

import (
	"context"
	"os/exec"
)

// Utterance is one spoken notification handed to a text-to-speech engine
type Utterance struct {
	Text   string
	Locale string
	Rate   float64 // words-per-minute multiplier, 1.0 = engine default
	Pitch  float64 // 0..2, 1.0 = engine default
	Volume float64 // 0..1
}

// Speaker is the external text-to-speech collaborator. Speak blocks until
// the utterance finishes or ctx is cancelled; the emitter treats it as
// fire-and-forget and never propagates its errors.
type Speaker interface {
	Speak(ctx context.Context, u Utterance) error
}

// CommandSpeaker drives a command-line TTS engine (espeak, say, flite).
// The utterance text is appended as the final argument.
type CommandSpeaker struct {
	binary string
	args   []string
}

// NewCommandSpeaker creates a speaker backed by the given binary
func NewCommandSpeaker(binary string, args ...string) *CommandSpeaker {
	return &CommandSpeaker{binary: binary, args: args}
}

// Speak runs the TTS command; cancelling ctx kills the process mid-utterance
func (s *CommandSpeaker) Speak(ctx context.Context, u Utterance) error {
	args := append(append([]string(nil), s.args...), u.Text)
	cmd := exec.CommandContext(ctx, s.binary, args...)
	return cmd.Run()
}
