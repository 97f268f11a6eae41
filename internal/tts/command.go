package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/dgallion1/narrator/internal/audio"
	"github.com/dgallion1/narrator/internal/fault"
)

// CommandSynthesizer runs a local speech engine once per chunk. The text is
// written to the command's stdin and raw mono s16le PCM is read from stdout,
// e.g. `piper --model en_US-lessac-medium.onnx --output-raw`.
//
// Arguments may contain {language} and {speaker}, replaced per call.
type CommandSynthesizer struct {
	path       string
	args       []string
	sampleRate int
}

// NewCommandSynthesizer resolves command[0] on PATH.
func NewCommandSynthesizer(command []string, sampleRate int) (*CommandSynthesizer, error) {
	if len(command) == 0 || strings.TrimSpace(command[0]) == "" {
		return nil, fault.Input("tts_command", "empty command")
	}
	if sampleRate <= 0 {
		return nil, fault.Input("tts_sample_rate", fmt.Sprintf("must be positive, got %d", sampleRate))
	}
	path, err := exec.LookPath(command[0])
	if err != nil {
		return nil, fault.Backend("tts-command", "lookup", err)
	}
	return &CommandSynthesizer{
		path:       path,
		args:       append([]string(nil), command[1:]...),
		sampleRate: sampleRate,
	}, nil
}

func (s *CommandSynthesizer) SampleRate() int { return s.sampleRate }

func (s *CommandSynthesizer) Close() error { return nil }

func (s *CommandSynthesizer) Synthesize(ctx context.Context, text, language, speaker string) ([]float32, error) {
	r := strings.NewReplacer("{language}", language, "{speaker}", speaker)
	args := make([]string, len(s.args))
	for i, a := range s.args {
		args[i] = r.Replace(a)
	}

	cmd := exec.CommandContext(ctx, s.path, args...) // #nosec G204 - command comes from operator config
	cmd.Stdin = strings.NewReader(text)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, fault.Truncate(msg, 500))
		}
		return nil, fault.Backend("tts-command", "synthesize", err)
	}
	return audio.DecodePCM16LE(stdout.Bytes()), nil
}
