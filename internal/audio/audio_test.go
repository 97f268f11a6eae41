package audio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/narrator/internal/fault"
)

func TestConcat(t *testing.T) {
	a := Segment{Samples: []float32{0.1, 0.2}, SampleRate: 16000}
	b := Segment{Samples: []float32{0.3}, SampleRate: 16000}

	got, err := Concat(16000, a, b)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, got.Samples)
	assert.Equal(t, 16000, got.SampleRate)

	_, err = Concat(16000, a, Segment{Samples: []float32{1}, SampleRate: 24000})
	assert.True(t, errors.Is(err, fault.ErrInput))

	_, err = Concat(0)
	assert.True(t, errors.Is(err, fault.ErrInput))
}

func TestSegmentDuration(t *testing.T) {
	seg := Segment{Samples: make([]float32, 12000), SampleRate: 24000}
	assert.Equal(t, 500*time.Millisecond, seg.Duration())
	assert.Zero(t, Segment{Samples: []float32{1}}.Duration())
}

func TestPCM16RoundTrip(t *testing.T) {
	raw := EncodePCM16LE([]float32{0, 0.5, -0.5, 2, -2})
	require.Len(t, raw, 10)

	got := DecodePCM16LE(raw)
	require.Len(t, got, 5)
	assert.Zero(t, got[0])
	assert.InDelta(t, 0.5, got[1], 1e-3)
	assert.InDelta(t, -0.5, got[2], 1e-3)
	assert.InDelta(t, 1, got[3], 1e-3)
	assert.Equal(t, float32(-1), got[4])

	assert.Len(t, DecodePCM16LE([]byte{1, 2, 3}), 1)
}

func TestWriteFile_WAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out", "story.wav")
	seg := Segment{Samples: []float32{0, 0.25, -0.25, 0.5}, SampleRate: 22050}

	require.NoError(t, WriteFile(path, seg))

	back, err := ReadWAV(path)
	require.NoError(t, err)
	assert.Equal(t, 22050, back.SampleRate)
	require.Len(t, back.Samples, 4)
	assert.InDelta(t, 0.25, back.Samples[1], 1e-3)
	assert.InDelta(t, -0.25, back.Samples[2], 1e-3)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file should be renamed away")
}

func TestWriteFile_RawPCM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pcm")
	require.NoError(t, WriteFile(path, Segment{Samples: []float32{0.5, -0.5}, SampleRate: 24000}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, EncodePCM16LE([]float32{0.5, -0.5}), raw)
}

func TestWriteFile_SilenceIsAudio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pause.wav")
	require.NoError(t, WriteFile(path, Segment{Samples: make([]float32, 64), SampleRate: 24000}))

	seg, err := ReadWAV(path)
	require.NoError(t, err)
	assert.Len(t, seg.Samples, 64)
	for _, v := range seg.Samples {
		assert.Zero(t, v)
	}
}

func TestWriteFile_Rejects(t *testing.T) {
	dir := t.TempDir()

	err := WriteFile(filepath.Join(dir, "sub", "out.mp3"), Segment{Samples: []float32{1}, SampleRate: 24000})
	assert.True(t, errors.Is(err, fault.ErrInput))
	_, statErr := os.Stat(filepath.Join(dir, "sub"))
	assert.True(t, os.IsNotExist(statErr), "nothing should be created for a rejected extension")

	empty := filepath.Join(dir, "empty.wav")
	err = WriteFile(empty, Segment{SampleRate: 24000})
	assert.True(t, errors.Is(err, fault.ErrNoAudioProduced))
	_, statErr = os.Stat(empty)
	assert.True(t, os.IsNotExist(statErr))

	err = WriteFile(filepath.Join(dir, "rate.wav"), Segment{Samples: []float32{1}})
	assert.True(t, errors.Is(err, fault.ErrInput))
}
