package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/dgallion1/narrator/internal/fault"
)

const (
	bitDepth    = 16
	numChannels = 1
	pcmFormat   = 1
)

// SupportedExtensions lists the output formats WriteFile accepts.
var SupportedExtensions = []string{".wav", ".pcm", ".raw"}

// IsSupportedPath reports whether path ends in a writable output extension.
func IsSupportedPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// WriteFile writes seg to path. The format follows the extension: .wav gets
// a 16-bit PCM WAV container, .pcm and .raw get bare s16le samples. The file
// appears atomically; parent directories are created as needed.
func WriteFile(path string, seg Segment) error {
	if !IsSupportedPath(path) {
		return fault.Input("output", fmt.Sprintf("unsupported audio extension %q", filepath.Ext(path)))
	}
	if seg.SampleRate <= 0 {
		return fault.Input("sample_rate", fmt.Sprintf("must be positive, got %d", seg.SampleRate))
	}
	if len(seg.Samples) == 0 {
		return fault.ErrNoAudioProduced
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()

	if strings.EqualFold(filepath.Ext(path), ".wav") {
		err = encodeWAV(f, seg)
	} else {
		_, err = f.Write(EncodePCM16LE(seg.Samples))
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}

func encodeWAV(f *os.File, seg Segment) error {
	enc := wav.NewEncoder(f, seg.SampleRate, bitDepth, numChannels, pcmFormat)
	data := make([]int, len(seg.Samples))
	for i, v := range seg.Samples {
		data[i] = int(toInt16(v))
	}
	err := enc.Write(&goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: numChannels,
			SampleRate:  seg.SampleRate,
		},
		Data:           data,
		SourceBitDepth: bitDepth,
	})
	if err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav: %w", err)
	}
	return nil
}

// ReadWAV decodes a mono 16-bit WAV file written by WriteFile.
func ReadWAV(path string) (Segment, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from the caller
	if err != nil {
		return Segment{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Segment{}, fmt.Errorf("open wav: %s is not a valid wav file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Segment{}, fmt.Errorf("decode wav: %w", err)
	}
	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / 32768
	}
	return Segment{Samples: samples, SampleRate: int(dec.SampleRate)}, nil
}
