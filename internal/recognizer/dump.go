package recognizer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
)

// Dumper writes decoded audio to WAV files for debugging recognition. A nil
// Dumper is valid and writes nothing.
type Dumper struct {
	fs     afero.Fs
	dir    string
	logger *slog.Logger
	seq    atomic.Int64
}

// NewDumper returns a dumper writing into dir on fs.
func NewDumper(fs afero.Fs, dir string, logger *slog.Logger) *Dumper {
	return &Dumper{fs: fs, dir: dir, logger: logger}
}

// Write stores pcm as a 16-bit mono WAV named after label.
func (d *Dumper) Write(label string, pcm []int16, sampleRate int) {
	if d == nil || len(pcm) == 0 {
		return
	}
	path, err := d.write(label, pcm, sampleRate)
	if err != nil {
		if d.logger != nil {
			d.logger.Warn("unable to write debug audio dump", "error", err.Error())
		}
		return
	}
	if d.logger != nil {
		d.logger.Debug("debug audio dump written", "path", path)
	}
}

func (d *Dumper) write(label string, pcm []int16, sampleRate int) (string, error) {
	if err := d.fs.MkdirAll(d.dir, 0o700); err != nil {
		return "", fmt.Errorf("create debug dir: %w", err)
	}

	name := fmt.Sprintf("audio-%s-%s-%03d.wav",
		label,
		time.Now().Format("20060102-150405.000"),
		d.seq.Add(1)%1000,
	)
	path := filepath.Join(d.dir, name)
	file, err := d.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("open debug file %q: %w", path, err)
	}
	defer file.Close()

	encoder := wav.NewEncoder(file, sampleRate, 16, 1, 1)
	if err := encoder.Write(intBuffer(pcm, sampleRate)); err != nil {
		return "", fmt.Errorf("encode wav: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return "", fmt.Errorf("finalize wav: %w", err)
	}
	return path, nil
}

// intBuffer wraps mono s16 samples in a go-audio buffer.
func intBuffer(pcm []int16, sampleRate int) *goaudio.IntBuffer {
	data := make([]int, len(pcm))
	for i, sample := range pcm {
		data[i] = int(sample)
	}
	return &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}
}
