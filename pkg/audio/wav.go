package audio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// WriteWAVFile writes mono float32 samples as a 16-bit PCM WAV file.
func WriteWAVFile(path string, samples []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audio: create %q: %w", path, err)
	}
	defer f.Close()
	if err := WriteWAV(f, samples, sampleRate); err != nil {
		return fmt.Errorf("audio: write %q: %w", path, err)
	}
	return nil
}

// WriteWAV writes mono float32 samples to out as a 16-bit PCM WAV stream.
func WriteWAV(out io.Writer, samples []float32, sampleRate int) error {
	const (
		numChannels   = 1
		bitsPerSample = 16
		audioFormat   = 1 // PCM
	)
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	pcm := Float32ToPCM16(samples)
	dataSize := uint32(len(pcm))
	byteRate := uint32(sampleRate * numChannels * bitsPerSample / 8)
	blockAlign := uint16(numChannels * bitsPerSample / 8)

	w := bufio.NewWriter(out)

	if _, err := w.WriteString("RIFF"); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(36)+dataSize); err != nil {
		return err
	}
	if _, err := w.WriteString("WAVE"); err != nil {
		return err
	}

	if _, err := w.WriteString("fmt "); err != nil {
		return err
	}
	for _, v := range []any{
		uint32(16), uint16(audioFormat), uint16(numChannels),
		uint32(sampleRate), byteRate, blockAlign, uint16(bitsPerSample),
	} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	if _, err := w.WriteString("data"); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, dataSize); err != nil {
		return err
	}
	if _, err := w.Write(pcm); err != nil {
		return err
	}
	return w.Flush()
}

// DecodeWAV parses a RIFF/WAVE container holding 16-bit PCM and returns the
// samples as mono float32 plus the container's sample rate. Stereo input is
// downmixed to mono.
//
// The RIFF chunks are walked rather than assuming a fixed 44-byte header
// because the fmt chunk size may vary between encoders.
func DecodeWAV(wav []byte) ([]float32, int, error) {
	if len(wav) < 12 {
		return nil, 0, errors.New("audio: WAV data too short to be a valid RIFF file")
	}
	if string(wav[0:4]) != "RIFF" {
		return nil, 0, errors.New("audio: missing RIFF header")
	}
	if string(wav[8:12]) != "WAVE" {
		return nil, 0, errors.New("audio: missing WAVE identifier")
	}

	var (
		sampleRate = 0
		channels   = 1
		foundFmt   = false
	)

	offset := 12
	for offset+8 <= len(wav) {
		chunkID := string(wav[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))

		switch chunkID {
		case "fmt ":
			if chunkSize >= 16 && offset+8+16 <= len(wav) {
				fmtData := wav[offset+8:]
				channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
				sampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
				if channels <= 0 {
					return nil, 0, fmt.Errorf("audio: invalid channel count %d", channels)
				}
				if sampleRate <= 0 {
					return nil, 0, fmt.Errorf("audio: invalid sample rate %d", sampleRate)
				}
				foundFmt = true
			}
		case "data":
			if !foundFmt {
				return nil, 0, errors.New("audio: data chunk before fmt chunk")
			}
			end := offset + 8 + chunkSize
			if end > len(wav) {
				end = len(wav)
			}
			samples := PCM16ToFloat32(wav[offset+8 : end])
			if channels == 2 {
				samples = StereoToMono(samples)
			}
			return samples, sampleRate, nil
		}

		// Chunks are word-aligned: pad by 1 if the size is odd.
		offset += 8 + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return nil, 0, errors.New("audio: missing data chunk")
}
