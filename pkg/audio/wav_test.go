package audio

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"
)

func TestWAVRoundTrip(t *testing.T) {
	t.Parallel()

	in := make([]float32, 480)
	for i := range in {
		in[i] = float32(math.Sin(float64(i) * 0.05))
	}

	var buf bytes.Buffer
	if err := WriteWAV(&buf, in, 22050); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}

	out, rate, err := DecodeWAV(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != 22050 {
		t.Errorf("sample rate: want 22050, got %d", rate)
	}
	if len(out) != len(in) {
		t.Fatalf("length: want %d, got %d", len(in), len(out))
	}
	for i := range in {
		if diff := math.Abs(float64(out[i] - in[i])); diff > 1.0/32000 {
			t.Fatalf("sample %d: want ~%f, got %f", i, in[i], out[i])
		}
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	t.Parallel()

	cases := map[string][]byte{
		"too short":  {1, 2, 3},
		"no riff":    []byte("NOPExxxxWAVE"),
		"no wave":    []byte("RIFFxxxxNOPE"),
		"no data":    append([]byte("RIFF\x00\x00\x00\x00WAVE"), []byte("fmt \x10\x00\x00\x00\x01\x00\x01\x00\x80>\x00\x00\x00}\x00\x00\x02\x00\x10\x00")...),
	}
	for name, wav := range cases {
		if _, _, err := DecodeWAV(wav); err == nil {
			t.Errorf("%s: want error, got nil", name)
		}
	}
}

func TestDecodeWAVRejectsInvalidFmt(t *testing.T) {
	t.Parallel()

	build := func(channels uint16, rate uint32) []byte {
		var buf bytes.Buffer
		buf.WriteString("RIFF")
		writeLE(&buf, uint32(36+4))
		buf.WriteString("WAVE")
		buf.WriteString("fmt ")
		writeLE(&buf, uint32(16))
		writeLE(&buf, uint16(1)) // PCM
		writeLE(&buf, channels)
		writeLE(&buf, rate)
		writeLE(&buf, rate*uint32(channels)*2)
		writeLE(&buf, uint16(channels*2))
		writeLE(&buf, uint16(16))
		buf.WriteString("data")
		writeLE(&buf, uint32(4))
		buf.Write([]byte{0, 0, 0, 0})
		return buf.Bytes()
	}

	if _, _, err := DecodeWAV(build(1, 0)); err == nil {
		t.Error("zero sample rate: want error, got nil")
	}
	if _, _, err := DecodeWAV(build(0, 16000)); err == nil {
		t.Error("zero channels: want error, got nil")
	}
	if _, _, err := DecodeWAV(build(1, 16000)); err != nil {
		t.Errorf("valid fmt: want nil, got %v", err)
	}
}

func TestWriteWAVFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.wav")
	if err := WriteWAVFile(path, []float32{0, 0.25, -0.25}, 16000); err != nil {
		t.Fatalf("WriteWAVFile: %v", err)
	}
}

func TestDecodeWAVDownmixesStereo(t *testing.T) {
	t.Parallel()

	// Hand-build a stereo container: two frames, L=1.0 R=0.0 then L=0.5 R=0.5.
	stereo := []float32{1, 0, 0.5, 0.5}
	pcm := Float32ToPCM16(stereo)

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	writeLE(&buf, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	writeLE(&buf, uint32(16))
	writeLE(&buf, uint16(1)) // PCM
	writeLE(&buf, uint16(2)) // stereo
	writeLE(&buf, uint32(16000))
	writeLE(&buf, uint32(16000*2*2))
	writeLE(&buf, uint16(4))
	writeLE(&buf, uint16(16))
	buf.WriteString("data")
	writeLE(&buf, uint32(len(pcm)))
	buf.Write(pcm)

	out, rate, err := DecodeWAV(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != 16000 {
		t.Errorf("rate: want 16000, got %d", rate)
	}
	if len(out) != 2 {
		t.Fatalf("mono length: want 2, got %d", len(out))
	}
	if math.Abs(float64(out[0]-0.5)) > 0.001 || math.Abs(float64(out[1]-0.5)) > 0.001 {
		t.Errorf("downmix: want [0.5 0.5], got %v", out)
	}
}

func writeLE(buf *bytes.Buffer, v any) {
	switch x := v.(type) {
	case uint16:
		buf.WriteByte(byte(x))
		buf.WriteByte(byte(x >> 8))
	case uint32:
		buf.WriteByte(byte(x))
		buf.WriteByte(byte(x >> 8))
		buf.WriteByte(byte(x >> 16))
		buf.WriteByte(byte(x >> 24))
	}
}
