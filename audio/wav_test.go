package audio

import (
	"encoding/binary"
	"testing"
)

func TestWAVRoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768, 1000, -1000}
	data := EncodeWAV(in, SampleRate)

	out, rate, err := DecodeWAV(data)
	if err != nil {
		t.Fatal(err)
	}
	if rate != SampleRate {
		t.Fatalf("rate = %d, want %d", rate, SampleRate)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d = %d, want %d", i, out[i], in[i])
		}
	}
}

func TestWAVHeaderFields(t *testing.T) {
	samples := make([]int16, 480)
	data := EncodeWAV(samples, SampleRate)

	if len(data) != WAVHeaderSize+len(samples)*2 {
		t.Fatalf("total size = %d", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatal("bad RIFF/WAVE magic")
	}
	dataSize := len(samples) * 2
	if got := binary.LittleEndian.Uint32(data[4:]); got != uint32(dataSize+36) {
		t.Fatalf("riff size = %d, want %d", got, dataSize+36)
	}
	if got := binary.LittleEndian.Uint16(data[20:]); got != 1 {
		t.Fatalf("format = %d, want 1 (PCM)", got)
	}
	if got := binary.LittleEndian.Uint16(data[22:]); got != 1 {
		t.Fatalf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(data[24:]); got != SampleRate {
		t.Fatalf("sample rate = %d", got)
	}
	if got := binary.LittleEndian.Uint32(data[28:]); got != SampleRate*2 {
		t.Fatalf("byte rate = %d, want %d", got, SampleRate*2)
	}
	if got := binary.LittleEndian.Uint16(data[34:]); got != 16 {
		t.Fatalf("bit depth = %d, want 16", got)
	}
	if got := binary.LittleEndian.Uint32(data[40:]); got != uint32(dataSize) {
		t.Fatalf("data size = %d, want %d", got, dataSize)
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	cases := map[string][]byte{
		"too short": make([]byte, 10),
		"bad magic": make([]byte, 64),
	}
	for name, data := range cases {
		if _, _, err := DecodeWAV(data); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestDecodeWAVRejectsStereo(t *testing.T) {
	data := EncodeWAV([]int16{1, 2, 3, 4}, SampleRate)
	binary.LittleEndian.PutUint16(data[22:], 2)
	if _, _, err := DecodeWAV(data); err == nil {
		t.Fatal("expected stereo rejection")
	}
}
