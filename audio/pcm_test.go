package audio

import (
	"math"
	"testing"
)

func TestPCM16RoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 0.25, -0.25}
	out := DecodePCM16(EncodePCM16(in))
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if math.Abs(float64(out[i]-in[i])) > 1.0/32768 {
			t.Fatalf("sample %d = %f, want %f", i, out[i], in[i])
		}
	}
}

func TestEncodePCM16Clamps(t *testing.T) {
	data := EncodePCM16([]float32{2.0, -2.0})
	out := DecodePCM16(data)
	if out[0] < 0.99 {
		t.Fatalf("positive overdrive clamped to %f", out[0])
	}
	if out[1] > -0.99 {
		t.Fatalf("negative overdrive clamped to %f", out[1])
	}
}

func TestDecodePCM16IgnoresOddByte(t *testing.T) {
	out := DecodePCM16([]byte{0, 0, 0xff})
	if len(out) != 1 {
		t.Fatalf("len = %d, want 1", len(out))
	}
}

func TestStereoToMonoKeepsLeft(t *testing.T) {
	// Two frames: L=1, R=2 then L=3, R=4 (16-bit LE).
	stereo := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	mono := StereoToMono(stereo)
	if len(mono) != 4 {
		t.Fatalf("len = %d, want 4", len(mono))
	}
	if mono[0] != 1 || mono[2] != 3 {
		t.Fatalf("left channel not preserved: %v", mono)
	}
}
