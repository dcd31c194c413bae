package audio

import "encoding/binary"

// DecodePCM16 converts little-endian 16-bit PCM bytes to normalized samples.
// A trailing odd byte is ignored.
func DecodePCM16(data []byte) []float32 {
	n := len(data) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(data[i*2:]))
		out[i] = float32(s) / 32768.0
	}
	return out
}

// EncodePCM16 converts normalized samples to little-endian 16-bit PCM bytes.
// Samples are clamped to [-1, 1] before scaling.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(clampSample(s)))
	}
	return out
}

func clampSample(s float32) int16 {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	if s < 0 {
		return int16(s * 0x8000)
	}
	return int16(s * 0x7fff)
}

// StereoToMono keeps the left channel of interleaved 16-bit stereo PCM.
func StereoToMono(stereo []byte) []byte {
	frames := len(stereo) / 4
	mono := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		mono[i*2] = stereo[i*4]
		mono[i*2+1] = stereo[i*4+1]
	}
	return mono
}
