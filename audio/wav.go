package audio

import (
	"encoding/binary"
	"fmt"
)

// EncodeWAV wraps mono 16-bit PCM samples in a canonical 44-byte RIFF header.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	dataSize := len(samples) * 2
	buf := make([]byte, WAVHeaderSize+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], uint32(dataSize+36))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:], 1)  // PCM
	binary.LittleEndian.PutUint16(buf[22:], Channels)
	binary.LittleEndian.PutUint32(buf[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:], uint32(sampleRate*Channels*BitsPerSample/8))
	binary.LittleEndian.PutUint16(buf[32:], Channels*BitsPerSample/8)
	binary.LittleEndian.PutUint16(buf[34:], BitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:], uint32(dataSize))

	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[WAVHeaderSize+i*2:], uint16(s))
	}
	return buf
}

// DecodeWAV parses a mono 16-bit PCM WAV file produced by EncodeWAV.
func DecodeWAV(data []byte) ([]int16, int, error) {
	if len(data) < WAVHeaderSize {
		return nil, 0, fmt.Errorf("wav: %d bytes, need at least %d", len(data), WAVHeaderSize)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("wav: missing RIFF/WAVE header")
	}
	if string(data[12:16]) != "fmt " || string(data[36:40]) != "data" {
		return nil, 0, fmt.Errorf("wav: missing fmt/data chunk")
	}
	if format := binary.LittleEndian.Uint16(data[20:]); format != 1 {
		return nil, 0, fmt.Errorf("wav: unsupported audio format %d", format)
	}
	if ch := binary.LittleEndian.Uint16(data[22:]); ch != 1 {
		return nil, 0, fmt.Errorf("wav: unsupported channel count %d", ch)
	}
	if bits := binary.LittleEndian.Uint16(data[34:]); bits != 16 {
		return nil, 0, fmt.Errorf("wav: unsupported bit depth %d", bits)
	}

	sampleRate := int(binary.LittleEndian.Uint32(data[24:]))
	dataSize := int(binary.LittleEndian.Uint32(data[40:]))
	if dataSize > len(data)-WAVHeaderSize {
		dataSize = len(data) - WAVHeaderSize
	}

	samples := make([]int16, dataSize/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[WAVHeaderSize+i*2:]))
	}
	return samples, sampleRate, nil
}
