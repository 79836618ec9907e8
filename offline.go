package hifi

import (
	"encoding/binary"

	"github.com/claudioshg/hifi/internal/mixer"
)

// RenderReverb traces the environment from a fixed pose, mixes one inbound
// batch, and returns the first `seconds` of the wet reverb mix as 16-bit
// stereo-interleaved PCM. No audio device is touched; use it for tests and
// offline inspection of a room's response.
func RenderReverb(oracle RayHitOracle, pose ListenerPose, params Parameters, input []byte, sampleRate int, seconds float64) ([]byte, error) {
	sink := mixer.NewBuffer(sampleRate)
	r, err := New(oracle, pose, sink, sampleRate, WithParameters(params), WithRandSeed(1))
	if err != nil {
		return nil, err
	}
	r.Render()
	if err := r.AddSamples(input, 0); err != nil {
		return nil, err
	}
	frames := int(float64(sampleRate) * seconds)
	return sink.Drain(frames), nil
}

// EncodeWAVInt16LE wraps 16-bit little-endian PCM in a WAV container.
func EncodeWAVInt16LE(pcm []byte, sampleRate int, channels int) []byte {
	dataSize := len(pcm)
	byteRate := sampleRate * channels * 2
	blockAlign := channels * 2
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 1)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 16)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	copy(out[44:], pcm)
	return out
}
