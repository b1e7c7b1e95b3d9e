package source

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const wavFormatPCM = 1

// WAVInfo holds the format of a wav stream.
type WAVInfo struct {
	SampleRate    uint32 `json:"sample_rate"`
	Channels      uint16 `json:"channels"`
	BitsPerSample uint16 `json:"bits_per_sample"`
	DataSize      uint32 `json:"data_size_bytes"`
}

// NumSamples returns the number of samples in the data chunk, counting every
// channel.
func (info *WAVInfo) NumSamples() uint32 {
	return info.DataSize / uint32(info.BitsPerSample/8)
}

type chunkHeader struct {
	ID   [4]byte
	Size uint32
}

// NewWAV parses the header of a PCM wav stream and returns a source for its
// samples. Samples of all channels are delivered interleaved, as stored.
func NewWAV(r io.Reader) (*PCM, *WAVInfo, error) {
	var riff struct {
		ChunkID   [4]byte
		ChunkSize uint32
		Format    [4]byte
	}
	if err := binary.Read(r, binary.LittleEndian, &riff); err != nil {
		return nil, nil, fmt.Errorf("%w: failed to read riff header: %w", ErrInvalidWAV, err)
	}
	if string(riff.ChunkID[:]) != "RIFF" {
		return nil, nil, fmt.Errorf("%w: missing RIFF header", ErrInvalidWAV)
	}
	if string(riff.Format[:]) != "WAVE" {
		return nil, nil, fmt.Errorf("%w: missing WAVE format", ErrInvalidWAV)
	}

	var info *WAVInfo
	for {
		var header chunkHeader
		if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
			return nil, nil, fmt.Errorf("%w: missing data chunk: %w", ErrInvalidWAV, err)
		}

		switch string(header.ID[:]) {
		case "fmt ":
			var format struct {
				AudioFormat   uint16
				NumChannels   uint16
				SampleRate    uint32
				ByteRate      uint32
				BlockAlign    uint16
				BitsPerSample uint16
			}
			if header.Size < 16 {
				return nil, nil, fmt.Errorf("%w: fmt chunk too short", ErrInvalidWAV)
			}
			if err := binary.Read(r, binary.LittleEndian, &format); err != nil {
				return nil, nil, fmt.Errorf("%w: failed to read fmt chunk: %w", ErrInvalidWAV, err)
			}
			if err := skip(r, int64(header.Size-16)+int64(header.Size%2)); err != nil {
				return nil, nil, err
			}
			if format.AudioFormat != wavFormatPCM {
				return nil, nil, fmt.Errorf("%w: audio format %d (only PCM is supported)", ErrUnsupportedFormat, format.AudioFormat)
			}
			info = &WAVInfo{
				SampleRate:    format.SampleRate,
				Channels:      format.NumChannels,
				BitsPerSample: format.BitsPerSample,
			}

		case "data":
			if info == nil {
				return nil, nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrInvalidWAV)
			}
			info.DataSize = header.Size
			pcm, err := NewPCM(io.LimitReader(r, int64(header.Size)), uint(info.BitsPerSample))
			if err != nil {
				return nil, nil, err
			}
			if closer, ok := r.(io.Closer); ok {
				pcm.closer = closer
			}
			return pcm, info, nil

		default:
			// skip unknown chunks, such as LIST
			if err := skip(r, int64(header.Size)+int64(header.Size%2)); err != nil {
				return nil, nil, err
			}
		}
	}
}

func skip(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return fmt.Errorf("%w: truncated chunk: %w", ErrInvalidWAV, err)
	}
	return nil
}

// OpenFile opens a sample file. Files ending in .wav are parsed as wav,
// everything else is read as raw PCM of the given width.
func OpenFile(path string, rawWidth uint) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(path), ".wav") {
		pcm, _, err := NewWAV(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		return pcm, nil
	}

	pcm, err := NewPCM(f, rawWidth)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return pcm, nil
}
