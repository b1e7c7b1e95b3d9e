package sink

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

const (
	sha3MaxChunks    = 1000
	sha3MinChunkSize = 64
)

// SHA3Bits derives a comparison stream of targetBits bits from data with
// SHA3-256. The data is split into up to 1000 chunks of at least 64 bytes,
// and every chunk is hashed with its index appended as a 4 byte big endian
// counter. If more bits are needed, the whole data is hashed with the
// following counters. Hash bytes are unpacked most significant bit first.
func SHA3Bits(data []byte, targetBits int) []byte {
	if targetBits <= 0 {
		return nil
	}

	hashesNeeded := (targetBits + 255) / 256
	chunkSize := len(data) / min(hashesNeeded, sha3MaxChunks)
	if chunkSize < sha3MinChunkSize {
		chunkSize = sha3MinChunkSize
	}
	chunkHashes := min(hashesNeeded, len(data)/chunkSize)

	bits := make([]byte, 0, hashesNeeded*256)
	salted := make([]byte, 0, max(chunkSize, len(data))+4)

	// hashes of the data chunks
	for i := 0; i < chunkHashes; i++ {
		salted = append(salted[:0], data[i*chunkSize:(i+1)*chunkSize]...)
		salted = binary.BigEndian.AppendUint32(salted, uint32(i))
		bits = appendHashBits(bits, salted)
	}

	// hashes of the whole data
	for i := chunkHashes; i < hashesNeeded; i++ {
		salted = append(salted[:0], data...)
		salted = binary.BigEndian.AppendUint32(salted, uint32(i))
		bits = appendHashBits(bits, salted)
	}

	return bits[:targetBits]
}

func appendHashBits(bits, data []byte) []byte {
	sum := sha3.Sum256(data)
	for _, b := range sum {
		for j := 7; j >= 0; j-- {
			bits = append(bits, (b>>j)&1)
		}
	}
	return bits
}
