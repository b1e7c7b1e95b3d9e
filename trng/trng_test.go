package trng

import (
	"context"
	"encoding/binary"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safing/mibis/config"
	"github.com/safing/mibis/pipeline"
	"github.com/safing/mibis/store"
)

func TestConditioner(t *testing.T) { //nolint:paralleltest // Modifies global config.
	require.NoError(t, RegisterConfig())

	// 20000 random 16 bit samples
	rng := rand.New(rand.NewSource(1)) //nolint:gosec
	raw := make([]byte, 40000)
	for i := 0; i < len(raw); i += 2 {
		binary.LittleEndian.PutUint16(raw[i:], uint16(rng.Intn(1<<16)))
	}
	dir := t.TempDir()
	pcmPath := filepath.Join(dir, "samples.pcm")
	require.NoError(t, os.WriteFile(pcmPath, raw, 0o600))

	require.NoError(t, config.SetConfigOption(CfgSourceKey, pcmPath))
	require.NoError(t, config.SetConfigOption(pipeline.CfgBatchSizeKey, 1025))
	defer func() {
		_ = config.SetConfigOption(CfgSourceKey, nil)
		_ = config.SetConfigOption(pipeline.CfgBatchSizeKey, nil)
	}()

	var err error
	db, err = store.Open(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, db.Close())
		db = nil
	}()

	sub := Subscribe()
	var streamed []byte
	done := make(chan struct{})
	go func() {
		defer close(done)
		for chunk := range sub.C {
			streamed = append(streamed, chunk...)
		}
	}()

	// an exhausted file source stops the service worker cleanly
	require.NoError(t, conditioner(context.Background()))

	status := GetStatus()
	assert.False(t, status.Running)
	assert.Equal(t, uint64(1), status.Runs)
	assert.Equal(t, pcmPath, status.Source)

	ids, err := db.Runs()
	require.NoError(t, err)
	require.Len(t, ids, 1)

	// 4 bits of 20000 samples fill 78 batches of 1025 bits
	report := &Report{}
	require.NoError(t, db.LoadReport(ids[0], report))
	assert.Equal(t, ids[0].String(), report.RunID)
	assert.Equal(t, uint64(20000), report.SamplesRead)
	assert.Equal(t, uint64(80000), report.BitsExtracted)
	assert.Equal(t, uint64(78), report.Batches)
	assert.Equal(t, uint64(78*512), report.BitsOutput)
	assert.Equal(t, report.BitsOutput, report.BitsStored)

	packed, bits, err := db.ReadPacked(ids[0])
	require.NoError(t, err)
	assert.Equal(t, report.BitsOutput, bits)
	assert.Len(t, packed, 78*512/8)

	// the subscriber received the packed stream, minus chunks it was too
	// slow for
	sub.Cancel()
	<-done
	assert.Len(t, streamed, len(packed)-int(sub.Dropped())*64)
	if sub.Dropped() == 0 {
		assert.Equal(t, packed, streamed)
	}
}
