// Package rng provides a Fortuna based CSPRNG that is reseeded with
// conditioned entropy.
package rng

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"github.com/aead/serpent"
	"github.com/seehuhn/fortuna"

	"github.com/safing/mibis/config"
	"github.com/safing/mibis/log"
	"github.com/safing/mibis/metrics"
	"github.com/safing/mibis/modules"
)

// Configuration Keys.
const (
	CfgCipherKey           = "random/rng_cipher"
	CfgMinFeedEntropyKey   = "random/min_feed_entropy"
	CfgReseedAfterBytesKey = "random/reseed_after_bytes"
)

var (
	module *modules.Module

	rng       *fortuna.Generator
	rngLock   sync.Mutex
	rngReady  = false
	rngFeeder = make(chan []byte)

	// defaults until the options are registered
	rngCipherOption  config.StringOption = func() string { return "aes" }
	minFeedEntropy   config.IntOption    = func() int64 { return 256 }
	reseedAfterBytes config.IntOption    = func() int64 { return 1000000 }

	registerOnce sync.Once
	registerErr  error

	// ErrNotReady is returned when random data is requested before the RNG
	// was started.
	ErrNotReady = errors.New("rng is not ready yet")
)

func init() {
	module = modules.Register("random", prep, start, stop)
}

func prep() error {
	return RegisterConfig()
}

// RegisterConfig registers the RNG options. It may be called multiple times.
func RegisterConfig() error {
	registerOnce.Do(func() {
		registerErr = registerConfig()
	})
	return registerErr
}

func registerConfig() error {
	err := config.Register(&config.Option{
		Name:            "RNG Cipher",
		Key:             CfgCipherKey,
		Description:     "Cipher to use for the Fortuna RNG. Requires restart to take effect.",
		OptType:         config.OptTypeString,
		ExpertiseLevel:  config.ExpertiseLevelDeveloper,
		RequiresRestart: true,
		DefaultValue:    "aes",
		ValidationRegex: "^(aes|serpent)$",
	})
	if err != nil {
		return err
	}
	rngCipherOption = config.GetAsString(CfgCipherKey, "aes")

	err = config.Register(&config.Option{
		Name:            "Minimum Feed Entropy",
		Key:             CfgMinFeedEntropyKey,
		Description:     "The minimum amount of entropy before a entropy source is feed to the RNG, in bits.",
		OptType:         config.OptTypeInt,
		ExpertiseLevel:  config.ExpertiseLevelDeveloper,
		DefaultValue:    256,
		ValidationRegex: "^[0-9]{3,5}$",
	})
	if err != nil {
		return err
	}
	minFeedEntropy = config.GetAsInt(CfgMinFeedEntropyKey, 256)

	err = config.Register(&config.Option{
		Name:            "Reseed after x bytes",
		Key:             CfgReseedAfterBytesKey,
		Description:     "Number of fetched bytes after which fed entropy is required for a reseed.",
		OptType:         config.OptTypeInt,
		ExpertiseLevel:  config.ExpertiseLevelDeveloper,
		DefaultValue:    1000000, // one megabyte
		ValidationRegex: "^[1-9][0-9]{2,9}$",
	})
	if err != nil {
		return err
	}
	reseedAfterBytes = config.GetAsInt(CfgReseedAfterBytesKey, 1000000)

	return nil
}

func newCipher(key []byte) (cipher.Block, error) {
	cipher := rngCipherOption()
	switch cipher {
	case "aes":
		return aes.NewCipher(key)
	case "serpent":
		return serpent.NewCipher(key)
	default:
		return nil, fmt.Errorf("unknown or unsupported cipher: %s", cipher)
	}
}

func start() error {
	rngLock.Lock()
	defer rngLock.Unlock()

	rng = fortuna.NewGenerator(newCipher)

	// initial seed from the os, the feeders take over from here
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return fmt.Errorf("failed to get initial seed from os: %w", err)
	}
	rng.Reseed(seed)
	rngReady = true

	module.StartWorker("full feeder", fullFeeder)
	return nil
}

func stop() error {
	rngLock.Lock()
	defer rngLock.Unlock()

	rngReady = false
	return nil
}

// fullFeeder reseeds the generator with every pool a Feeder completes.
func fullFeeder(ctx context.Context) error {
	for {
		select {
		case data := <-rngFeeder:
			rngLock.Lock()
			if rngReady {
				rng.Reseed(data)
				bytesSinceReseed = 0
				metrics.RNGReseeds.Inc()
			}
			rngLock.Unlock()
			log.Tracef("random: reseeded with %d bytes", len(data))

		case <-ctx.Done():
			return nil
		}
	}
}
