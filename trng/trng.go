// Package trng runs the conditioning pipeline as a service: conditioned bits
// reseed the RNG, are broadcast to stream subscribers and may be kept in a
// chunk store.
package trng

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"github.com/safing/mibis/config"
	"github.com/safing/mibis/formats/dsd"
	"github.com/safing/mibis/log"
	"github.com/safing/mibis/modules"
	"github.com/safing/mibis/pipeline"
	"github.com/safing/mibis/sink"
	"github.com/safing/mibis/source"
	"github.com/safing/mibis/store"
)

// Configuration Keys.
const (
	CfgSourceKey     = "trng/source"
	CfgJitterTickKey = "trng/jitter_tick_us"
	CfgStorePathKey  = "trng/store_path"
)

// SourceJitter selects the scheduler jitter source.
const SourceJitter = "jitter"

var (
	module *modules.Module

	registerOnce sync.Once
	registerErr  error

	sourceSetting config.StringOption
	jitterTick    config.IntOption
	storePath     config.StringOption

	broadcast = sink.NewBroadcast()

	activeLock sync.RWMutex
	active     *run
	runs       uint64
	db         *store.Store
)

type run struct {
	pipeline *pipeline.Pipeline
	feeder   *sink.Feeder
	writer   *store.RunWriter
	started  time.Time
}

func init() {
	module = modules.Register("trng", prep, start, stop, "random")
}

// RegisterConfig registers the service options and the pipeline options.
func RegisterConfig() error {
	registerOnce.Do(func() {
		registerErr = registerConfig()
	})
	return registerErr
}

func registerConfig() error {
	if err := pipeline.RegisterConfig(); err != nil {
		return err
	}

	for _, opt := range []*config.Option{
		{
			Name:            "Sample Source",
			Key:             CfgSourceKey,
			Description:     `Where samples are read from: "jitter" or the path of a wav or raw pcm file.`,
			OptType:         config.OptTypeString,
			DefaultValue:    SourceJitter,
			RequiresRestart: true,
		},
		{
			Name:            "Jitter Tick",
			Key:             CfgJitterTickKey,
			Description:     "Timer interval of the jitter source in microseconds.",
			OptType:         config.OptTypeInt,
			ExpertiseLevel:  config.ExpertiseLevelDeveloper,
			DefaultValue:    source.DefaultJitterTick.Microseconds(),
			ValidationRegex: "^[1-9][0-9]{0,5}$",
			RequiresRestart: true,
		},
		{
			Name:            "Store Path",
			Key:             CfgStorePathKey,
			Description:     "Path of the database conditioned output is kept in. Leave empty to not keep any output.",
			OptType:         config.OptTypeString,
			ExpertiseLevel:  config.ExpertiseLevelExpert,
			DefaultValue:    "",
			RequiresRestart: true,
		},
	} {
		if err := config.Register(opt); err != nil {
			return err
		}
	}

	sourceSetting = config.GetAsString(CfgSourceKey, SourceJitter)
	jitterTick = config.GetAsInt(CfgJitterTickKey, source.DefaultJitterTick.Microseconds())
	storePath = config.GetAsString(CfgStorePathKey, "")
	return nil
}

func prep() error {
	return RegisterConfig()
}

func start() error {
	if path := storePath(); path != "" {
		var err error
		db, err = store.Open(path)
		if err != nil {
			return err
		}
	}

	module.StartServiceWorker("conditioner", 0, conditioner)
	return nil
}

func stop() error {
	_ = broadcast.Close()
	if db != nil {
		return db.Close()
	}
	return nil
}

func openSource() (source.Source, error) {
	setting := sourceSetting()
	if setting == SourceJitter {
		return source.NewJitter(time.Duration(jitterTick()) * time.Microsecond), nil
	}

	width, err := pipeline.SampleWidthFromConfig()
	if err != nil {
		return nil, err
	}
	return source.OpenFile(setting, width)
}

// conditioner runs one pipeline until its source ends. Faults return an
// error, so that the service worker restarts it with a new pipeline.
func conditioner(ctx context.Context) error {
	opts, err := pipeline.OptionsFromConfig()
	if err != nil {
		return err
	}
	src, err := openSource()
	if err != nil {
		return err
	}
	defer func() {
		_ = src.Close()
	}()

	p, err := pipeline.New("trng", src, opts)
	if err != nil {
		return err
	}

	r := &run{
		pipeline: p,
		feeder:   sink.NewFeeder(),
		started:  time.Now(),
	}
	defer func() {
		_ = r.feeder.Close()
	}()

	out := sink.Multi{r.feeder, broadcast}
	if db != nil {
		r.writer = db.NewRunWriter(p.ID(), store.DefaultChunkBits)
		out = append(out, r.writer)
	}

	activeLock.Lock()
	active = r
	runs++
	activeLock.Unlock()
	defer func() {
		activeLock.Lock()
		active = nil
		activeLock.Unlock()
	}()

	err = p.Run(ctx, out, 0)
	if r.writer != nil {
		if closeErr := r.writer.Close(); closeErr != nil {
			log.Errorf("trng: failed to close stored output of run %s: %s", p.ID(), closeErr)
		}
		if saveErr := db.SaveReport(p.ID(), newReport(r), dsd.CBOR); saveErr != nil {
			log.Errorf("trng: failed to save report of run %s: %s", p.ID(), saveErr)
		}
	}

	switch {
	case errors.Is(err, pipeline.ErrSourceExhausted):
		log.Warningf("trng: source %s is exhausted, conditioner stopped", sourceSetting())
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	case err != nil:
		return fmt.Errorf("pipeline %s failed: %w", p.ID(), err)
	default:
		return nil
	}
}

// Status describes the state of the service.
type Status struct {
	Running     bool
	Runs        uint64
	RunID       *uuid.UUID `json:",omitempty" yaml:",omitempty"`
	Source      string
	MixerMode   string
	BatchSize   int
	Since       *time.Time     `json:",omitempty" yaml:",omitempty"`
	Stats       pipeline.Stats `json:",omitempty" yaml:",omitempty"`
	FedToRNG    uint64
	Subscribers int
}

// GetStatus returns the current status of the service.
func GetStatus() *Status {
	activeLock.RLock()
	defer activeLock.RUnlock()

	status := &Status{
		Runs:        runs,
		Subscribers: broadcast.Subscribers(),
	}
	if sourceSetting != nil {
		status.Source = sourceSetting()
	}
	if active == nil {
		return status
	}

	id := active.pipeline.ID()
	since := active.started
	opts := active.pipeline.Options()
	status.Running = true
	status.RunID = &id
	status.Since = &since
	status.MixerMode = string(opts.MixerMode)
	status.BatchSize = opts.BatchSize
	status.Stats = active.pipeline.Stats()
	status.FedToRNG = active.feeder.Fed()
	return status
}

// Subscribe returns a subscription to the packed conditioned output.
func Subscribe() *sink.Subscription {
	return broadcast.Subscribe()
}

// Report summarizes a finished run.
type Report struct {
	RunID         string
	Started       time.Time
	Duration      time.Duration
	SamplesRead   uint64
	BitsExtracted uint64
	Batches       uint64
	BitsOutput    uint64
	BitsStored    uint64
	BitsFedToRNG  uint64
}

func newReport(r *run) *Report {
	stats := r.pipeline.Stats()
	report := &Report{
		RunID:         r.pipeline.ID().String(),
		Started:       r.started,
		Duration:      stats.Duration,
		SamplesRead:   stats.SamplesRead,
		BitsExtracted: stats.BitsExtracted,
		Batches:       stats.Batches,
		BitsOutput:    stats.BitsOutput,
		BitsFedToRNG:  r.feeder.Fed(),
	}
	if r.writer != nil {
		report.BitsStored = r.writer.Written()
	}
	return report
}
