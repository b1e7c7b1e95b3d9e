// Package metrics exposes the counters of the conditioning pipeline and the
// random number generator in the prometheus text format.
package metrics

import (
	"fmt"
	"io"
	"regexp"
	"sync"

	vm "github.com/VictoriaMetrics/metrics"
)

var (
	prometheusFormat = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

	pipelinesLock sync.Mutex
	pipelines     = make(map[string]*Pipeline)
)

// Pipeline holds the metrics of one named conditioning pipeline.
type Pipeline struct {
	Name string

	SamplesRead   *vm.Counter
	BitsExtracted *vm.Counter
	BatchesMixed  *vm.Counter
	BitsOutput    *vm.Counter
	BitsDiscarded *vm.Counter
	SourceFaults  *vm.Counter

	MixDuration   *vm.Histogram
	DrainDuration *vm.Histogram
}

// ForPipeline returns the metrics of the pipeline with the given name. The
// name must be a valid prometheus label value without quotes.
func ForPipeline(name string) (*Pipeline, error) {
	if !prometheusFormat.MatchString(name) {
		return nil, fmt.Errorf("metrics: invalid pipeline name %q", name)
	}

	pipelinesLock.Lock()
	defer pipelinesLock.Unlock()

	if p, ok := pipelines[name]; ok {
		return p, nil
	}

	label := fmt.Sprintf(`{pipeline=%q}`, name)
	p := &Pipeline{
		Name:          name,
		SamplesRead:   vm.GetOrCreateCounter("mibis_samples_read_total" + label),
		BitsExtracted: vm.GetOrCreateCounter("mibis_bits_extracted_total" + label),
		BatchesMixed:  vm.GetOrCreateCounter("mibis_batches_mixed_total" + label),
		BitsOutput:    vm.GetOrCreateCounter("mibis_bits_output_total" + label),
		BitsDiscarded: vm.GetOrCreateCounter("mibis_bits_discarded_total" + label),
		SourceFaults:  vm.GetOrCreateCounter("mibis_source_faults_total" + label),
		MixDuration:   vm.GetOrCreateHistogram("mibis_mix_duration_seconds" + label),
		DrainDuration: vm.GetOrCreateHistogram("mibis_drain_duration_seconds" + label),
	}
	pipelines[name] = p
	return p, nil
}

// RNG metrics.
var (
	RNGReseeds   = vm.NewCounter("mibis_rng_reseeds_total")
	RNGBytesRead = vm.NewCounter("mibis_rng_bytes_read_total")
	RNGFeedBytes = vm.NewCounter("mibis_rng_feed_bytes_total")
)

// WritePrometheus writes all metrics, including go runtime and process
// metrics, in the prometheus text format.
func WritePrometheus(w io.Writer) {
	vm.WritePrometheus(w, true)
}
