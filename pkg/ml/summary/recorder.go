// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package summary records diagnostics (scalars, histograms and images) of a model into event files, so they can
// be inspected or plotted after (or during) training.
//
// A Recorder holds the registered streams: named variables whose statistics are to be logged. Merge combines all
// streams registered so far into one Merged object, that evaluates all of them at once. A Writer is a sink: it
// appends events to a JSON-lines file in its directory, and saves images as PNG files next to it.
package summary

import (
	"fmt"
	"math"
	"slices"

	"github.com/gomlx/compute/dtypes"
	"github.com/gomlx/compute/dtypes/float16"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// NumHistogramBuckets is the number of buckets of the histograms.
const NumHistogramBuckets = 30

// Options selects which statistics of a stream are recorded, besides its histogram, which is always recorded.
type Options struct {
	Mean, Stddev, Max, Min bool
}

// Stream is a variable registered for instrumentation.
type Stream struct {
	// Tag identifies the stream in the event files, e.g. "weights/L1".
	Tag      string
	Variable *context.Variable
	Options  Options
}

// Recorder holds the registered streams. It's not safe for concurrent use.
type Recorder struct {
	streams []*Stream
	byTag   map[string]*Stream
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{byTag: make(map[string]*Stream)}
}

// Register the variable v under "<scope>/<name>".
//
// Registering the same variable twice under the same tag is a no-op (it happens when a graph is traced again).
// If the tag is already used by a different variable, a numeric suffix is appended to make it unique.
// It returns the stream registered.
func (r *Recorder) Register(scope, name string, v *context.Variable, opts Options) *Stream {
	tag := scope + "/" + name
	if existing, found := r.byTag[tag]; found {
		if existing.Variable == v {
			return existing
		}
		for i := 1; ; i++ {
			candidate := fmt.Sprintf("%s_%d", tag, i)
			existing, found = r.byTag[candidate]
			if !found {
				tag = candidate
				break
			}
			if existing.Variable == v {
				return existing
			}
		}
	}
	stream := &Stream{Tag: tag, Variable: v, Options: opts}
	r.streams = append(r.streams, stream)
	r.byTag[tag] = stream
	return stream
}

// Len returns the number of streams registered.
func (r *Recorder) Len() int { return len(r.streams) }

// Streams returns the streams registered, in order of registration.
func (r *Recorder) Streams() []*Stream { return slices.Clone(r.streams) }

// Merge all streams registered so far into one Merged object.
// Streams registered after the call are not included.
func (r *Recorder) Merge() *Merged {
	return &Merged{streams: slices.Clone(r.streams)}
}

// Merged evaluates a fixed set of streams at once.
type Merged struct {
	streams []*Stream
}

// Tags returns the tags of the merged streams.
func (m *Merged) Tags() []string {
	tags := make([]string, 0, len(m.streams))
	for _, s := range m.streams {
		tags = append(tags, s.Tag)
	}
	return tags
}

// Evaluate reads the current value of every merged stream and returns the corresponding events for the given step.
// Statistics use tags "<tag>/mean", "<tag>/stddev", "<tag>/max" and "<tag>/min", and the histogram uses the stream tag.
func (m *Merged) Evaluate(step int64) ([]Event, error) {
	var events []Event
	for _, s := range m.streams {
		value, err := s.Variable.Value()
		if err != nil {
			return nil, errors.WithMessagef(err, "reading value of variable %q for summary %q",
				s.Variable.ScopeAndName(), s.Tag)
		}
		values, err := HostValues(value)
		if err != nil {
			return nil, errors.WithMessagef(err, "summary %q", s.Tag)
		}
		if len(values) == 0 {
			continue
		}
		mean, stddev := stat.PopMeanStdDev(values, nil)
		if s.Options.Mean {
			events = append(events, ScalarEvent(step, s.Tag+"/mean", mean))
		}
		if s.Options.Stddev {
			events = append(events, ScalarEvent(step, s.Tag+"/stddev", stddev))
		}
		if s.Options.Max {
			events = append(events, ScalarEvent(step, s.Tag+"/max", floats.Max(values)))
		}
		if s.Options.Min {
			events = append(events, ScalarEvent(step, s.Tag+"/min", floats.Min(values)))
		}
		events = append(events, Event{Step: step, Tag: s.Tag, Histogram: NewHistogram(values)})
	}
	return events, nil
}

// HostValues converts the values of a float tensor to a flat []float64.
func HostValues(t *tensors.Tensor) ([]float64, error) {
	switch t.Shape().DType {
	case dtypes.Float32:
		return toFloat64(tensors.MustCopyFlatData[float32](t), func(v float32) float64 { return float64(v) }), nil
	case dtypes.Float64:
		return tensors.MustCopyFlatData[float64](t), nil
	case dtypes.Float16:
		return toFloat64(tensors.MustCopyFlatData[float16.Float16](t),
			func(v float16.Float16) float64 { return float64(v.Float32()) }), nil
	}
	return nil, errors.Errorf("summaries only support float tensors, got dtype %s", t.Shape().DType)
}

func toFloat64[T any](values []T, conv func(T) float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = conv(v)
	}
	return out
}

// Histogram of the values of a stream.
type Histogram struct {
	Min, Max, Sum float64
	Count         int

	// BucketLimits holds the upper limit of each bucket.
	BucketLimits []float64
	Buckets      []float64
}

// NewHistogram builds a histogram with NumHistogramBuckets buckets evenly spread between the min and max of values.
// values must not be empty.
func NewHistogram(values []float64) *Histogram {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	lower, upper := sorted[0], sorted[len(sorted)-1]
	h := &Histogram{Min: lower, Max: upper, Sum: floats.Sum(sorted), Count: len(sorted)}
	if upper <= lower {
		upper = lower + 1
	}
	dividers := make([]float64, NumHistogramBuckets+1)
	floats.Span(dividers, lower, upper)
	// The last divider must be strictly larger than every value.
	dividers[NumHistogramBuckets] = math.Nextafter(upper, math.Inf(1))
	h.Buckets = stat.Histogram(nil, dividers, sorted, nil)
	h.BucketLimits = dividers[1:]
	return h
}
