// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package summary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/core/tensors/images"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	// EventsFileName is the name of the JSON-lines file, in the writer directory, where events are appended.
	EventsFileName = "events.jsonl"

	// GraphFileName is the name of the file, in the writer directory, with the model (graph) metadata.
	GraphFileName = "graph.json"

	// ImagesDir is the subdirectory of the writer directory where images are saved.
	ImagesDir = "images"
)

// Event is one line of the events file.
type Event struct {
	Step      int64      `json:"step"`
	WallTime  float64    `json:"wall_time"`
	Tag       string     `json:"tag"`
	Value     *float64   `json:"value,omitempty"`
	Histogram *Histogram `json:"histogram,omitempty"`

	// Image is the path of the image file, relative to the writer directory.
	Image string `json:"image,omitempty"`
}

// ScalarEvent returns an event with a scalar value.
func ScalarEvent(step int64, tag string, value float64) Event {
	return Event{Step: step, Tag: tag, Value: &value}
}

// Writer appends events to the events file of a directory. It is safe for concurrent use.
type Writer struct {
	dir string

	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
}

// NewWriter creates dir if needed, and opens its events file for appending.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return nil, errors.Wrapf(err, "failed to create summary directory %q", dir)
	}
	eventsPath := path.Join(dir, EventsFileName)
	f, err := os.OpenFile(eventsPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open summary events file %q", eventsPath)
	}
	klog.V(1).Infof("summary: writing events to %q", eventsPath)
	return &Writer{dir: dir, file: f, encoder: json.NewEncoder(f)}, nil
}

// Dir returns the directory of the writer.
func (w *Writer) Dir() string { return w.dir }

// AddEvents appends the events to the events file. Events without a WallTime get the current time.
func (w *Writer) AddEvents(events ...Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return errors.Errorf("summary writer for %q already closed", w.dir)
	}
	now := float64(time.Now().UnixNano()) / 1e9
	for _, event := range events {
		if event.WallTime == 0 {
			event.WallTime = now
		}
		if err := w.encoder.Encode(&event); err != nil {
			return errors.Wrapf(err, "failed to write summary event %q to %q", event.Tag, w.dir)
		}
	}
	return nil
}

// AddScalar appends one scalar event.
func (w *Writer) AddScalar(step int64, tag string, value float64) error {
	return w.AddEvents(ScalarEvent(step, tag, value))
}

// AddImage saves img as a PNG file under the ImagesDir subdirectory and appends an event pointing to it.
func (w *Writer) AddImage(step int64, tag string, img image.Image) error {
	imagesDir := path.Join(w.dir, ImagesDir)
	if err := os.MkdirAll(imagesDir, 0o777); err != nil {
		return errors.Wrapf(err, "failed to create images directory %q", imagesDir)
	}
	relPath := path.Join(ImagesDir, fmt.Sprintf("%s_%08d.png", fileSafe(tag), step))
	if err := imaging.Save(img, path.Join(w.dir, relPath)); err != nil {
		return errors.Wrapf(err, "failed to save image %q", relPath)
	}
	return w.AddEvents(Event{Step: step, Tag: tag, Image: relPath})
}

// AddImagesTensor converts a batch of images shaped [batch, height, width, channels] with values in [0, maxValue]
// to images, and adds each of them with tag "<tag>/<index>".
func (w *Writer) AddImagesTensor(step int64, tag string, t *tensors.Tensor, maxValue float64) error {
	if t.Shape().Rank() != 4 {
		return errors.Errorf("images tensor must be shaped [batch, height, width, channels], got %s", t.Shape())
	}
	for i, img := range images.ToImage().MaxValue(maxValue).Batch(t) {
		if err := w.AddImage(step, fmt.Sprintf("%s/%d", tag, i), img); err != nil {
			return err
		}
	}
	return nil
}

// SetGraph writes the model metadata, serialized as indented JSON, to the GraphFileName file, replacing any
// previous one.
func (w *Writer) SetGraph(metadata any) error {
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to serialize graph metadata")
	}
	graphPath := path.Join(w.dir, GraphFileName)
	if err := os.WriteFile(graphPath, data, 0o666); err != nil {
		return errors.Wrapf(err, "failed to write graph metadata to %q", graphPath)
	}
	return nil
}

// Close the events file. It's a no-op if already closed.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file, w.encoder = nil, nil
	if err != nil {
		return errors.Wrapf(err, "failed to close summary events file in %q", w.dir)
	}
	return nil
}

// ReadEvents reads back all the events of a directory written by a Writer.
func ReadEvents(dir string) ([]Event, error) {
	eventsPath := path.Join(dir, EventsFileName)
	data, err := os.ReadFile(eventsPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read summary events file %q", eventsPath)
	}
	var events []Event
	decoder := json.NewDecoder(bytes.NewReader(data))
	for decoder.More() {
		var event Event
		if err := decoder.Decode(&event); err != nil {
			return nil, errors.Wrapf(err, "failed to parse event #%d of %q", len(events), eventsPath)
		}
		events = append(events, event)
	}
	return events, nil
}

func fileSafe(tag string) string {
	return strings.NewReplacer("/", "_", "\\", "_", " ", "_", ":", "_").Replace(tag)
}
