package reconcile

import (
	"bufio"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/openmined/metaguard/internal/meta"
)

// Side identifies which collaborator a diff record was read from.
type Side uint8

const (
	SourceRemote Side = iota + 1
	SourceStore
)

// Tag returns the side tag printed in diff reports.
func (s Side) Tag() string {
	switch s {
	case SourceRemote:
		return "S3"
	case SourceStore:
		return "MS"
	default:
		return "??"
	}
}

func (s Side) String() string {
	return s.Tag()
}

// DiffRecord is one side of a path on which the remote tree and the store
// disagree.
type DiffRecord struct {
	Source Side
	Entry  meta.PathEntry
}

// String formats r as `<S3|MS>\t<D|F>\t<size>\t<path>`.
func (r DiffRecord) String() string {
	return fmt.Sprintf("%s\t%s\t%d\t%s", r.Source.Tag(), r.Entry.Kind.Tag(), r.Entry.Size, r.Entry.Path)
}

// Sink receives diff records as they are produced.
type Sink interface {
	Emit(r DiffRecord) error
	Flush() error
}

// TextSink writes the tab separated report format.
type TextSink struct {
	w *bufio.Writer
}

func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: bufio.NewWriter(w)}
}

func (s *TextSink) Emit(r DiffRecord) error {
	_, err := fmt.Fprintln(s.w, r.String())
	return err
}

func (s *TextSink) Flush() error {
	return s.w.Flush()
}

type jsonRecord struct {
	Side    string `json:"side"`
	Kind    string `json:"kind"`
	Size    int64  `json:"size"`
	ModTime int64  `json:"mtime,omitempty"`
	Path    string `json:"path"`
}

// JSONSink writes one JSON object per line.
type JSONSink struct {
	w   *bufio.Writer
	enc *json.Encoder
}

func NewJSONSink(w io.Writer) *JSONSink {
	bw := bufio.NewWriter(w)
	return &JSONSink{w: bw, enc: json.NewEncoder(bw)}
}

func (s *JSONSink) Emit(r DiffRecord) error {
	return s.enc.Encode(jsonRecord{
		Side:    r.Source.Tag(),
		Kind:    r.Entry.Kind.Tag(),
		Size:    r.Entry.Size,
		ModTime: r.Entry.ModTime,
		Path:    r.Entry.Path,
	})
}

func (s *JSONSink) Flush() error {
	return s.w.Flush()
}
