// Licensed to the Apache Software Foundation (ASF) under one or more
// contributor license agreements.  See the NOTICE file distributed with
// this work for additional information regarding copyright ownership.
// The ASF licenses this file to You under the Apache License, Version 2.0
// (the "License"); you may not use this file except in compliance with
// the License.  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package harness records the log entries operations emit while processing
// one step, tagged with success and failure spans for later inspection.
package harness

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Status tags an entry as part of a logical success or failure span.
type Status int

const (
	StatusNone Status = iota
	StatusSuccess
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	}
	return "none"
}

// Entry is a single recorded log message.
type Entry struct {
	Timestamp *timestamppb.Timestamp
	Level     slog.Level
	Message   string
	Operation string
	Span      string
	Status    Status
	Fields    *structpb.Struct
}

func (e *Entry) String() string {
	if e.Span == "" {
		return fmt.Sprintf("%v %s: %s", e.Level, e.Operation, e.Message)
	}
	return fmt.Sprintf("%v %s[%s:%v]: %s", e.Level, e.Operation, e.Span, e.Status, e.Message)
}

// Log collects entries. It is safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	entries []*Entry
}

func (l *Log) add(e *Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Entries returns the recorded entries in order.
func (l *Log) Entries() []*Entry {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

// Failures returns the entries in failure spans.
func (l *Log) Failures() []*Entry {
	var out []*Entry
	for _, e := range l.Entries() {
		if e.Status == StatusFailure {
			out = append(out, e)
		}
	}
	return out
}

// Len is the number of recorded entries.
func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// HandlerOptions configure a logging handler.
type HandlerOptions struct {
	// Level is the minimum level recorded. Defaults to Debug.
	Level slog.Leveler
	// Operation tags every entry with the operation's id.
	Operation string
}

type loggingHandler struct {
	log   *Log
	opts  HandlerOptions
	goas  []groupOrAttrs
	span  string
	state Status
}

type groupOrAttrs struct {
	group string
	attrs []slog.Attr
}

// NewHandler returns a slog.Handler that records into log.
func NewHandler(log *Log, opts *HandlerOptions) slog.Handler {
	return newLoggingHandler(log, opts)
}

func newLoggingHandler(log *Log, opts *HandlerOptions) *loggingHandler {
	h := &loggingHandler{log: log}
	if opts != nil {
		h.opts = *opts
	}
	if h.opts.Level == nil {
		h.opts.Level = slog.LevelDebug
	}
	return h
}

// spanKey marks the attribute carrying a span marker.
const spanKey = "scanslice.span"

type spanMarker struct {
	name   string
	status Status
}

// WithSpan returns an attribute that places the logger's entries in the
// named span. It's meant to be used with slog.Logger.With, or passed
// directly to a single logging call.
func WithSpan(name string, status Status) slog.Attr {
	return slog.Any(spanKey, spanMarker{name, status})
}

func (h *loggingHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *loggingHandler) Handle(_ context.Context, r slog.Record) error {
	e := &Entry{
		Level:     r.Level,
		Message:   r.Message,
		Operation: h.opts.Operation,
		Span:      h.span,
		Status:    h.state,
	}
	if !r.Time.IsZero() {
		e.Timestamp = timestamppb.New(r.Time)
	}

	// Trailing groups without attributes are dropped.
	goas := h.goas
	if r.NumAttrs() == 0 {
		for len(goas) > 0 && goas[len(goas)-1].group != "" {
			goas = goas[:len(goas)-1]
		}
	}
	top := map[string]any{}
	cur := top
	for _, goa := range goas {
		if goa.group != "" {
			next := map[string]any{}
			cur[goa.group] = next
			cur = next
			continue
		}
		for _, a := range goa.attrs {
			h.addAttr(e, cur, a)
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		h.addAttr(e, cur, a)
		return true
	})
	prune(top)
	fields, err := structpb.NewStruct(top)
	if err != nil {
		return fmt.Errorf("harness: encoding log fields: %w", err)
	}
	e.Fields = fields
	h.log.add(e)
	return nil
}

func (h *loggingHandler) addAttr(e *Entry, m map[string]any, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Key == spanKey {
		if sm, ok := a.Value.Any().(spanMarker); ok {
			e.Span, e.Status = sm.name, sm.status
			return
		}
	}
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		if len(attrs) == 0 {
			return
		}
		if a.Key != "" {
			sub := map[string]any{}
			m[a.Key] = sub
			m = sub
		}
		for _, ga := range attrs {
			h.addAttr(e, m, ga)
		}
		return
	}
	m[a.Key] = fieldValue(a.Value)
}

// fieldValue converts v to a type structpb accepts.
func fieldValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindBool:
		return v.Bool()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	}
	switch x := v.Any().(type) {
	case error:
		return x.Error()
	case []int:
		out := make([]any, len(x))
		for i, n := range x {
			out[i] = n
		}
		return out
	case []float64:
		out := make([]any, len(x))
		for i, n := range x {
			out[i] = n
		}
		return out
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v.Any())
}

// prune removes empty groups.
func prune(m map[string]any) {
	for k, v := range m {
		sub, ok := v.(map[string]any)
		if !ok {
			continue
		}
		prune(sub)
		if len(sub) == 0 {
			delete(m, k)
		}
	}
}

func (h *loggingHandler) WithAttrs(as []slog.Attr) slog.Handler {
	if len(as) == 0 {
		return h
	}
	h2 := *h
	// Span markers apply to the derived handler, not the fields.
	var rest []slog.Attr
	for _, a := range as {
		if a.Key == spanKey {
			if sm, ok := a.Value.Resolve().Any().(spanMarker); ok {
				h2.span, h2.state = sm.name, sm.status
				continue
			}
		}
		rest = append(rest, a)
	}
	if len(rest) > 0 {
		h2.goas = append(slices.Clip(h.goas), groupOrAttrs{attrs: rest})
	}
	return &h2
}

func (h *loggingHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.goas = append(slices.Clip(h.goas), groupOrAttrs{group: name})
	return &h2
}
