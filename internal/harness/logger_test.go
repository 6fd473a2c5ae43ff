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

package harness

import (
	"errors"
	"log/slog"
	"testing"
	"testing/slogtest"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestSlogtest(t *testing.T) {
	var log *Log
	slogtest.Run(t,
		func(_ *testing.T) slog.Handler {
			log = &Log{}
			return newLoggingHandler(log, nil)
		},
		func(t *testing.T) map[string]any {
			es := log.Entries()
			if len(es) != 1 {
				t.Fatalf("got %d entries, want 1", len(es))
			}
			return parseLogEntry(es[0])
		})
}

func parseLogEntry(e *Entry) map[string]any {
	m := map[string]any{
		slog.MessageKey: e.Message,
		slog.LevelKey:   e.Level,
	}
	if e.Timestamp != nil {
		m[slog.TimeKey] = e.Timestamp.AsTime()
	}
	for k, v := range structToMap(e.Fields) {
		m[k] = v
	}
	return m
}

func structToMap(s *structpb.Struct) map[string]any {
	m := map[string]any{}
	for k, v := range s.GetFields() {
		switch v.Kind.(type) {
		case *structpb.Value_StructValue:
			m[k] = structToMap(v.GetStructValue())
		default:
			m[k] = v.AsInterface()
		}
	}
	return m
}

func TestWithSpan(t *testing.T) {
	log := &Log{}
	l := slog.New(NewHandler(log, &HandlerOptions{Operation: "sum"}))
	l.Info("testMsg1")

	l2 := l.With(WithSpan("fit", StatusFailure))
	l2.Warn("testMsg2", "residual", 4.5)

	// The original logger should still be outside any span.
	l.Info("testMsg3")

	l.Info("testMsg4", WithSpan("load", StatusSuccess))

	type row struct {
		Op, Msg, Span string
		Status        Status
	}
	var got []row
	for _, e := range log.Entries() {
		got = append(got, row{e.Operation, e.Message, e.Span, e.Status})
	}
	want := []row{
		{"sum", "testMsg1", "", StatusNone},
		{"sum", "testMsg2", "fit", StatusFailure},
		{"sum", "testMsg3", "", StatusNone},
		{"sum", "testMsg4", "load", StatusSuccess},
	}
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("entries diff (-want, +got):\n%v", d)
	}

	fails := log.Failures()
	if len(fails) != 1 || fails[0].Message != "testMsg2" {
		t.Fatalf("Failures() = %v, want the testMsg2 entry", fails)
	}
	if got, want := fails[0].Fields.GetFields()["residual"].GetNumberValue(), 4.5; got != want {
		t.Errorf("residual field = %v, want %v", got, want)
	}
	if _, ok := fails[0].Fields.GetFields()[spanKey]; ok {
		t.Errorf("span marker leaked into fields: %v", fails[0].Fields)
	}
}

func TestLevel(t *testing.T) {
	log := &Log{}
	l := slog.New(NewHandler(log, &HandlerOptions{Level: slog.LevelWarn}))
	l.Debug("dropped")
	l.Info("dropped")
	l.Error("kept", "err", errors.New("boom"), "shape", []int{1, 8})

	if got := log.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}
	f := log.Entries()[0].Fields.GetFields()
	if got, want := f["err"].GetStringValue(), "boom"; got != want {
		t.Errorf("err field = %q, want %q", got, want)
	}
	if got := len(f["shape"].GetListValue().GetValues()); got != 2 {
		t.Errorf("shape field has %d values, want 2", got)
	}
}
