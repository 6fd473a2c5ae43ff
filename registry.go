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

package scanslice

import (
	"fmt"
	"slices"
	"sync"

	"github.com/go-json-experiment/json"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
)

// Factory builds an Operation from a JSON configuration object. A nil or
// empty config selects the operation's defaults.
type Factory func(config []byte) (Operation, error)

// Registry maps operation identifiers to factories. It's populated by the
// embedding application at start up. Identifiers are case insensitive.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]factoryEntry
}

type factoryEntry struct {
	id string
	f  Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]factoryEntry{}}
}

var fold = cases.Fold()

// Register adds a factory for id. Registering an id twice is an error.
func (r *Registry) Register(id string, f Factory) error {
	if id == "" || f == nil {
		return fmt.Errorf("registry: invalid registration of %q", id)
	}
	key := fold.String(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.factories[key]; ok {
		return fmt.Errorf("registry: %q already registered as %q", id, e.id)
	}
	r.factories[key] = factoryEntry{id: id, f: f}
	return nil
}

// MustRegister is Register, panicking on error.
func (r *Registry) MustRegister(id string, f Factory) {
	if err := r.Register(id, f); err != nil {
		panic(err)
	}
}

// New builds the operation registered as id.
func (r *Registry) New(id string, config []byte) (Operation, error) {
	r.mu.RLock()
	e, ok := r.factories[fold.String(id)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("registry: %q: %w", id, ErrUnknownOperation)
	}
	op, err := e.f(config)
	if err != nil {
		return nil, fmt.Errorf("registry: building %q: %w", e.id, err)
	}
	return op, nil
}

// IDs returns the registered identifiers, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for _, e := range r.factories {
		ids = append(ids, e.id)
	}
	slices.Sort(ids)
	return ids
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Typed returns a Factory that decodes the configuration into a C, which
// must be a struct type, validates it with its `validate` tags and passes
// it to build. Unknown configuration members are rejected.
//
// Defaults are taken from def. Each call decodes a fresh copy of def, so
// slice and map defaults are never shared between built operations; only
// the fields def marshals to JSON carry over. Typed panics if def cannot be
// marshalled.
func Typed[C any](def C, build func(C) (Operation, error)) Factory {
	defaults, err := json.Marshal(def)
	if err != nil {
		panic(fmt.Sprintf("scanslice: marshalling default %T: %v", def, err))
	}
	return func(config []byte) (Operation, error) {
		var c C
		if err := json.Unmarshal(defaults, &c); err != nil {
			return nil, fmt.Errorf("decoding defaults: %w", err)
		}
		if len(config) > 0 {
			if err := json.Unmarshal(config, &c, json.RejectUnknownMembers(true)); err != nil {
				return nil, fmt.Errorf("decoding config: %w", err)
			}
		}
		if err := validate.Struct(c); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return build(c)
	}
}
