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

package zarr

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

const (
	MemoryStoreType = "MemoryStore"
	LocalStoreType  = "LocalStore"
	BucketStoreType = "BucketStore"
	BadgerStoreType = "BadgerStore"

	dirPermissionBits  = 0o755
	filePermissionBits = 0o644
)

// ErrNotFound is matched by errors for missing keys.
var ErrNotFound = errors.New("not found")

// Store holds the keys of one or more arrays.
type Store interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, val io.Reader) error
	Type() string
}

// Locator is implemented by stores with a location outside the process.
type Locator interface {
	Location() string
}

func notFound(key string) error {
	return errors.Wrap(ErrNotFound, key)
}

func getAll(ctx context.Context, s Store, key string) ([]byte, error) {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	return b, errors.Wrapf(err, "reading %s", key)
}

func putAll(ctx context.Context, s Store, key string, b []byte) error {
	return errors.Wrapf(s.Put(ctx, key, bytes.NewReader(b)), "writing %s to %s", key, s.Type())
}

// MemoryStore keeps keys in memory.
type MemoryStore struct {
	lk   sync.Mutex
	data map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: map[string][]byte{},
	}
}

func (s *MemoryStore) Type() string { return MemoryStoreType }

func (s *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	d, ok := s.data[key]
	if !ok {
		return nil, notFound(key)
	}
	return io.NopCloser(bytes.NewReader(d)), nil
}

func (s *MemoryStore) Put(_ context.Context, key string, val io.Reader) error {
	d, err := io.ReadAll(val)
	if err != nil {
		return err
	}

	s.lk.Lock()
	defer s.lk.Unlock()
	s.data[key] = d
	return nil
}

// Keys returns the number of stored keys.
func (s *MemoryStore) Keys() int {
	s.lk.Lock()
	defer s.lk.Unlock()
	return len(s.data)
}

// LocalStore keeps keys as files under a base directory.
type LocalStore struct {
	base string
}

var _ Store = (*LocalStore)(nil)

func NewLocalStore(base string) (*LocalStore, error) {
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, errors.Wrap(err, "local store")
	}
	if err := os.MkdirAll(base, dirPermissionBits); err != nil {
		return nil, errors.Wrap(err, "local store")
	}
	return &LocalStore{
		base: base,
	}, nil
}

func (s *LocalStore) Type() string { return LocalStoreType }

// Location returns the base directory.
func (s *LocalStore) Location() string { return s.base }

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.base, filepath.FromSlash(key))
}

func (s *LocalStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(key)
	}
	return f, err
}

// Put writes to a temporary file and renames it into place, so readers
// never observe a partial key.
func (s *LocalStore) Put(_ context.Context, key string, val io.Reader) error {
	path := s.path(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPermissionBits); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	if _, err := io.Copy(f, val); err != nil {
		f.Close()
		return err
	}
	if err := f.Chmod(filePermissionBits); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}
