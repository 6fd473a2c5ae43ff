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
	"context"
	"io"

	"github.com/pkg/errors"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"
)

// BucketStore keeps keys as objects in a gocloud bucket, under an optional
// prefix.
type BucketStore struct {
	bucket *blob.Bucket
	prefix string
}

var _ Store = (*BucketStore)(nil)

// NewBucketStore wraps a bucket. The caller keeps ownership of it.
func NewBucketStore(b *blob.Bucket, prefix string) *BucketStore {
	p := NewPath(prefix).Key()
	if p != "" {
		p += "/"
	}
	return &BucketStore{bucket: b, prefix: p}
}

// OpenBucketStore opens a bucket by URL, such as "mem://" or
// "file:///data/scans".
func OpenBucketStore(ctx context.Context, url string) (*BucketStore, error) {
	b, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "opening bucket %s", url)
	}
	return &BucketStore{bucket: b}, nil
}

func (s *BucketStore) Type() string { return BucketStoreType }

// Close closes the underlying bucket.
func (s *BucketStore) Close() error { return s.bucket.Close() }

func (s *BucketStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.bucket.NewReader(ctx, s.prefix+key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, notFound(key)
		}
		return nil, errors.Wrapf(err, "reading %s", key)
	}
	return r, nil
}

func (s *BucketStore) Put(ctx context.Context, key string, val io.Reader) error {
	w, err := s.bucket.NewWriter(ctx, s.prefix+key, nil)
	if err != nil {
		return errors.Wrapf(err, "writing %s", key)
	}
	if _, err := io.Copy(w, val); err != nil {
		w.Close()
		return errors.Wrapf(err, "writing %s", key)
	}
	return errors.Wrapf(w.Close(), "writing %s", key)
}
