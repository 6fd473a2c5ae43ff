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
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func ids(ops []Operation) []string {
	var out []string
	for _, op := range ops {
		out = append(out, op.ID())
	}
	return out
}

func identityOp(id string, in, out Rank) Operation {
	return Map(id, in, out, func(d *Dataset) (*Dataset, error) { return d, nil })
}

func TestLinearize(t *testing.T) {
	a, b, c := identityOp("a", RankAny, RankSame), identityOp("b", RankAny, RankSame), identityOp("c", RankAny, RankSame)

	ops, err := Linearize(Chain(a, b, c))
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff([]string{"a", "b", "c"}, ids(ops)); d != "" {
		t.Errorf("chain diff (-want, +got):\n%v", d)
	}

	branch := NewNode(a)
	branch.Then(b)
	branch.Then(c)

	merge := NewNode(a)
	nb := merge.Then(b)
	nc := merge.Then(c)
	shared := NewNode(identityOp("d", RankAny, RankSame))
	nb.Add(shared)
	nc.Add(shared)

	diamondFree := NewNode(a)
	tail := diamondFree.Then(b)
	tail.Then(c).Add(tail) // b -> c -> b

	cycle := NewNode(a)
	cycle.Then(b).Add(cycle)

	for name, root := range map[string]*Node{
		"branch": branch,
		"merge":  merge,
		"loop":   diamondFree,
		"cycle":  cycle,
	} {
		if _, err := Linearize(root); !errors.Is(err, ErrNotLinearChain) {
			t.Errorf("Linearize(%s) = %v, want ErrNotLinearChain", name, err)
		}
	}
	if _, err := Linearize(nil); !errors.Is(err, ErrEmptyChain) {
		t.Errorf("Linearize(nil) = %v, want ErrEmptyChain", err)
	}
}

func TestResolveRanks(t *testing.T) {
	tests := []struct {
		name    string
		k       int
		ops     []Operation
		want    []Rank
		wantErr bool
	}{
		{
			name: "sameFollowsPrevious",
			k:    2,
			ops:  []Operation{identityOp("reduce", 2, 1), identityOp("same", RankSame, RankSame), identityOp("any", RankAny, RankSame)},
			want: []Rank{2, 1, RankAny},
		}, {
			name:    "exactMismatch",
			k:       2,
			ops:     []Operation{identityOp("reduce", 2, 1), identityOp("needs2", 2, 2)},
			wantErr: true,
		}, {
			name:    "firstMismatch",
			k:       1,
			ops:     []Operation{identityOp("needs2", 2, 2)},
			wantErr: true,
		}, {
			name: "unknownAfterAny",
			k:    1,
			ops:  []Operation{identityOp("any", RankAny, RankAny), identityOp("needs2", 2, 2), identityOp("same", RankSame, RankSame)},
			want: []Rank{RankAny, 2, 2},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := resolveRanks(test.ops, test.k)
			if test.wantErr {
				if !errors.Is(err, ErrRankMismatch) {
					t.Fatalf("resolveRanks = %v, %v, want ErrRankMismatch", got, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if d := cmp.Diff(test.want, got); d != "" {
				t.Errorf("ranks diff (-want, +got):\n%v", d)
			}
		})
	}
}

func TestRankString(t *testing.T) {
	for r, want := range map[Rank]string{RankAny: "any", RankSame: "same", 3: "3"} {
		if got := r.String(); got != want {
			t.Errorf("Rank(%d).String() = %q, want %q", int(r), got, want)
		}
	}
}
