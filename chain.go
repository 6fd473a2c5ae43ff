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

import "fmt"

// Node is an operation in a graph of operations. The runner only executes
// graphs that are a single linear chain.
type Node struct {
	Op       Operation
	Children []*Node
}

// NewNode returns a graph node for op.
func NewNode(op Operation) *Node {
	return &Node{Op: op}
}

// Then appends a node for op as a child of n and returns it.
func (n *Node) Then(op Operation) *Node {
	c := NewNode(op)
	n.Children = append(n.Children, c)
	return c
}

// Add appends child as a child of n and returns it.
func (n *Node) Add(child *Node) *Node {
	n.Children = append(n.Children, child)
	return child
}

// Chain builds a linear graph from ops and returns its root.
func Chain(ops ...Operation) *Node {
	if len(ops) == 0 {
		return nil
	}
	root := NewNode(ops[0])
	cur := root
	for _, op := range ops[1:] {
		cur = cur.Then(op)
	}
	return root
}

// Linearize returns the operations of the graph rooted at root in order.
// It fails with ErrNotLinearChain if any node branches, if any node is
// reached by more than one edge, or on a cycle.
func Linearize(root *Node) ([]Operation, error) {
	if root == nil {
		return nil, ErrEmptyChain
	}
	// Count the edges into every reachable node.
	consumers := map[*Node]int{}
	stack := []*Node{root}
	seen := map[*Node]bool{}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		for _, c := range n.Children {
			if c == nil {
				return nil, fmt.Errorf("node %q has a nil child: %w", opID(n), ErrNotLinearChain)
			}
			consumers[c]++
			stack = append(stack, c)
		}
	}
	if consumers[root] > 0 {
		return nil, fmt.Errorf("cycle through %q: %w", opID(root), ErrNotLinearChain)
	}

	var ops []Operation
	for n := root; n != nil; {
		if n.Op == nil {
			return nil, fmt.Errorf("node %d has no operation", len(ops))
		}
		if c := consumers[n]; c > 1 {
			return nil, fmt.Errorf("%q merges %d inputs: %w", n.Op.ID(), c, ErrNotLinearChain)
		}
		ops = append(ops, n.Op)
		switch len(n.Children) {
		case 0:
			n = nil
		case 1:
			n = n.Children[0]
		default:
			return nil, fmt.Errorf("%q branches into %d operations: %w", n.Op.ID(), len(n.Children), ErrNotLinearChain)
		}
	}
	return ops, nil
}

func opID(n *Node) string {
	if n.Op == nil {
		return "<nil>"
	}
	return n.Op.ID()
}

// resolveRanks checks rank continuity through ops starting from k data
// dimensions. It returns each operation's input rank with RankSame resolved
// where it is known.
func resolveRanks(ops []Operation, k int) ([]Rank, error) {
	ranks := make([]Rank, len(ops))
	cur := Rank(k)
	for i, op := range ops {
		in := op.InputRank()
		if in == RankSame {
			in = cur
		}
		if in.Exact() && cur.Exact() && in != cur {
			return nil, &RankMismatchError{Operation: op.ID(), Want: in, Got: int(cur)}
		}
		ranks[i] = in
		if in == RankAny && cur.Exact() {
			in = cur
		}
		switch out := op.OutputRank(); {
		case out == RankSame:
			cur = in
		case out.Exact():
			cur = out
		default:
			cur = RankAny
		}
	}
	return ranks, nil
}
