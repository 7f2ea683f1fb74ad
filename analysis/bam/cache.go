// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bam

import (
	"fmt"
	"sort"

	"github.com/awslabs/ar-jvm-tools/analysis/cfa"
	"github.com/awslabs/ar-jvm-tools/analysis/cpa"
	"github.com/google/uuid"
)

// A BlockAbstraction is the result of the analysis of a method from a reduced entry state. Block abstractions are
// never modified once they are in the cache.
type BlockAbstraction struct {
	// ID identifies the block in its cache
	ID int

	Signature cfa.Signature

	// Entry is the reduced entry state the method was analyzed from
	Entry cpa.AbstractState

	// Reached is the reached set of the analysis of the method
	Reached cpa.ReachedView

	// Exits are the reached states at the return exit of the method
	Exits []cpa.AbstractState

	// Complete is false when the analysis of the block was aborted
	Complete bool

	// Run identifies the analyzer run that computed the block
	Run uuid.UUID
}

// StatesAt returns the reached states of the block at the node
func (b *BlockAbstraction) StatesAt(n *cfa.Node) []cpa.AbstractState {
	var res []cpa.AbstractState
	for _, s := range b.Reached.All() {
		if cpa.NodeOf(s) == n {
			res = append(res, s)
		}
	}
	return res
}

func (b *BlockAbstraction) String() string {
	c := ""
	if !b.Complete {
		c = " (incomplete)"
	}
	return fmt.Sprintf("block #%d %s%s: %d states, %d exits", b.ID, b.Signature, c, b.Reached.Len(), len(b.Exits))
}

// A CallUsage records that the analysis of the caller block used the callee block for the call at the site
type CallUsage struct {
	Caller int
	Site   cfa.Location
	Call   *cfa.Call
	Callee int
}

// Cache stores the block abstractions computed by the analyses, keyed by method signature and entry state. Entry
// states are compared with lattice equality. Re-analyzing a key supersedes the previous block without modifying it.
// A Cache is not safe for concurrent use.
type Cache struct {
	current map[cfa.Signature][]*BlockAbstraction
	history map[cfa.Signature][]*BlockAbstraction
	blocks  map[int]*BlockAbstraction
	calls   []CallUsage
	seen    map[CallUsage]bool
	nextID  int
}

// NewCache returns an empty cache
func NewCache() *Cache {
	return &Cache{
		current: map[cfa.Signature][]*BlockAbstraction{},
		history: map[cfa.Signature][]*BlockAbstraction{},
		blocks:  map[int]*BlockAbstraction{},
		seen:    map[CallUsage]bool{},
	}
}

// Lookup returns the current block of the method for the entry state
func (c *Cache) Lookup(sig cfa.Signature, entry cpa.AbstractState) (*BlockAbstraction, bool) {
	for _, b := range c.current[sig] {
		if b.Entry.Equal(entry) {
			return b, true
		}
	}
	return nil, false
}

// Reserve returns a fresh block id
func (c *Cache) Reserve() int {
	id := c.nextID
	c.nextID++
	return id
}

// Put adds the block to the cache. The block supersedes the current block with the same key, if any. The id of the
// block must have been obtained from Reserve.
func (c *Cache) Put(b *BlockAbstraction) {
	if b.ID >= c.nextID {
		panic(fmt.Sprintf("block id %d was not reserved", b.ID))
	}
	blocks := c.current[b.Signature]
	replaced := false
	for i, old := range blocks {
		if old.Entry.Equal(b.Entry) {
			blocks[i] = b
			replaced = true
			break
		}
	}
	if !replaced {
		c.current[b.Signature] = append(blocks, b)
	}
	c.history[b.Signature] = append(c.history[b.Signature], b)
	c.blocks[b.ID] = b
}

// Entries returns the current blocks of the cache ordered by id
func (c *Cache) Entries() []*BlockAbstraction {
	var res []*BlockAbstraction
	for _, blocks := range c.current {
		res = append(res, blocks...)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// History returns all the blocks of the method that were put in the cache, superseded blocks included, in the order
// they were put
func (c *Cache) History(sig cfa.Signature) []*BlockAbstraction {
	return c.history[sig]
}

// Block returns the block with the id, superseded or not
func (c *Cache) Block(id int) (*BlockAbstraction, bool) {
	b, ok := c.blocks[id]
	return b, ok
}

// Len returns the number of current blocks
func (c *Cache) Len() int {
	n := 0
	for _, blocks := range c.current {
		n += len(blocks)
	}
	return n
}

// RecordCall records a call usage. Recording the same usage twice has no effect.
func (c *Cache) RecordCall(u CallUsage) {
	if c.seen[u] {
		return
	}
	c.seen[u] = true
	c.calls = append(c.calls, u)
}

// Calls returns the call usages in the order they were recorded
func (c *Cache) Calls() []CallUsage {
	return c.calls
}

// CallsTo returns the usages of the callee block
func (c *Cache) CallsTo(callee int) []CallUsage {
	var res []CallUsage
	for _, u := range c.calls {
		if u.Callee == callee {
			res = append(res, u)
		}
	}
	return res
}

// CallsFrom returns the usages of callee blocks by the caller block at the site
func (c *Cache) CallsFrom(caller int, site cfa.Location) []CallUsage {
	var res []CallUsage
	for _, u := range c.calls {
		if u.Caller == caller && u.Site == site {
			res = append(res, u)
		}
	}
	return res
}
