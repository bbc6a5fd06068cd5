// Copyright 2024 The Gradb Authors
// This file is part of Gradb.
//
// Gradb is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Gradb is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Gradb. If not, see <http://www.gnu.org/licenses/>.

package encoding

import (
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/gradb/gradb/dberrors"
)

// MaxTypeID is the largest representable TypeID; allocation beyond it
// fails with TypeIdsExhausted.
const MaxTypeID TypeID = 0xFFFF

// PrevScanner is the minimal read surface the type-id allocator needs
// from a writable snapshot: get_prev Kept local to encoding so this
// package never imports mvcc/kv (avoids a cycle); mvcc.Snapshot satisfies
// this interface structurally.
type PrevScanner interface {
	// GetPrev returns the largest key <= seekKey sharing the keyspace
	// of seekKey, or ok=false if none exists.
	GetPrev(seekKey []byte) (key, value []byte, ok bool, err error)
}

// TypeIDAllocator hands out the next unused TypeID for one type-vertex
// prefix, by scanning backwards from the top of the id space in a
// single writer-serialised schema snapshot. Type ids are never reused once
// allocated.
type TypeIDAllocator struct {
	prefix Prefix
}

// NewTypeIDAllocator builds an allocator for one of the four
// type-vertex prefixes.
func NewTypeIDAllocator(prefix Prefix) *TypeIDAllocator {
	if !prefix.IsTypeVertex() {
		panic("TypeIDAllocator requires a type-vertex prefix")
	}
	return &TypeIDAllocator{prefix: prefix}
}

// Allocate returns the next free TypeID for this allocator's prefix:
// one above the highest id held by any of the four type-vertex
// prefixes, reading each current maximum through snap, so that no two
// types share an id whatever their kind (TypeCache indexes types by
// TypeID alone).
func (a *TypeIDAllocator) Allocate(snap PrevScanner) (TypeID, error) {
	var highest TypeID // id 0 reserved (root-of-hierarchy sentinel)
	for p := VertexEntityType; p <= VertexAttributeType; p++ {
		key, _, ok, err := snap.GetPrev(EncodeTypeVertex(p, MaxTypeID))
		if err != nil {
			return 0, dberrors.Wrap(dberrors.IoError, err, "scan for highest type id")
		}
		if !ok {
			continue
		}
		prefix, existing, decErr := DecodeTypeVertex(key)
		if decErr != nil {
			return 0, dberrors.Wrap(dberrors.Encoding, decErr, "decode highest type vertex")
		}
		if prefix == p && existing > highest {
			highest = existing
		}
	}
	if highest >= MaxTypeID {
		return 0, dberrors.New(dberrors.Encoding, "TypeIdsExhausted: prefix %s at 0x%x", a.prefix, MaxTypeID)
	}
	return highest + 1, nil
}

// ThingIDGenerator hands out per-type, process-local monotonic object
// ids via atomic fetch-add. Uniqueness is safe because thing writes are
// serialised per snapshot at commit time.
type ThingIDGenerator struct {
	counters []atomic.Uint64 // indexed by TypeID
}

// NewThingIDGenerator allocates a counter array sized to the full
// 16-bit type-id space.
func NewThingIDGenerator() *ThingIDGenerator {
	return &ThingIDGenerator{counters: make([]atomic.Uint64, int(MaxTypeID)+1)}
}

// TakeObjectID fetch-adds the next object id for typeID, starting at 0.
func (g *ThingIDGenerator) TakeObjectID(typeID TypeID) ObjectID {
	return ObjectID(g.counters[typeID].Add(1) - 1)
}

// Restore sets a type's counter to at least the given watermark,
// called during recovery once existing object ids are known, so a
// freshly-opened process never reissues an id seen before the restart.
func (g *ThingIDGenerator) Restore(typeID TypeID, highestSeen ObjectID) {
	next := uint64(highestSeen) + 1
	for {
		cur := g.counters[typeID].Load()
		if cur >= next {
			return
		}
		if g.counters[typeID].CompareAndSwap(cur, next) {
			return
		}
	}
}

// UsedTypeIDs is a compact bitmap of allocated type ids. No other
// package in this module builds one; the type manager and the planner
// keep their own structures.
type UsedTypeIDs struct {
	bitmap *roaring.Bitmap
}

// NewUsedTypeIDs builds an empty bitmap.
func NewUsedTypeIDs() *UsedTypeIDs { return &UsedTypeIDs{bitmap: roaring.New()} }

// Mark records typeID as allocated.
func (u *UsedTypeIDs) Mark(typeID TypeID) { u.bitmap.Add(uint32(typeID)) }

// Contains reports whether typeID has been allocated.
func (u *UsedTypeIDs) Contains(typeID TypeID) bool { return u.bitmap.Contains(uint32(typeID)) }

// Count returns the number of allocated type ids.
func (u *UsedTypeIDs) Count() int { return int(u.bitmap.GetCardinality()) }

// All returns every allocated type id in ascending order.
func (u *UsedTypeIDs) All() []TypeID {
	it := u.bitmap.Iterator()
	out := make([]TypeID, 0, u.bitmap.GetCardinality())
	for it.HasNext() {
		out = append(out, TypeID(it.Next()))
	}
	return out
}
