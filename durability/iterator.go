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

package durability

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"
	"github.com/gradb/gradb/dberrors"
)

// Iterator yields durability records in sequence order starting from
// the sequence number passed to IterFrom.
type Iterator struct {
	dir       string
	starts    []uint64
	segIdx    int
	activeSeq uint64 // starting seq of the segment still open for append; never mapped

	f      *os.File
	mapped mmap.MMap
	r      *bufio.Reader
	seq    uint64
	end    uint64 // exclusive upper bound: segment starting at starts[segIdx+1], or +Inf
}

// IterFrom returns an iterator over every record with Seq >= from, in
// ascending order, spanning however many segments are needed. The
// active segment is read from the live file, so records appended after
// the iterator was created are yielded too if they reach the file
// before the iterator reads past its end.
func (w *WAL) IterFrom(from uint64) (*Iterator, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	starts, err := w.segmentStarts()
	if err != nil {
		return nil, err
	}
	if len(starts) == 0 {
		starts = []uint64{0}
	}

	segIdx := 0
	for i, s := range starts {
		if s <= from {
			segIdx = i
		} else {
			break
		}
	}

	it := &Iterator{dir: w.dir, starts: starts, segIdx: segIdx, seq: starts[segIdx], activeSeq: w.segmentSeq}
	if err := it.openCurrentSegment(); err != nil {
		return nil, err
	}
	for it.seq < from {
		rec, err := it.Next()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			break
		}
	}
	return it, nil
}

// openCurrentSegment opens the segment at segIdx. Every segment except
// the one still open for append is immutable for the iterator's
// lifetime, so it is read through a read-only mmap rather than
// buffered file reads: replay and catch-up scans touch every byte of
// these segments sequentially, and the kernel can satisfy that without
// a read() syscall per buffer refill.
func (it *Iterator) openCurrentSegment() error {
	_ = it.closeCurrentSegment()
	if it.segIdx >= len(it.starts) {
		return nil
	}
	path := filepath.Join(it.dir, segmentFileName(it.starts[it.segIdx]))
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return dberrors.Wrap(dberrors.IoError, err, "open wal segment %s", path)
	}

	if it.starts[it.segIdx] == it.activeSeq {
		it.f = f
		it.r = bufio.NewReader(f)
	} else if info, statErr := f.Stat(); statErr == nil && info.Size() == 0 {
		// mmap of a zero-length file fails on every platform; an empty
		// sealed segment simply yields no records.
		_ = f.Close()
		it.f = nil
		return it.advanceSegment()
	} else {
		m, err := mmap.Map(f, mmap.RDONLY, 0)
		if err != nil {
			_ = f.Close()
			return dberrors.Wrap(dberrors.IoError, err, "mmap wal segment %s", path)
		}
		it.f = f
		it.mapped = m
		it.r = bufio.NewReader(bytes.NewReader(m))
	}

	if it.segIdx+1 < len(it.starts) {
		it.end = it.starts[it.segIdx+1]
	} else {
		it.end = ^uint64(0)
	}
	return nil
}

func (it *Iterator) closeCurrentSegment() error {
	if it.mapped != nil {
		_ = it.mapped.Unmap()
		it.mapped = nil
	}
	if it.f == nil {
		return nil
	}
	err := it.f.Close()
	it.f = nil
	return err
}

// Next returns the next record, or (nil, nil) once the log is caught
// up.
func (it *Iterator) Next() (*Record, error) {
	for {
		if it.f == nil {
			return nil, nil
		}
		header := make([]byte, headerSize)
		if _, err := io.ReadFull(it.r, header); err != nil {
			if err := it.advanceSegment(); err != nil {
				return nil, err
			}
			if it.f == nil {
				return nil, nil
			}
			continue
		}
		length := binary.BigEndian.Uint64(header[4:12])
		payload := make([]byte, length)
		if _, err := io.ReadFull(it.r, payload); err != nil {
			return nil, nil // torn tail: caught up, nothing more to yield
		}
		trailer := make([]byte, trailerSize)
		if _, err := io.ReadFull(it.r, trailer); err != nil {
			return nil, nil
		}
		crc := crc32.NewIEEE()
		_, _ = crc.Write(header)
		_, _ = crc.Write(payload)
		if binary.BigEndian.Uint32(trailer) != crc.Sum32() {
			return nil, nil // torn tail
		}

		rec := &Record{
			Seq:     it.seq,
			Type:    RecordType(binary.BigEndian.Uint32(header[0:4])),
			Payload: payload,
		}
		it.seq++
		return rec, nil
	}
}

func (it *Iterator) advanceSegment() error {
	it.segIdx++
	if it.segIdx >= len(it.starts) {
		return it.closeCurrentSegment()
	}
	return it.openCurrentSegment()
}

// Close releases the iterator's open segment file and mapping, if any.
func (it *Iterator) Close() error {
	return it.closeCurrentSegment()
}
