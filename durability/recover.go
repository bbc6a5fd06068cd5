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
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/gradb/gradb/dberrors"
)

// segmentStarts lists, in ascending order, the starting sequence
// numbers of every segment file present in the WAL directory.
func (w *WAL) segmentStarts() ([]uint64, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, dberrors.Wrap(dberrors.IoError, err, "list wal directory")
	}
	var starts []uint64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".wal") {
			continue
		}
		seq, err := parseSegmentSeq(e.Name())
		if err != nil {
			continue
		}
		starts = append(starts, seq)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })
	return starts, nil
}

func parseSegmentSeq(name string) (uint64, error) {
	name = strings.TrimSuffix(name, ".wal")
	var n uint64
	for _, c := range name {
		if c < '0' || c > '9' {
			return 0, dberrors.New(dberrors.FormatError, "not a segment file name: %s", name)
		}
		n = n*10 + uint64(c-'0')
	}
	return n, nil
}

// recover opens (or creates) the newest segment, truncating any torn
// tail record found during replay, sets nextSeq to one past the last
// intact record seen, and sets the watermark to that record.
func (w *WAL) recover() error {
	starts, err := w.segmentStarts()
	if err != nil {
		return err
	}
	if len(starts) == 0 {
		w.segmentSeq = 0
		w.nextSeq = 0
		return w.openSegmentForAppend(w.currentSegmentPath(), true, 0)
	}

	w.segmentSeq = starts[len(starts)-1]
	path := w.currentSegmentPath()
	nextSeq, validEnd, err := replaySegment(path, w.segmentSeq)
	if err != nil {
		return err
	}
	w.nextSeq = nextSeq
	if nextSeq > 0 {
		w.watermark = nextSeq - 1
	}

	return w.openSegmentForAppend(path, false, validEnd)
}

// openSegmentForAppend opens path for read-write appending, truncating
// it to validEnd bytes to drop any torn tail left by replaySegment
// before further writes are accepted.
func (w *WAL) openSegmentForAppend(path string, create bool, validEnd int64) error {
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return dberrors.Wrap(dberrors.IoError, err, "open wal segment %s", path)
	}
	if err := f.Truncate(validEnd); err != nil {
		_ = f.Close()
		return dberrors.Wrap(dberrors.IoError, err, "truncate torn tail of %s", path)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		_ = f.Close()
		return dberrors.Wrap(dberrors.IoError, err, "seek to end of %s", path)
	}
	w.file = f
	w.writer = bufio.NewWriter(f)
	return nil
}

// replaySegment scans a segment from its starting sequence number,
// verifying each record's CRC32, and returns both the sequence number
// that should be assigned to the next appended record (one past the
// last intact record) and the byte offset immediately following that
// last intact record. A torn tail (bad checksum or short read) simply
// stops the scan; everything before it is authoritative.
func replaySegment(path string, startSeq uint64) (nextSeq uint64, validEnd int64, err error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return startSeq, 0, nil
	}
	if err != nil {
		return 0, 0, dberrors.Wrap(dberrors.IoError, err, "open wal segment %s for replay", path)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	seq := startSeq
	var offset int64
	for {
		header := make([]byte, headerSize)
		if _, err := io.ReadFull(r, header); err != nil {
			break // EOF or short read: torn tail, stop here
		}
		length := binary.BigEndian.Uint64(header[4:12])
		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			break
		}
		trailer := make([]byte, trailerSize)
		if _, err := io.ReadFull(r, trailer); err != nil {
			break
		}
		crc := crc32.NewIEEE()
		_, _ = crc.Write(header)
		_, _ = crc.Write(payload)
		if binary.BigEndian.Uint32(trailer) != crc.Sum32() {
			break // bad checksum: torn tail
		}
		seq++
		offset += int64(headerSize) + int64(length) + int64(trailerSize)
	}
	return seq, offset, nil
}
