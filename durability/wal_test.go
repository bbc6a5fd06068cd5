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
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeRawSegment writes recs as a standalone segment file in this
// package's on-disk record format, bypassing WAL entirely — used to
// fabricate a second, already-sealed segment a WAL instance never
// itself created.
func writeRawSegment(t *testing.T, path string, recs [][]byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	for _, payload := range recs {
		header := make([]byte, headerSize)
		binary.BigEndian.PutUint32(header[0:4], uint32(TransactionCommit))
		binary.BigEndian.PutUint64(header[4:12], uint64(len(payload)))

		crc := crc32.NewIEEE()
		_, _ = crc.Write(header)
		_, _ = crc.Write(payload)
		var trailer [trailerSize]byte
		binary.BigEndian.PutUint32(trailer[:], crc.Sum32())

		_, err := f.Write(header)
		require.NoError(t, err)
		_, err = f.Write(payload)
		require.NoError(t, err)
		_, err = f.Write(trailer[:])
		require.NoError(t, err)
	}
}

func TestAppendAssignsMonotonicSequenceAndWatermark(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, 0, nil)
	require.NoError(t, err)
	defer w.Close()

	seq0, err := w.Append(TransactionCommit, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, uint64(0), seq0)
	require.Equal(t, uint64(0), w.Watermark())

	seq1, err := w.Append(TransactionCommit, []byte("b"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), seq1)
	require.Equal(t, uint64(1), w.Watermark())
}

func TestRegisterRecordTypeIdempotent(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, 0, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NotPanics(t, func() {
		w.RegisterRecordType(100, "CustomType")
		w.RegisterRecordType(100, "CustomType")
	})
	require.Panics(t, func() {
		w.RegisterRecordType(100, "SomethingElse")
	})
}

func TestReopenRecoversNextSequenceAndWatermark(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, 0, nil)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := w.Append(TransactionCommit, []byte(fmt.Sprintf("rec-%d", i)))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	w2, err := Open(dir, 0, nil)
	require.NoError(t, err)
	defer w2.Close()
	require.Equal(t, uint64(10), w2.nextSeq)
	require.Equal(t, uint64(9), w2.Watermark())

	it, err := w2.IterFrom(0)
	require.NoError(t, err)
	defer it.Close()

	var records []*Record
	for {
		rec, err := it.Next()
		require.NoError(t, err)
		if rec == nil {
			break
		}
		records = append(records, rec)
	}
	require.Len(t, records, 10)
	for i, rec := range records {
		require.Equal(t, uint64(i), rec.Seq)
		require.Equal(t, fmt.Sprintf("rec-%d", i), string(rec.Payload))
	}
}

// TestTornTailIsTruncatedOnRecovery writes 1000 records, then corrupts
// the on-disk tail to simulate a crash mid-write, and checks that
// recovery truncates the torn record while keeping every prior one
// intact and iterable from the watermark.
func TestTornTailIsTruncatedOnRecovery(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, 0, nil)
	require.NoError(t, err)

	const n = 1000
	for i := 0; i < n; i++ {
		_, err := w.Append(TransactionCommit, []byte(fmt.Sprintf("record-%04d", i)))
		require.NoError(t, err)
	}
	watermarkBeforeCrash := w.Watermark()
	require.Equal(t, uint64(n-1), watermarkBeforeCrash)

	segPath := w.currentSegmentPath()
	require.NoError(t, w.file.Close())
	require.NoError(t, w.lock.Unlock())

	// Simulate a crash: append a few garbage bytes after the last
	// intact record, as a torn write would leave behind.
	f, err := os.OpenFile(segPath, os.O_RDWR|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0xDE, 0xAD, 0xBE})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	w2, err := Open(dir, 0, nil)
	require.NoError(t, err)
	defer w2.Close()

	require.Equal(t, uint64(n), w2.nextSeq)

	it, err := w2.IterFrom(0)
	require.NoError(t, err)
	defer it.Close()

	count := 0
	var last *Record
	for {
		rec, err := it.Next()
		require.NoError(t, err)
		if rec == nil {
			break
		}
		require.Equal(t, uint64(count), rec.Seq)
		last = rec
		count++
	}
	require.Equal(t, n, count)
	require.Equal(t, fmt.Sprintf("record-%04d", n-1), string(last.Payload))

	// The torn bytes must not have silently become a phantom record,
	// and further appends must land immediately after the last intact
	// record rather than after the garbage.
	seq, err := w2.Append(TransactionCommit, []byte("after-recovery"))
	require.NoError(t, err)
	require.Equal(t, uint64(n), seq)
}

func TestIterFromMidSequenceSkipsEarlierRecords(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, 0, nil)
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 20; i++ {
		_, err := w.Append(TransactionCommit, []byte(fmt.Sprintf("%d", i)))
		require.NoError(t, err)
	}

	it, err := w.IterFrom(15)
	require.NoError(t, err)
	defer it.Close()

	rec, err := it.Next()
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, uint64(15), rec.Seq)
	require.Equal(t, "15", string(rec.Payload))
}

// TestIterFromSpansSealedAndActiveSegments fabricates a two-segment WAL
// directory — a sealed segment at start 0 written directly to disk, and
// a live segment at start 5 opened normally for append — and checks
// IterFrom(0) walks both in sequence order, reading the sealed one
// through its mmap and the live one through the ordinary buffered path.
func TestIterFromSpansSealedAndActiveSegments(t *testing.T) {
	dir := t.TempDir()
	walDir := filepath.Join(dir, "wal")
	require.NoError(t, os.MkdirAll(walDir, 0o755))

	sealed := make([][]byte, 5)
	for i := range sealed {
		sealed[i] = []byte(fmt.Sprintf("sealed-%d", i))
	}
	writeRawSegment(t, filepath.Join(walDir, segmentFileName(0)), sealed)

	// recover() always continues appending to the highest-numbered
	// segment present; pre-create an empty one at start 5 so Open
	// treats segment 0 as sealed rather than folding into it.
	emptyActive, err := os.Create(filepath.Join(walDir, segmentFileName(5)))
	require.NoError(t, err)
	require.NoError(t, emptyActive.Close())

	w, err := Open(dir, 0, nil)
	require.NoError(t, err)
	defer w.Close()
	require.Equal(t, uint64(5), w.segmentSeq)

	for i := 0; i < 3; i++ {
		_, err := w.Append(TransactionCommit, []byte(fmt.Sprintf("live-%d", i)))
		require.NoError(t, err)
	}

	it, err := w.IterFrom(0)
	require.NoError(t, err)
	defer it.Close()

	var got []string
	for {
		rec, err := it.Next()
		require.NoError(t, err)
		if rec == nil {
			break
		}
		got = append(got, string(rec.Payload))
	}
	require.Equal(t, []string{
		"sealed-0", "sealed-1", "sealed-2", "sealed-3", "sealed-4",
		"live-0", "live-1", "live-2",
	}, got)
}

func TestOpenRejectsSecondWriterOnSameDirectory(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, 0, nil)
	require.NoError(t, err)
	defer w.Close()

	_, err = Open(dir, 0, nil)
	require.Error(t, err)
}

func TestSegmentFileNameSortsLexicographically(t *testing.T) {
	dir := t.TempDir()
	require.Equal(t, filepath.Join(dir, "00000000000000000000.wal"), filepath.Join(dir, segmentFileName(0)))
	require.True(t, segmentFileName(9) < segmentFileName(10))
}
