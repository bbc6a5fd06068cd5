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
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/gradb/gradb/dberrors"
	"go.uber.org/zap"
)

// headerSize is type(4) + length(8); the CRC32 trailer adds 4 more
// bytes after the payload.
const headerSize = 4 + 8
const trailerSize = 4

// segmentFileName names a segment by its starting sequence number,
// zero-padded to sort lexicographically in directory listings.
func segmentFileName(startSeq uint64) string {
	return fmt.Sprintf("%020d.wal", startSeq)
}

// WAL is a single-writer-per-process append log. It holds an advisory file
// lock on its directory for the lifetime of the process, enforcing the
// single-writer contract across processes too.
type WAL struct {
	mu       sync.Mutex
	dir      string
	lock     *flock.Flock
	registry *TypeRegistry
	logger   *zap.Logger

	file        *os.File
	writer      *bufio.Writer
	segmentSeq  uint64 // starting sequence number of the current segment
	nextSeq     uint64 // sequence number that will be assigned to the next append
	watermarkMu sync.RWMutex
	watermark   uint64

	fsyncInterval time.Duration
	lastFsync     time.Time
}

// Open opens (creating if absent) a WAL rooted at dir/wal, replaying
// existing segments to determine the next sequence number and
// truncating any torn tail record.
func Open(dir string, fsyncInterval time.Duration, logger *zap.Logger) (*WAL, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	walDir := filepath.Join(dir, "wal")
	if err := os.MkdirAll(walDir, 0o755); err != nil {
		return nil, dberrors.Wrap(dberrors.IoError, err, "create wal directory")
	}
	lock := flock.New(filepath.Join(walDir, ".lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, dberrors.Wrap(dberrors.IoError, err, "lock wal directory")
	}
	if !ok {
		return nil, dberrors.New(dberrors.IoError, "wal directory %s is held by another process", walDir)
	}

	w := &WAL{
		dir:           walDir,
		lock:          lock,
		registry:      NewTypeRegistry(),
		logger:        logger,
		fsyncInterval: fsyncInterval,
	}
	if err := w.recover(); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return w, nil
}

// RegisterRecordType is register_record_type
func (w *WAL) RegisterRecordType(code RecordType, name string) {
	w.registry.Register(code, name)
}

// Watermark is the last durably acknowledged sequence number.
func (w *WAL) Watermark() uint64 {
	w.watermarkMu.RLock()
	defer w.watermarkMu.RUnlock()
	return w.watermark
}

// Append atomically assigns the next sequence number and persists the
// record, returning only after its fsync boundary.
func (w *WAL) Append(recordType RecordType, payload []byte) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	seq := w.nextSeq
	if err := w.writeRecordLocked(seq, recordType, payload); err != nil {
		return 0, err
	}
	w.nextSeq++

	if w.fsyncInterval == 0 || time.Since(w.lastFsync) >= w.fsyncInterval {
		if err := w.syncLocked(); err != nil {
			return 0, err
		}
	}

	w.watermarkMu.Lock()
	w.watermark = seq
	w.watermarkMu.Unlock()

	return seq, nil
}

// Sync forces an fsync boundary regardless of the batching interval.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncLocked()
}

func (w *WAL) syncLocked() error {
	if err := w.writer.Flush(); err != nil {
		return dberrors.Wrap(dberrors.IoError, err, "flush wal writer")
	}
	if err := w.file.Sync(); err != nil {
		return dberrors.Wrap(dberrors.IoError, err, "fsync wal file")
	}
	w.lastFsync = time.Now()
	return nil
}

func (w *WAL) writeRecordLocked(seq uint64, recordType RecordType, payload []byte) error {
	header := make([]byte, headerSize)
	binary.BigEndian.PutUint32(header[0:4], uint32(recordType))
	binary.BigEndian.PutUint64(header[4:12], uint64(len(payload)))

	crc := crc32.NewIEEE()
	_, _ = crc.Write(header)
	_, _ = crc.Write(payload)
	var trailer [trailerSize]byte
	binary.BigEndian.PutUint32(trailer[:], crc.Sum32())

	if _, err := w.writer.Write(header); err != nil {
		return dberrors.Wrap(dberrors.IoError, err, "write wal record header (seq=%d)", seq)
	}
	if _, err := w.writer.Write(payload); err != nil {
		return dberrors.Wrap(dberrors.IoError, err, "write wal record payload (seq=%d)", seq)
	}
	if _, err := w.writer.Write(trailer[:]); err != nil {
		return dberrors.Wrap(dberrors.IoError, err, "write wal record trailer (seq=%d)", seq)
	}
	return nil
}

// Close flushes, fsyncs and releases the directory lock.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.syncLocked(); err != nil {
		_ = w.lock.Unlock()
		return err
	}
	if err := w.file.Close(); err != nil {
		_ = w.lock.Unlock()
		return dberrors.Wrap(dberrors.IoError, err, "close wal file")
	}
	return w.lock.Unlock()
}

func (w *WAL) currentSegmentPath() string {
	return filepath.Join(w.dir, segmentFileName(w.segmentSeq))
}
