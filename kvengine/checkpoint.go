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

package kvengine

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/gradb/gradb/dberrors"
	"github.com/gradb/gradb/kv"
	"github.com/klauspost/compress/zstd"
	"github.com/tidwall/btree"
)

// Checkpoint writes every keyspace's entries, sorted, to a zstd
// compressed file under dir. The caller picks dir, typically
// checkpoint/<seq>/ keyed by the WAL sequence number at the time of the
// snapshot.
func (e *Engine) Checkpoint(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return dberrors.Wrap(dberrors.IoError, err, "create checkpoint directory %s", dir)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, ks := range kv.All() {
		if err := e.writeKeyspaceCheckpoint(dir, ks); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) writeKeyspaceCheckpoint(dir string, ks kv.Keyspace) error {
	path := filepath.Join(dir, ks.String()+".zst")
	f, err := os.Create(path)
	if err != nil {
		return dberrors.Wrap(dberrors.IoError, err, "create checkpoint file %s", path)
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return dberrors.Wrap(dberrors.IoError, err, "open zstd writer for %s", path)
	}
	defer zw.Close()

	var writeErr error
	e.tables[ks].Scan(func(k string, v []byte) bool {
		if err := writeLenPrefixed(zw, []byte(k)); err != nil {
			writeErr = err
			return false
		}
		if err := writeLenPrefixed(zw, v); err != nil {
			writeErr = err
			return false
		}
		return true
	})
	return writeErr
}

// Restore replaces this engine's contents with the checkpoint found
// at dir, discarding whatever was there before. Entries written after
// the checkpoint was taken are not part of it and are not restored.
func (e *Engine) Restore(dir string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ks := range kv.All() {
		t, err := readKeyspaceCheckpoint(dir, ks)
		if err != nil {
			return err
		}
		e.tables[ks] = t
	}
	return nil
}

func readKeyspaceCheckpoint(dir string, ks kv.Keyspace) (*btree.Map[string, []byte], error) {
	t := &btree.Map[string, []byte]{}
	path := filepath.Join(dir, ks.String()+".zst")
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, dberrors.Wrap(dberrors.IoError, err, "open checkpoint file %s", path)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, dberrors.Wrap(dberrors.IoError, err, "open zstd reader for %s", path)
	}
	defer zr.Close()

	for {
		key, err := readLenPrefixed(zr)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		value, err := readLenPrefixed(zr)
		if err != nil {
			return nil, err
		}
		t.Set(string(key), value)
	}
	return t, nil
}

func writeLenPrefixed(w io.Writer, b []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return dberrors.Wrap(dberrors.IoError, err, "write checkpoint length prefix")
	}
	if _, err := w.Write(b); err != nil {
		return dberrors.Wrap(dberrors.IoError, err, "write checkpoint bytes")
	}
	return nil
}

func readLenPrefixed(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, dberrors.New(dberrors.FormatError, "truncated checkpoint record")
		}
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, dberrors.Wrap(dberrors.IoError, err, "read checkpoint bytes")
	}
	return buf, nil
}
