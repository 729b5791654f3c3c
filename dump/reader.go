package dump

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// IterateDumps iterates over all dumps made by Creator in the specified
// directory, and passes ID and Reader of each dump into f. Iteration stops on
// the first f's error.
func IterateDumps(dir string, f func(ID, *Reader) error) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, e error) error {
		if errors.Is(e, fs.ErrNotExist) {
			return nil
		}
		if e != nil {
			return e
		}

		if d.IsDir() {
			if path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if !strings.HasSuffix(name, sep+headerFileSuffix) {
			return nil
		}

		var id ID

		err := id.decodeString(name)
		if err != nil {
			return fmt.Errorf("decode dump ID from file name '%s': %w", name, err)
		}

		r, err := Open(dir, id)
		if err != nil {
			return fmt.Errorf("open dump '%s': %w", name, err)
		}

		return f(id, r)
	})
}

// Open reads the dump with the given ID from the directory.
func Open(dir string, id ID) (*Reader, error) {
	var streams dumpStreams

	err := initDumpStreams(&streams, dir, id, true)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("dump %s: %w", id, err)
		}
		return nil, fmt.Errorf("init dump streams: %w", err)
	}
	defer streams.close()

	var r Reader

	err = r.fromDumpStreams(streams.header, streams.storageItems)
	if err != nil {
		return nil, fmt.Errorf("init dump reader: %w", err)
	}

	return &r, nil
}

type kv struct{ k, v []byte }

// Reader reads the ledger state collected in the superior dump.
type Reader struct {
	header  Header
	storage []kv
}

func (x *Reader) fromDumpStreams(rHeader, rStorageItems io.Reader) error {
	err := json.NewDecoder(rHeader).Decode(&x.header)
	if err != nil {
		return fmt.Errorf("decode token description from JSON: %w", err)
	}

	var rec []string
	var _kv kv

	_csv := csv.NewReader(rStorageItems)
	_csv.FieldsPerRecord = 2
	_csv.ReuseRecord = true

	x.storage = x.storage[:0]

	for {
		rec, err = _csv.Read()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read next CSV record: %w", err)
		}

		// out-of-range safety guaranteed by csv settings
		_kv.k, err = _encoding.DecodeString(rec[0])
		if err != nil {
			return fmt.Errorf("decode storage item key: %w", err)
		}

		_kv.v, err = _encoding.DecodeString(rec[1])
		if err != nil {
			return fmt.Errorf("decode storage item value: %w", err)
		}

		x.storage = append(x.storage, _kv)
	}
}

// Header returns description of the dumped token.
func (x *Reader) Header() Header {
	return x.header
}

// IterateStorage passes all dumped storage items into f in the order they were
// written. IterateStorage breaks on any f's error and returns it.
func (x *Reader) IterateStorage(f func(key, value []byte) error) error {
	for i := range x.storage {
		if err := f(x.storage[i].k, x.storage[i].v); err != nil {
			return err
		}
	}
	return nil
}
