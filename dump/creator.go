package dump

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
)

// Creator dumps token ledger state. Output file format:
//
//	'<label>-<seq>-token.json': JSON token description
//	'<label>-<seq>-storage.csv': CSV of storage items
//
// Storage CSV are 'key,value' where binary key-value are base64-encoded.
//
// Use IterateDumps or Open to access existing dumps.
type Creator struct {
	dumpStreams

	header Header

	storageItemsCSV *csv.Writer
}

// NewCreator returns Creator which dumps the ledger into given directory. The
// dump is identified by specified ID. Resulting Creator should be closed when
// finished working with it.
//
// NewCreator fails if dump with provided ID already exists.
func NewCreator(dir string, id ID) (*Creator, error) {
	var res Creator

	err := initDumpStreams(&res.dumpStreams, dir, id, false)
	if err != nil {
		return nil, err
	}

	res.storageItemsCSV = csv.NewWriter(res.dumpStreams.storageItems)

	return &res, nil
}

// SetHeader sets token description written on Flush.
func (x *Creator) SetHeader(h Header) {
	x.header = h
}

// Write saves given binary key-value into the dump as storage item.
func (x *Creator) Write(key, value []byte) error {
	err := x.storageItemsCSV.Write([]string{
		_encoding.EncodeToString(key),
		_encoding.EncodeToString(value),
	})
	if err != nil {
		return fmt.Errorf("write storage item as CSV data: %w", err)
	}

	return nil
}

// Flush flushes accumulated dump to the file system.
func (x *Creator) Flush() error {
	jEnc := json.NewEncoder(x.dumpStreams.header)
	jEnc.SetIndent("", " ")

	err := jEnc.Encode(x.header)
	if err != nil {
		return fmt.Errorf("encode token description to JSON: %w", err)
	}

	x.storageItemsCSV.Flush()

	err = x.storageItemsCSV.Error()
	if err != nil {
		return fmt.Errorf("flush CSV data: %w", err)
	}

	return nil
}

// Close releases underlying resources of the Creator and makes it unusable.
func (x *Creator) Close() {
	x.close()
}
