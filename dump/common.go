package dump

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ID is a unique identifier of the dump.
type ID struct {
	// Label of the dumped ledger (e.g. testnet, mainnet).
	Label string
	// Sequence number of the dump with the given label.
	Seq uint64
}

// String returns hyphen-separated ID fields.
func (x ID) String() string {
	return x.Label + sep + strconv.FormatUint(x.Seq, 10)
}

// decodes ID fields from the hyphen-separated string.
func (x *ID) decodeString(s string) error {
	ss := strings.Split(s, sep)
	if len(ss) < 2 {
		return fmt.Errorf("expected '%s'-separated string with at least 2 items", sep)
	}

	n, err := strconv.ParseUint(ss[1], 10, 64)
	if err != nil {
		return fmt.Errorf("decode sequence number from '%s': %w", ss[1], err)
	}

	x.Label = ss[0]
	x.Seq = n

	return nil
}

// global encoding of binary values.
var _encoding = base64.StdEncoding

// Header is a JSON-encoded description of the dumped token.
type Header struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	// Decimal string of raw units.
	TotalSupply string `json:"totalSupply"`
	Version     int    `json:"version"`
}

// dumpStreams groups data streams for token description and storage.
type dumpStreams struct {
	header, storageItems io.ReadWriteCloser
}

// close closes all streams.
func (x *dumpStreams) close() {
	_ = x.storageItems.Close()
	_ = x.header.Close()
}

const (
	// word separator used in dump file naming
	sep = "-"
	// suffix of file with token description
	headerFileSuffix = "token.json"
	// suffix of file with storage items
	storageFileSuffix = "storage.csv"
)

// initDumpStreams opens data streams for the dump files located in the
// specified directory. If read flag is set, streams are read-only. Otherwise,
// files must not exist, and streams are write only.
func initDumpStreams(d *dumpStreams, dir string, id ID, read bool) error {
	var err error

	pathStorage := filepath.Join(dir, strings.Join([]string{id.String(), storageFileSuffix}, sep))
	if !read {
		if err = checkFileNotExists(pathStorage); err != nil {
			return err
		}
	}

	pathHeader := filepath.Join(dir, strings.Join([]string{id.String(), headerFileSuffix}, sep))
	if !read {
		if err = checkFileNotExists(pathHeader); err != nil {
			return err
		}
	}

	var flag int
	var perm os.FileMode

	if read {
		flag = os.O_RDONLY
	} else {
		flag = os.O_CREATE | os.O_WRONLY
		perm = 0600
	}

	d.storageItems, err = os.OpenFile(pathStorage, flag, perm)
	if err != nil {
		return fmt.Errorf("open file with storage items: %w", err)
	}

	d.header, err = os.OpenFile(pathHeader, flag, perm)
	if err != nil {
		_ = d.storageItems.Close()
		return fmt.Errorf("open file with token description: %w", err)
	}

	return nil
}

// removeDump removes files of the dump with the given ID, missing files are
// ignored.
func removeDump(dir string, id ID) {
	for _, suffix := range []string{headerFileSuffix, storageFileSuffix} {
		_ = os.Remove(filepath.Join(dir, strings.Join([]string{id.String(), suffix}, sep)))
	}
}

// checkFileNotExists checks that there is no file at the specified path.
func checkFileNotExists(p string) error {
	_, err := os.Stat(p)
	if !os.IsNotExist(err) {
		if err == nil {
			err = os.ErrExist
		}
		return fmt.Errorf("file '%s' absence check failed: %w", p, err)
	}
	return nil
}
