package dump

import (
	"fmt"

	"github.com/nspcc-dev/token-ledger/token"
)

// Save dumps the current state of the engine into the directory. Partially
// written files are removed on failure.
func Save(dir string, id ID, e *token.Engine) (err error) {
	c, err := NewCreator(dir, id)
	if err != nil {
		return err
	}
	defer func() {
		c.Close()
		if err != nil {
			removeDump(dir, id)
		}
	}()

	info, err := e.Snapshot(c.Write)
	if err != nil {
		return fmt.Errorf("snapshot ledger: %w", err)
	}

	c.SetHeader(Header{
		Name:        info.Name,
		Symbol:      info.Symbol,
		Decimals:    info.Decimals,
		TotalSupply: info.TotalSupply.String(),
		Version:     info.Version,
	})

	return c.Flush()
}

// Restore creates an engine from the dump. See token.Restore for details.
func Restore(r *Reader, prm token.Prm) (*token.Engine, error) {
	e, err := token.Restore(prm, func(put func(key, value []byte) error) error {
		return r.IterateStorage(put)
	})
	if err != nil {
		return nil, err
	}

	if s := e.TotalSupply().String(); s != r.header.TotalSupply {
		return nil, fmt.Errorf("%w: dump header declares supply %s, restored %s",
			token.ErrCorrupted, r.header.TotalSupply, s)
	}

	return e, nil
}
