package token

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/token-ledger/common"
)

// MetadataPrefix is the storage key of the token description.
const MetadataPrefix = 'm'

var errNoMetadata = errors.New("missing token metadata")

type metadata struct {
	name     string
	symbol   string
	decimals int
	version  int
}

func metadataKey() []byte {
	return []byte{MetadataPrefix}
}

func currentVersion() int {
	return common.Version
}

func (m metadata) toStackItem() stackitem.Item {
	return stackitem.NewArray([]stackitem.Item{
		stackitem.NewByteArray([]byte(m.name)),
		stackitem.NewByteArray([]byte(m.symbol)),
		stackitem.Make(m.decimals),
		stackitem.Make(m.version),
	})
}

func (m *metadata) fromStackItem(item stackitem.Item) error {
	arr, ok := item.Value().([]stackitem.Item)
	if !ok || len(arr) != 4 {
		return errors.New("invalid metadata structure")
	}

	name, err := arr[0].TryBytes()
	if err != nil {
		return fmt.Errorf("name: %w", err)
	}

	symbol, err := arr[1].TryBytes()
	if err != nil {
		return fmt.Errorf("symbol: %w", err)
	}

	decimals, err := arr[2].TryInteger()
	if err != nil || !decimals.IsInt64() {
		return fmt.Errorf("invalid decimals %v", arr[2].Value())
	}

	version, err := arr[3].TryInteger()
	if err != nil || !version.IsInt64() {
		return fmt.Errorf("invalid version %v", arr[3].Value())
	}

	m.name = string(name)
	m.symbol = string(symbol)
	m.decimals = int(decimals.Int64())
	m.version = int(version.Int64())

	return nil
}

func (m metadata) put(st common.Store) error {
	if err := common.SetSerialized(st, metadataKey(), m.toStackItem()); err != nil {
		return fmt.Errorf("store metadata: %w", err)
	}
	return nil
}

func getMetadata(st common.Store) (metadata, error) {
	var m metadata

	item, err := common.GetSerialized(st, metadataKey())
	if err != nil {
		return m, err
	}
	if item == nil {
		return m, errNoMetadata
	}

	if err = m.fromStackItem(item); err != nil {
		return m, fmt.Errorf("decode metadata: %w", err)
	}

	return m, nil
}
