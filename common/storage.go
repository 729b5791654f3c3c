package common

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/encoding/bigint"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

// Store is a key-value storage ledger components work with. It is implemented
// by storage.MemCachedStore. Reads are expected to fail only with
// storage.ErrKeyNotFound.
type Store interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte)
	Delete(key []byte)
}

// GetInt reads integer stored under the key. Missing item is zero.
func GetInt(st Store, key []byte) *big.Int {
	data, err := st.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return new(big.Int)
		}
		// in-memory stores never fail, this is a broken invariant
		panic(fmt.Errorf("read item %x: %w", key, err))
	}

	return bigint.FromBytes(data)
}

// PutInt stores integer under the key. Zero value removes the item, so absent
// and zero items are indistinguishable.
func PutInt(st Store, key []byte, v *big.Int) {
	if v.Sign() == 0 {
		st.Delete(key)
		return
	}

	st.Put(key, bigint.ToBytes(v))
}

// SetSerialized serializes item and puts it into the storage.
func SetSerialized(st Store, key []byte, item stackitem.Item) error {
	data, err := stackitem.Serialize(item)
	if err != nil {
		return fmt.Errorf("serialize item: %w", err)
	}

	st.Put(key, data)
	return nil
}

// GetSerialized reads and deserializes item stored under the key. It returns
// nil item without error if there is no such key.
func GetSerialized(st Store, key []byte) (stackitem.Item, error) {
	data, err := st.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read item %x: %w", key, err)
	}

	item, err := stackitem.Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("deserialize item: %w", err)
	}

	return item, nil
}
