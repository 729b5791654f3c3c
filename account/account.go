/*
Package account defines account identifiers used by the ledger.

Accounts are Neo script hashes (util.Uint160). Textual representations accepted
by Parse are Neo addresses and little-endian hex script hashes. Binary form of
an address is a 25-byte owner ID (prefix, script hash, checksum).
*/
package account

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/nspcc-dev/neo-go/pkg/crypto/hash"
	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// OwnerIDSize is the length of binary owner ID.
const OwnerIDSize = 1 + util.Uint160Size + 4

// Zero is the null account. It never holds balance and can't receive assets.
var Zero util.Uint160

// ErrInvalidOwnerID is returned for malformed binary owner IDs.
var ErrInvalidOwnerID = errors.New("invalid owner ID")

// IsZero checks whether acc is the null account.
func IsZero(acc util.Uint160) bool {
	return acc.Equals(Zero)
}

// String returns Neo address of the account.
func String(acc util.Uint160) string {
	return address.Uint160ToString(acc)
}

// Parse decodes account from LE hex script hash or from Neo address (which is
// base58-encoded owner ID).
func Parse(s string) (util.Uint160, error) {
	if len(s) == 2*util.Uint160Size {
		return util.Uint160DecodeStringLE(s)
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return util.Uint160{}, fmt.Errorf("decode base58: %w", err)
	}

	return FromOwnerID(raw)
}

// OwnerID returns binary owner ID of the account.
func OwnerID(acc util.Uint160) []byte {
	res := make([]byte, 0, OwnerIDSize)
	res = append(res, address.Prefix)
	res = append(res, acc.BytesBE()...)
	return append(res, hash.Checksum(res)...)
}

// FromOwnerID decodes account from binary owner ID checking its prefix and
// checksum.
func FromOwnerID(id []byte) (util.Uint160, error) {
	if len(id) != OwnerIDSize {
		return util.Uint160{}, fmt.Errorf("%w: length %d", ErrInvalidOwnerID, len(id))
	}

	if id[0] != address.Prefix {
		return util.Uint160{}, fmt.Errorf("%w: prefix %x", ErrInvalidOwnerID, id[0])
	}

	body := id[:OwnerIDSize-4]
	if !bytes.Equal(hash.Checksum(body), id[OwnerIDSize-4:]) {
		return util.Uint160{}, fmt.Errorf("%w: checksum mismatch", ErrInvalidOwnerID)
	}

	return util.Uint160DecodeBytesBE(body[1:])
}
