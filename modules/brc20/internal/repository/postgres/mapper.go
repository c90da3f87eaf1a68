package postgres

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/jackc/pgx/v5/pgtype"
)

func uint128FromNumeric(src pgtype.Numeric) (uint128.Uint128, error) {
	if !src.Valid {
		return uint128.Zero, nil
	}
	bytes, err := src.MarshalJSON()
	if err != nil {
		return uint128.Zero, errors.WithStack(err)
	}
	result, err := uint128.FromString(string(bytes))
	if err != nil {
		return uint128.Zero, errors.WithStack(err)
	}
	return result, nil
}

func numericFromUint128(src uint128.Uint128) (pgtype.Numeric, error) {
	var result pgtype.Numeric
	if err := result.UnmarshalJSON([]byte(src.String())); err != nil {
		return pgtype.Numeric{}, errors.WithStack(err)
	}
	return result, nil
}

func hashFromString(src string) (chainhash.Hash, error) {
	hash, err := chainhash.NewHashFromStr(src)
	if err != nil {
		return chainhash.Hash{}, errors.Wrapf(err, "invalid hash %q", src)
	}
	return *hash, nil
}
