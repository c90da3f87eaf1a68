package postgres

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/uint128"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/universal-brc20/indexer/common/errs"
	"github.com/universal-brc20/indexer/modules/brc20/internal/datagateway"
	"github.com/universal-brc20/indexer/modules/brc20/internal/entity"
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func (r *Repository) GetLatestIndexedBlock(ctx context.Context) (*entity.IndexedBlock, error) {
	row := r.db.QueryRow(ctx, `
		SELECT block_height, hash, prev_hash, commit_checksum, commit_plan, created_at
		FROM brc20_indexed_blocks
		ORDER BY block_height DESC
		LIMIT 1
	`)
	return scanIndexedBlock(row)
}

func (r *Repository) GetIndexedBlockByHeight(ctx context.Context, height uint64) (*entity.IndexedBlock, error) {
	row := r.db.QueryRow(ctx, `
		SELECT block_height, hash, prev_hash, commit_checksum, commit_plan, created_at
		FROM brc20_indexed_blocks
		WHERE block_height = $1
	`, int64(height))
	return scanIndexedBlock(row)
}

func scanIndexedBlock(row pgx.Row) (*entity.IndexedBlock, error) {
	var (
		height                   int64
		hash, prevHash, checksum string
		planBytes                []byte
		createdAt                pgtype.Timestamptz
	)
	if err := row.Scan(&height, &hash, &prevHash, &checksum, &planBytes, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.WithStack(errs.NotFound)
		}
		return nil, errors.Wrap(err, "error during query")
	}
	block := &entity.IndexedBlock{Height: uint64(height)}
	var err error
	if block.Hash, err = hashFromString(hash); err != nil {
		return nil, errors.WithStack(err)
	}
	if block.PrevHash, err = hashFromString(prevHash); err != nil {
		return nil, errors.WithStack(err)
	}
	if block.CommitChecksum, err = hashFromString(checksum); err != nil {
		return nil, errors.WithStack(err)
	}
	var plan entity.CommitPlan
	if err := json.Unmarshal(planBytes, &plan); err != nil {
		return nil, errors.Wrap(err, "can't unmarshal stored commit plan")
	}
	block.CommitPlan = &plan
	if createdAt.Valid {
		block.CreatedAt = createdAt.Time.UTC()
	}
	return block, nil
}

func (r *Repository) CreateIndexedBlock(ctx context.Context, block *entity.IndexedBlock) error {
	planBytes, err := json.Marshal(block.CommitPlan)
	if err != nil {
		return errors.Wrap(err, "can't marshal commit plan")
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO brc20_indexed_blocks (block_height, hash, prev_hash, commit_checksum, commit_plan)
		VALUES ($1, $2, $3, $4, $5)
	`, int64(block.Height), block.Hash.String(), block.PrevHash.String(), block.CommitChecksum.String(), planBytes)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrapf(errs.Duplicate, "block %d already indexed", block.Height)
		}
		return errors.Wrap(err, "error during exec")
	}
	return nil
}

func (r *Repository) DeleteIndexedBlocksSinceHeight(ctx context.Context, height uint64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM brc20_indexed_blocks WHERE block_height >= $1`, int64(height)); err != nil {
		return errors.Wrap(err, "error during exec")
	}
	return nil
}

func (r *Repository) GetDeployEntryByTick(ctx context.Context, tick string) (*entity.DeployEntry, error) {
	row := r.db.QueryRow(ctx, `
		SELECT tick, original_tick, max_supply, limit_per_mint, decimals, deployer_pk_script,
			deploy_tx_hash, block_height, tx_index, timestamp, legacy_validated
		FROM brc20_deploy_entries
		WHERE tick = $1
	`, tick)
	var (
		entry                   entity.DeployEntry
		maxSupply, limitPerMint pgtype.Numeric
		decimals                int16
		txHash                  string
		height                  int64
		txIndex                 int32
		timestamp               pgtype.Timestamptz
	)
	err := row.Scan(&entry.Tick, &entry.OriginalTick, &maxSupply, &limitPerMint, &decimals,
		&entry.DeployerPkScript, &txHash, &height, &txIndex, &timestamp, &entry.LegacyValidated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.WithStack(errs.NotFound)
		}
		return nil, errors.Wrap(err, "error during query")
	}
	if entry.MaxSupply, err = uint128FromNumeric(maxSupply); err != nil {
		return nil, errors.WithStack(err)
	}
	if entry.LimitPerMint, err = uint128FromNumeric(limitPerMint); err != nil {
		return nil, errors.WithStack(err)
	}
	if entry.DeployTxHash, err = hashFromString(txHash); err != nil {
		return nil, errors.WithStack(err)
	}
	entry.Decimals = uint16(decimals)
	entry.BlockHeight = uint64(height)
	entry.TxIndex = uint32(txIndex)
	if timestamp.Valid {
		entry.Timestamp = timestamp.Time.UTC()
	}
	return &entry, nil
}

func (r *Repository) CreateDeployEntry(ctx context.Context, entry *entity.DeployEntry) error {
	maxSupply, err := numericFromUint128(entry.MaxSupply)
	if err != nil {
		return errors.WithStack(err)
	}
	limitPerMint, err := numericFromUint128(entry.LimitPerMint)
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO brc20_deploy_entries (tick, original_tick, max_supply, limit_per_mint, decimals,
			deployer_pk_script, deploy_tx_hash, block_height, tx_index, timestamp, legacy_validated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, entry.Tick, entry.OriginalTick, maxSupply, limitPerMint, int16(entry.Decimals),
		entry.DeployerPkScript, entry.DeployTxHash.String(), int64(entry.BlockHeight),
		int32(entry.TxIndex), entry.Timestamp, entry.LegacyValidated)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrapf(errs.Duplicate, "ticker %s already deployed", entry.Tick)
		}
		return errors.Wrap(err, "error during exec")
	}
	return nil
}

func (r *Repository) DeleteDeployEntryByTick(ctx context.Context, tick string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM brc20_deploy_entries WHERE tick = $1`, tick); err != nil {
		return errors.Wrap(err, "error during exec")
	}
	return nil
}

func (r *Repository) GetBalance(ctx context.Context, pkScript, tick string) (uint128.Uint128, error) {
	row := r.db.QueryRow(ctx, `
		SELECT amount FROM brc20_balances WHERE pk_script = $1 AND tick = $2
	`, pkScript, tick)
	var amount pgtype.Numeric
	if err := row.Scan(&amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uint128.Zero, nil
		}
		return uint128.Zero, errors.Wrap(err, "error during query")
	}
	result, err := uint128FromNumeric(amount)
	if err != nil {
		return uint128.Zero, errors.WithStack(err)
	}
	return result, nil
}

func (r *Repository) AddBalance(ctx context.Context, pkScript, tick string, amount uint128.Uint128, blockHeight uint64) error {
	value, err := numericFromUint128(amount)
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO brc20_balances (pk_script, tick, amount, block_height)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (pk_script, tick) DO UPDATE
		SET amount = brc20_balances.amount + EXCLUDED.amount, block_height = EXCLUDED.block_height
	`, pkScript, tick, value, int64(blockHeight))
	if err != nil {
		return errors.Wrap(err, "error during exec")
	}
	return nil
}

func (r *Repository) SubBalance(ctx context.Context, pkScript, tick string, amount uint128.Uint128, blockHeight uint64) error {
	value, err := numericFromUint128(amount)
	if err != nil {
		return errors.WithStack(err)
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE brc20_balances
		SET amount = amount - $3, block_height = $4
		WHERE pk_script = $1 AND tick = $2 AND amount >= $3
	`, pkScript, tick, value, int64(blockHeight))
	if err != nil {
		return errors.Wrap(err, "error during exec")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(errs.InvalidArgument, "balance underflow, pkScript: %s, tick: %s", pkScript, tick)
	}
	return nil
}

func supplyColumn(field entity.SupplyField) (string, error) {
	switch field {
	case entity.SupplyFieldUniversal:
		return "universal_minted", nil
	case entity.SupplyFieldLegacy:
		return "legacy_minted", nil
	case entity.SupplyFieldBurned:
		return "burned", nil
	}
	return "", errors.Wrapf(errs.InvalidArgument, "unknown supply field %q", field)
}

func (r *Repository) GetSupply(ctx context.Context, tick string) (*entity.Supply, error) {
	row := r.db.QueryRow(ctx, `
		SELECT tick, universal_minted, legacy_minted, burned, block_height
		FROM brc20_supplies
		WHERE tick = $1
	`, tick)
	var (
		supply                          entity.Supply
		universal, legacyMinted, burned pgtype.Numeric
		height                          int64
	)
	if err := row.Scan(&supply.Tick, &universal, &legacyMinted, &burned, &height); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.WithStack(errs.NotFound)
		}
		return nil, errors.Wrap(err, "error during query")
	}
	var err error
	if supply.UniversalMinted, err = uint128FromNumeric(universal); err != nil {
		return nil, errors.WithStack(err)
	}
	if supply.LegacyMinted, err = uint128FromNumeric(legacyMinted); err != nil {
		return nil, errors.WithStack(err)
	}
	if supply.Burned, err = uint128FromNumeric(burned); err != nil {
		return nil, errors.WithStack(err)
	}
	supply.BlockHeight = uint64(height)
	return &supply, nil
}

func (r *Repository) AddSupply(ctx context.Context, tick string, field entity.SupplyField, amount uint128.Uint128, blockHeight uint64) error {
	column, err := supplyColumn(field)
	if err != nil {
		return errors.WithStack(err)
	}
	value, err := numericFromUint128(amount)
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO brc20_supplies (tick, `+column+`, block_height)
		VALUES ($1, $2, $3)
		ON CONFLICT (tick) DO UPDATE
		SET `+column+` = brc20_supplies.`+column+` + EXCLUDED.`+column+`, block_height = EXCLUDED.block_height
	`, tick, value, int64(blockHeight))
	if err != nil {
		return errors.Wrap(err, "error during exec")
	}
	return nil
}

func (r *Repository) SubSupply(ctx context.Context, tick string, field entity.SupplyField, amount uint128.Uint128, blockHeight uint64) error {
	column, err := supplyColumn(field)
	if err != nil {
		return errors.WithStack(err)
	}
	value, err := numericFromUint128(amount)
	if err != nil {
		return errors.WithStack(err)
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE brc20_supplies
		SET `+column+` = `+column+` - $2, block_height = $3
		WHERE tick = $1 AND `+column+` >= $2
	`, tick, value, int64(blockHeight))
	if err != nil {
		return errors.Wrap(err, "error during exec")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(errs.InvalidArgument, "supply underflow, tick: %s, field: %s", tick, field)
	}
	return nil
}

func (r *Repository) GetLegacyTokenByTick(ctx context.Context, tick string) (*entity.LegacyToken, error) {
	row := r.db.QueryRow(ctx, `
		SELECT tick, original_tick, max_supply, decimals, deploy_inscription_id,
			deployed_at_height, block_height, fetched_at
		FROM brc20_legacy_tokens
		WHERE tick = $1
	`, tick)
	var (
		token              entity.LegacyToken
		maxSupply          pgtype.Numeric
		decimals           int16
		deployedAt, height int64
		fetchedAt          pgtype.Timestamptz
	)
	err := row.Scan(&token.Tick, &token.OriginalTick, &maxSupply, &decimals,
		&token.DeployInscriptionId, &deployedAt, &height, &fetchedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.WithStack(errs.NotFound)
		}
		return nil, errors.Wrap(err, "error during query")
	}
	if token.MaxSupply, err = uint128FromNumeric(maxSupply); err != nil {
		return nil, errors.WithStack(err)
	}
	token.Decimals = uint16(decimals)
	token.DeployedAtHeight = uint64(deployedAt)
	token.BlockHeight = uint64(height)
	if fetchedAt.Valid {
		token.FetchedAt = fetchedAt.Time.UTC()
	}
	return &token, nil
}

func (r *Repository) CreateLegacyToken(ctx context.Context, token *entity.LegacyToken) error {
	maxSupply, err := numericFromUint128(token.MaxSupply)
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO brc20_legacy_tokens (tick, original_tick, max_supply, decimals,
			deploy_inscription_id, deployed_at_height, block_height, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tick) DO NOTHING
	`, token.Tick, token.OriginalTick, maxSupply, int16(token.Decimals),
		token.DeployInscriptionId, int64(token.DeployedAtHeight), int64(token.BlockHeight), token.FetchedAt)
	if err != nil {
		return errors.Wrap(err, "error during exec")
	}
	return nil
}

func (r *Repository) DeleteLegacyTokenByTick(ctx context.Context, tick string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM brc20_legacy_tokens WHERE tick = $1`, tick); err != nil {
		return errors.Wrap(err, "error during exec")
	}
	return nil
}

func (r *Repository) GetBalancesByPkScript(ctx context.Context, pkScript string) ([]*entity.Balance, error) {
	rows, err := r.db.Query(ctx, `
		SELECT pk_script, tick, amount, block_height
		FROM brc20_balances
		WHERE pk_script = $1 AND amount > 0
		ORDER BY tick
	`, pkScript)
	if err != nil {
		return nil, errors.Wrap(err, "error during query")
	}
	defer rows.Close()
	return scanBalances(rows)
}

func (r *Repository) GetBalancesByTick(ctx context.Context, tick string, limit, offset int32) ([]*entity.Balance, error) {
	rows, err := r.db.Query(ctx, `
		SELECT pk_script, tick, amount, block_height
		FROM brc20_balances
		WHERE tick = $1 AND amount > 0
		ORDER BY amount DESC, pk_script
		LIMIT $2 OFFSET $3
	`, tick, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "error during query")
	}
	defer rows.Close()
	return scanBalances(rows)
}

func scanBalances(rows pgx.Rows) ([]*entity.Balance, error) {
	balances := make([]*entity.Balance, 0)
	for rows.Next() {
		var (
			balance entity.Balance
			amount  pgtype.Numeric
			height  int64
		)
		if err := rows.Scan(&balance.PkScript, &balance.Tick, &amount, &height); err != nil {
			return nil, errors.Wrap(err, "error during scan")
		}
		var err error
		if balance.Amount, err = uint128FromNumeric(amount); err != nil {
			return nil, errors.WithStack(err)
		}
		balance.BlockHeight = uint64(height)
		balances = append(balances, &balance)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error during iteration")
	}
	return balances, nil
}

func (r *Repository) GetOperationLogs(ctx context.Context, filter datagateway.OperationLogFilter, limit, offset int32) ([]*entity.OperationLog, error) {
	conditions := make([]string, 0, 4)
	args := make([]any, 0, 6)
	addCondition := func(condition string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, strings.Replace(condition, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if filter.Tick != "" {
		addCondition("tick = ?", filter.Tick)
	}
	if filter.TxHash != nil {
		addCondition("tx_hash = ?", filter.TxHash.String())
	}
	if filter.FromHeight > 0 {
		addCondition("block_height >= ?", int64(filter.FromHeight))
	}
	if filter.ToHeight > 0 {
		addCondition("block_height <= ?", int64(filter.ToHeight))
	}
	if filter.OnlyValid {
		conditions = append(conditions, "valid = TRUE")
	}
	if filter.OnlyInvalid {
		conditions = append(conditions, "valid = FALSE")
	}
	query := `
		SELECT id, tx_hash, op, tick, amount, block_height, block_hash, tx_index, sub_index,
			from_pk_script, to_pk_script, valid, error_code, raw_payload, timestamp
		FROM brc20_operation_logs
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, limit)
	query += " ORDER BY block_height, tx_index, sub_index LIMIT $" + strconv.Itoa(len(args))
	args = append(args, offset)
	query += " OFFSET $" + strconv.Itoa(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "error during query")
	}
	defer rows.Close()

	logs := make([]*entity.OperationLog, 0)
	for rows.Next() {
		var (
			log               entity.OperationLog
			txHash, blockHash string
			height            int64
			txIndex, subIndex int32
			timestamp         pgtype.Timestamptz
		)
		err := rows.Scan(&log.Id, &txHash, &log.OpTag, &log.Tick, &log.AmountRaw, &height, &blockHash,
			&txIndex, &subIndex, &log.FromPkScript, &log.ToPkScript, &log.Valid, &log.ErrorCode,
			&log.RawPayload, &timestamp)
		if err != nil {
			return nil, errors.Wrap(err, "error during scan")
		}
		if log.TxHash, err = hashFromString(txHash); err != nil {
			return nil, errors.WithStack(err)
		}
		if log.BlockHash, err = hashFromString(blockHash); err != nil {
			return nil, errors.WithStack(err)
		}
		log.BlockHeight = uint64(height)
		log.TxIndex = uint32(txIndex)
		log.SubIndex = subIndex
		if timestamp.Valid {
			log.Timestamp = timestamp.Time.UTC()
		}
		logs = append(logs, &log)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error during iteration")
	}
	return logs, nil
}

func (r *Repository) CreateOperationLogs(ctx context.Context, logs []*entity.OperationLog) error {
	for _, log := range logs {
		_, err := r.db.Exec(ctx, `
			INSERT INTO brc20_operation_logs (tx_hash, op, tick, amount, block_height, block_hash,
				tx_index, sub_index, from_pk_script, to_pk_script, valid, error_code, raw_payload, timestamp)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`, log.TxHash.String(), log.OpTag, log.Tick, log.AmountRaw, int64(log.BlockHeight),
			log.BlockHash.String(), int32(log.TxIndex), log.SubIndex, log.FromPkScript,
			log.ToPkScript, log.Valid, log.ErrorCode, log.RawPayload, log.Timestamp)
		if err != nil {
			return errors.Wrap(err, "error during exec")
		}
	}
	return nil
}

func (r *Repository) DeleteOperationLogsSinceHeight(ctx context.Context, height uint64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM brc20_operation_logs WHERE block_height >= $1`, int64(height)); err != nil {
		return errors.Wrap(err, "error during exec")
	}
	return nil
}
