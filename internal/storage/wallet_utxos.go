package storage

import (
	"database/sql"
	"time"

	"github.com/btctx/engine/internal/utxo"
)

// SaveWalletUTXOs replaces the cached UTXO set for address with utxos,
// stamping every row with the current cache time.
func (s *Storage) SaveWalletUTXOs(address string, utxos []utxo.UTXO) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM wallet_utxos WHERE address = ?`, address); err != nil {
		return err
	}

	now := time.Now().Unix()
	stmt, err := tx.Prepare(`
		INSERT INTO wallet_utxos (address, txid, vout, amount, height, cached_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, u := range utxos {
		if _, err := stmt.Exec(address, u.TxID, u.Vout, u.Amount, u.Height, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadWalletUTXOs returns the last cached UTXO set for address, along with
// the unix timestamp the cache was written at. ok is false if nothing has
// been cached for this address yet.
func (s *Storage) LoadWalletUTXOs(address string) (utxos []utxo.UTXO, cachedAt int64, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT txid, vout, amount, height, cached_at
		FROM wallet_utxos WHERE address = ? ORDER BY amount DESC
	`, address)
	if err != nil {
		return nil, 0, false, err
	}
	defer rows.Close()

	for rows.Next() {
		var u utxo.UTXO
		var height sql.NullInt64
		if err := rows.Scan(&u.TxID, &u.Vout, &u.Amount, &height, &cachedAt); err != nil {
			return nil, 0, false, err
		}
		u.Address = address
		u.Height = height.Int64
		utxos = append(utxos, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, false, err
	}

	return utxos, cachedAt, len(utxos) > 0, nil
}

// CachedBalance sums the cached UTXO amounts for address without querying
// the oracle.
func (s *Storage) CachedBalance(address string) (int64, bool, error) {
	utxos, _, ok, err := s.LoadWalletUTXOs(address)
	if err != nil || !ok {
		return 0, ok, err
	}
	var total int64
	for _, u := range utxos {
		total += u.Amount
	}
	return total, true, nil
}
