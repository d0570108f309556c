package repositories

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	return db
}

func mustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}

func createAccountTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE accounts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		currency TEXT NOT NULL,
		address TEXT NOT NULL,
		name TEXT,
		kind TEXT NOT NULL,
		balance NUMERIC NOT NULL DEFAULT 0 CONSTRAINT balance_non_negative CHECK (balance >= 0),
		created_at DATETIME,
		updated_at DATETIME
	);`)
	mustExec(t, db, `CREATE UNIQUE INDEX uidx_accounts_wallet_binding
		ON accounts (address, currency, kind) WHERE address <> '';`)
}

func createTransactionTables(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE transactions (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		dr_account_id TEXT NOT NULL,
		cr_account_id TEXT NOT NULL,
		currency TEXT NOT NULL,
		value TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		hold_until DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	);`)
	mustExec(t, db, `CREATE TABLE tx_groups (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		user_id TEXT NOT NULL,
		blockchain_tx_hash TEXT,
		tx1_id TEXT,
		tx2_id TEXT,
		tx3_id TEXT,
		tx4_id TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`)
}

func createBlockchainTables(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE blockchain_transactions (
		hash TEXT PRIMARY KEY,
		from_address TEXT NOT NULL,
		to_address TEXT NOT NULL,
		currency TEXT NOT NULL,
		value TEXT NOT NULL,
		fee TEXT NOT NULL DEFAULT '0',
		block_number INTEGER,
		confirmations INTEGER,
		created_at DATETIME,
		updated_at DATETIME
	);`)
	mustExec(t, db, `CREATE TABLE pending_blockchain_transactions (
		hash TEXT PRIMARY KEY,
		from_address TEXT NOT NULL,
		to_address TEXT NOT NULL,
		currency TEXT NOT NULL,
		value TEXT NOT NULL,
		fee TEXT NOT NULL DEFAULT '0',
		created_at DATETIME
	);`)
	mustExec(t, db, `CREATE TABLE strange_blockchain_transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hash TEXT NOT NULL,
		from_address TEXT,
		to_address TEXT,
		currency TEXT NOT NULL,
		value TEXT NOT NULL,
		fee TEXT NOT NULL DEFAULT '0',
		block_number INTEGER,
		confirmations INTEGER,
		commentary TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	);`)
	mustExec(t, db, `CREATE TABLE seen_hashes (
		hash TEXT NOT NULL,
		currency TEXT NOT NULL,
		block_number INTEGER,
		created_at DATETIME,
		PRIMARY KEY (hash, currency)
	);`)
}

func createKeyValueTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE key_values (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME,
		updated_at DATETIME
	);`)
}

func createLedgerTables(t *testing.T, db *gorm.DB) {
	createAccountTable(t, db)
	createTransactionTables(t, db)
	createBlockchainTables(t, db)
	createKeyValueTable(t, db)
}
