package ledger

// Times are stored as unix milliseconds.
const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	client_id TEXT NOT NULL,
	broker_id TEXT NOT NULL DEFAULT '',
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	volume REAL NOT NULL,
	lot REAL NOT NULL,
	entry_price REAL NOT NULL,
	close_price REAL NOT NULL DEFAULT 0,
	take_profit REAL,
	stop_loss REAL,
	category TEXT NOT NULL,
	demo INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	opened_at INTEGER NOT NULL,
	closed_at INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_trades_client ON trades(client_id, opened_at);
CREATE INDEX IF NOT EXISTS idx_trades_broker ON trades(broker_id, opened_at);
`
