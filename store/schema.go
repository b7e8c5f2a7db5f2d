package store

const schema = `
CREATE TABLE IF NOT EXISTS klines (
	symbol TEXT NOT NULL,
	interval TEXT NOT NULL,
	open_time INTEGER NOT NULL,
	open REAL NOT NULL,
	high REAL NOT NULL,
	low REAL NOT NULL,
	close REAL NOT NULL,
	volume REAL NOT NULL,
	PRIMARY KEY (symbol, interval, open_time)
);

CREATE INDEX IF NOT EXISTS idx_klines_lookup ON klines(symbol, interval, open_time);

CREATE TABLE IF NOT EXISTS symbol_constraints (
	symbol TEXT PRIMARY KEY,
	min_qty REAL NOT NULL,
	step_size REAL NOT NULL,
	quantity_precision INTEGER NOT NULL,
	min_notional REAL NOT NULL,
	price_precision INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS leverage_tiers (
	symbol TEXT NOT NULL,
	tier INTEGER NOT NULL,
	notional_floor REAL NOT NULL,
	max_notional REAL NOT NULL,
	maint_amount REAL NOT NULL,
	mmr REAL NOT NULL,
	max_leverage REAL NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (symbol, tier)
);

CREATE TABLE IF NOT EXISTS orders (
	order_id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity REAL NOT NULL,
	notional REAL NOT NULL,
	margin REAL NOT NULL,
	leverage REAL NOT NULL,
	stop_loss REAL NOT NULL,
	take_profit REAL NOT NULL,
	placed_at DATETIME NOT NULL
);
`
