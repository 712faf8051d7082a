package migrations

func init() {
	Register(Migration{
		Timestamp:   "20260101-000001",
		Description: "initial pixie schema",
		Up: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id          TEXT PRIMARY KEY,
				provider    TEXT NOT NULL,
				provider_id TEXT NOT NULL,
				email       TEXT,
				name        TEXT,
				api_key     TEXT NOT NULL UNIQUE,
				is_admin    INTEGER NOT NULL DEFAULT 0,
				created_at  TEXT NOT NULL,
				updated_at  TEXT NOT NULL,
				UNIQUE (provider, provider_id)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_users_api_key ON users(api_key)`,

			`CREATE TABLE IF NOT EXISTS user_credits (
				user_id            TEXT PRIMARY KEY REFERENCES users(id),
				balance            INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
				lifetime_purchased INTEGER NOT NULL DEFAULT 0,
				lifetime_spent     INTEGER NOT NULL DEFAULT 0,
				updated_at         TEXT NOT NULL
			)`,

			`CREATE TABLE IF NOT EXISTS credit_transactions (
				id            TEXT PRIMARY KEY,
				user_id       TEXT NOT NULL REFERENCES users(id),
				type          TEXT NOT NULL,
				amount        INTEGER NOT NULL,
				balance_after INTEGER NOT NULL,
				description   TEXT NOT NULL DEFAULT '',
				reference_id  TEXT,
				created_at    TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_credit_transactions_user ON credit_transactions(user_id, created_at DESC)`,

			`CREATE TABLE IF NOT EXISTS credit_purchases (
				id               TEXT PRIMARY KEY,
				user_id          TEXT NOT NULL REFERENCES users(id),
				pack_id          TEXT NOT NULL,
				credits          INTEGER NOT NULL,
				amount_usd_cents INTEGER NOT NULL,
				payment_provider TEXT NOT NULL,
				payment_id       TEXT,
				status           TEXT NOT NULL DEFAULT 'pending',
				created_at       TEXT NOT NULL,
				completed_at     TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_credit_purchases_user ON credit_purchases(user_id, created_at DESC)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_credit_purchases_provider_payment ON credit_purchases(payment_provider, payment_id)`,

			`CREATE TABLE IF NOT EXISTS stored_images (
				id                TEXT PRIMARY KEY,
				user_id           TEXT NOT NULL REFERENCES users(id),
				r2_key            TEXT NOT NULL,
				prompt            TEXT NOT NULL,
				provider          TEXT NOT NULL,
				model             TEXT NOT NULL,
				size              TEXT NOT NULL,
				quality           TEXT,
				created_at        TEXT NOT NULL,
				expires_at        TEXT NOT NULL,
				openai_cost_cents REAL NOT NULL DEFAULT 0,
				credits_charged   INTEGER NOT NULL DEFAULT 0,
				token_usage       TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_stored_images_user ON stored_images(user_id, created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_stored_images_public ON stored_images(created_at DESC)`,

			`CREATE TABLE IF NOT EXISTS usage_records (
				id                  TEXT PRIMARY KEY,
				user_id             TEXT NOT NULL REFERENCES users(id),
				request_type        TEXT NOT NULL,
				provider            TEXT NOT NULL,
				model               TEXT NOT NULL,
				prompt              TEXT NOT NULL,
				size                TEXT NOT NULL,
				quality             TEXT,
				image_count         INTEGER NOT NULL DEFAULT 0,
				input_images_count  INTEGER NOT NULL DEFAULT 0,
				tokens_total        INTEGER NOT NULL DEFAULT 0,
				tokens_input        INTEGER NOT NULL DEFAULT 0,
				tokens_output       INTEGER NOT NULL DEFAULT 0,
				tokens_text         INTEGER NOT NULL DEFAULT 0,
				tokens_image        INTEGER NOT NULL DEFAULT 0,
				r2_keys             TEXT,
				response_time_ms    INTEGER NOT NULL DEFAULT 0,
				error               TEXT,
				credits_charged     INTEGER NOT NULL DEFAULT 0,
				created_at          TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_usage_records_user ON usage_records(user_id, created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_usage_records_created ON usage_records(created_at)`,

			`CREATE TABLE IF NOT EXISTS device_auth_flows (
				id                   TEXT PRIMARY KEY,
				upstream_device_code TEXT NOT NULL,
				user_code            TEXT NOT NULL,
				client_type          TEXT NOT NULL,
				provider             TEXT NOT NULL,
				poll_interval        INTEGER NOT NULL DEFAULT 5,
				expires_at           TEXT NOT NULL,
				user_id              TEXT REFERENCES users(id),
				denied               INTEGER NOT NULL DEFAULT 0,
				created_at           TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_device_auth_flows_user_code ON device_auth_flows(user_code)`,

			`CREATE TABLE IF NOT EXISTS user_locks (
				user_id     TEXT PRIMARY KEY,
				acquired_at TEXT NOT NULL
			)`,
		},
	})
}
