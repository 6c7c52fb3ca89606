package database

import "github.com/jmoiron/sqlx"

// RunMigrations applies the idempotent schema. The CHECK on books backs the
// ledger invariant 0 <= available_copies <= total_copies at the storage
// layer; the partial unique indexes backstop the one-open-loan and
// one-active-reservation rules under concurrent writers.
func RunMigrations(db *sqlx.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		first_name    TEXT NOT NULL,
		last_name     TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE,
		role          TEXT NOT NULL DEFAULT 'member',
		password_hash TEXT NOT NULL,
		balance       NUMERIC(10,2) NOT NULL DEFAULT 0,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS books (
		id               BIGSERIAL PRIMARY KEY,
		title            TEXT NOT NULL,
		author           TEXT NOT NULL,
		isbn             TEXT NOT NULL UNIQUE,
		category         TEXT NOT NULL,
		price            NUMERIC(10,2) NOT NULL DEFAULT 0,
		total_copies     INTEGER NOT NULL DEFAULT 0,
		available_copies INTEGER NOT NULL DEFAULT 0,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT books_copies_range CHECK (
			available_copies >= 0 AND available_copies <= total_copies
		)
	);
	CREATE INDEX IF NOT EXISTS idx_books_category ON books(category);

	CREATE TABLE IF NOT EXISTS loans (
		id          BIGSERIAL PRIMARY KEY,
		user_id     BIGINT NOT NULL REFERENCES users(id),
		book_id     BIGINT NOT NULL REFERENCES books(id),
		borrow_date TIMESTAMPTZ NOT NULL,
		due_date    TIMESTAMPTZ NOT NULL,
		return_date TIMESTAMPTZ,
		status      TEXT NOT NULL DEFAULT 'BORROWED',
		fine_amount NUMERIC(10,2) NOT NULL DEFAULT 0,
		fine_paid   BOOLEAN NOT NULL DEFAULT FALSE
	);
	CREATE UNIQUE INDEX IF NOT EXISTS uq_loans_open
		ON loans(user_id, book_id) WHERE status = 'BORROWED';
	CREATE INDEX IF NOT EXISTS idx_loans_user ON loans(user_id, borrow_date DESC);
	CREATE INDEX IF NOT EXISTS idx_loans_due ON loans(due_date) WHERE status = 'BORROWED';

	CREATE TABLE IF NOT EXISTS reservations (
		id               BIGSERIAL PRIMARY KEY,
		user_id          BIGINT NOT NULL REFERENCES users(id),
		book_id          BIGINT NOT NULL REFERENCES books(id),
		reservation_date TIMESTAMPTZ NOT NULL DEFAULT now(),
		status           TEXT NOT NULL DEFAULT 'ACTIVE'
	);
	CREATE UNIQUE INDEX IF NOT EXISTS uq_reservations_active
		ON reservations(user_id, book_id) WHERE status = 'ACTIVE';
	CREATE INDEX IF NOT EXISTS idx_reservations_queue
		ON reservations(book_id, reservation_date) WHERE status = 'ACTIVE';

	CREATE TABLE IF NOT EXISTS wallet_ledger (
		id            BIGSERIAL PRIMARY KEY,
		user_id       BIGINT NOT NULL REFERENCES users(id),
		entry_type    TEXT NOT NULL,
		amount        NUMERIC(10,2) NOT NULL,
		balance_after NUMERIC(10,2) NOT NULL,
		ref_loan_id   BIGINT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_wallet_ledger_user
		ON wallet_ledger(user_id, created_at DESC);
	`
	_, err := db.Exec(schema)
	return err
}
