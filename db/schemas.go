package db

var schema = `
CREATE TABLE IF NOT EXISTS payments (
	payment_id UUID PRIMARY KEY,
	idempotency_key VARCHAR(255) NOT NULL UNIQUE,
	amount NUMERIC(12, 2) NOT NULL CHECK (amount > 0),
	currency CHAR(3) NOT NULL,
	payment_type VARCHAR(10) NOT NULL,
	status VARCHAR(10) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS card_payment_details (
	payment_id UUID PRIMARY KEY REFERENCES payments (payment_id) ON DELETE CASCADE,
	card_number VARCHAR(25) NOT NULL,
	card_holder_name VARCHAR(255) NOT NULL,
	expiry_month INT NOT NULL,
	expiry_year INT NOT NULL
);

CREATE TABLE IF NOT EXISTS bank_payment_details (
	payment_id UUID PRIMARY KEY REFERENCES payments (payment_id) ON DELETE CASCADE,
	account_number VARCHAR(20) NOT NULL,
	bsb CHAR(6) NOT NULL,
	account_holder_name VARCHAR(255) NOT NULL,
	bank_name VARCHAR(255)
);

CREATE TABLE IF NOT EXISTS dead_letters (
	dead_letter_id BIGSERIAL PRIMARY KEY,
	payment_id UUID NOT NULL,
	message_uuid VARCHAR(36) NOT NULL,
	reason TEXT NOT NULL,
	topic VARCHAR(255) NOT NULL,
	handler VARCHAR(255) NOT NULL,
	received_at TIMESTAMPTZ NOT NULL
);
`
