package db

import (
	"context"
	"fmt"

	"payments/entities"
)

// DeadLetterRepository keeps dead-lettered payment references in Postgres so
// they survive restarts and are visible to every instance.
type DeadLetterRepository struct {
	db *DB
}

func NewDeadLetterRepository(db *DB) DeadLetterRepository {
	if db == nil {
		panic("db is nil")
	}
	return DeadLetterRepository{
		db: db,
	}
}

const insertDeadLetter = `
	INSERT INTO
	    dead_letters (payment_id, message_uuid, reason, topic, handler, received_at)
	VALUES
	    (:payment_id, :message_uuid, :reason, :topic, :handler, :received_at)`

func (dr DeadLetterRepository) Enqueue(ctx context.Context, letter entities.DeadLetter) error {
	_, err := dr.db.Conn.NamedExecContext(ctx, insertDeadLetter, letter)
	if err != nil {
		return fmt.Errorf("could not store dead letter: %w", err)
	}
	return nil
}

func (dr DeadLetterRepository) List(ctx context.Context) ([]entities.DeadLetter, error) {
	var letters []entities.DeadLetter
	err := dr.db.Conn.SelectContext(ctx, &letters, `
		SELECT dead_letter_id, payment_id, message_uuid, reason, topic, handler, received_at
		FROM dead_letters ORDER BY dead_letter_id`)
	if err != nil {
		return nil, fmt.Errorf("could not list dead letters: %w", err)
	}
	return letters, nil
}

// Drain removes and returns all queued entries in one statement, so two
// concurrent replays can never re-submit the same reference twice.
func (dr DeadLetterRepository) Drain(ctx context.Context) ([]entities.DeadLetter, error) {
	var letters []entities.DeadLetter
	err := dr.db.Conn.SelectContext(ctx, &letters, `
		DELETE FROM dead_letters
		RETURNING dead_letter_id, payment_id, message_uuid, reason, topic, handler, received_at`)
	if err != nil {
		return nil, fmt.Errorf("could not drain dead letters: %w", err)
	}
	return letters, nil
}
