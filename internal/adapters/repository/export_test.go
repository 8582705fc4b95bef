package repository

import "context"

// Truncate empties the submissions table between tests.
func Truncate(ctx context.Context, s *PostgresStore) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE submissions`)
	return err
}
