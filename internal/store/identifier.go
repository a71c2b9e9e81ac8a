package store

import (
	"context"
	"fmt"
	"time"

	"github.com/haclabs/simcore/internal/sim"
)

// ClaimIdentifier records a printed identifier in the tenant-wide ledger.
// Returns true if the identifier was new, false if it was already issued.
// The primary key on (tenant_id, identifier) is the collision guarantee;
// callers retry with a fresh identifier on false.
func (s *Store) ClaimIdentifier(ctx context.Context, tenant, identifier string, kind sim.IdentifierKind, issuedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO issued_identifiers (tenant_id, identifier, kind, issued_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (tenant_id, identifier) DO NOTHING
	`, tenant, identifier, string(kind), fmtTime(issuedAt))
	if err != nil {
		return false, fmt.Errorf("claim identifier: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim identifier: rows affected: %w", err)
	}

	return n > 0, nil
}

// IdentifierIssued reports whether an identifier already exists in a
// tenant's ledger.
func (s *Store) IdentifierIssued(ctx context.Context, tenant, identifier string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM issued_identifiers WHERE tenant_id = ? AND identifier = ?
	`, tenant, identifier).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup identifier: %w", err)
	}
	return n > 0, nil
}
