// Package store handles all database and cache interactions.
//
// postgres.go -- pgxpool connection setup and identity queries.
// Creates a connection pool at startup, shared by the login event worker.
// All queries use parameterized statements (no string concatenation).
package store

import (
	"context"
	"fmt"
	"net"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore records provider identities and their logins.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates and pings a connection pool.
// Call once at startup from main.go; the returned store is safe for concurrent use.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool}, nil
}

// Close shuts down the connection pool and releases all resources.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// CheckHealth pings Postgres.
func (s *PostgresStore) CheckHealth(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// RecordLogin upserts the (provider, subject) identity with the latest profile
// and appends a login_events row, in one transaction.
func (s *PostgresStore) RecordLogin(ctx context.Context, rec LoginRecord) error {
	newID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generating identity id: %w", err)
	}
	claims := rec.Claims
	if claims == nil {
		claims = map[string]string{}
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var identityID uuid.UUID
		err := tx.QueryRow(ctx, `
			INSERT INTO identities
				(id, provider, subject, email, name, given_name, family_name, avatar_url, claims, login_count, first_login_at, last_login_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $10)
			ON CONFLICT (provider, subject) DO UPDATE SET
				email         = EXCLUDED.email,
				name          = EXCLUDED.name,
				given_name    = EXCLUDED.given_name,
				family_name   = EXCLUDED.family_name,
				avatar_url    = EXCLUDED.avatar_url,
				claims        = EXCLUDED.claims,
				login_count   = identities.login_count + 1,
				last_login_at = EXCLUDED.last_login_at
			RETURNING id`,
			newID, rec.Provider, rec.Subject,
			nullIfEmpty(rec.Email), nullIfEmpty(rec.Name), nullIfEmpty(rec.GivenName),
			nullIfEmpty(rec.FamilyName), nullIfEmpty(rec.AvatarURL),
			claims, rec.At,
		).Scan(&identityID)
		if err != nil {
			return fmt.Errorf("upserting identity: %w", err)
		}

		_, err = tx.Exec(ctx,
			"INSERT INTO login_events (identity_id, ip_address, user_agent, created_at) VALUES ($1, $2, $3, $4)",
			identityID, ipOrNull(rec.IPAddress), nullIfEmpty(rec.UserAgent), rec.At)
		if err != nil {
			return fmt.Errorf("inserting login event: %w", err)
		}
		return nil
	})
}

// GetIdentity fetches an identity by provider and subject.
// Returns pgx.ErrNoRows if none exists.
func (s *PostgresStore) GetIdentity(ctx context.Context, provider, subject string) (*Identity, error) {
	var id Identity
	err := s.pool.QueryRow(ctx, `
		SELECT id, provider, subject, email, name, given_name, family_name, avatar_url,
		       claims, login_count, first_login_at, last_login_at
		FROM identities
		WHERE provider = $1 AND subject = $2`,
		provider, subject,
	).Scan(&id.ID, &id.Provider, &id.Subject, &id.Email, &id.Name, &id.GivenName,
		&id.FamilyName, &id.AvatarURL, &id.Claims, &id.LoginCount, &id.FirstLoginAt, &id.LastLoginAt)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// CountLogins returns the number of login_events rows for an identity.
func (s *PostgresStore) CountLogins(ctx context.Context, identityID uuid.UUID) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, "SELECT count(*) FROM login_events WHERE identity_id = $1", identityID).Scan(&n)
	return n, err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ipOrNull returns s for the INET column only if it parses as an IP.
func ipOrNull(s string) *string {
	if net.ParseIP(s) == nil {
		return nil
	}
	return &s
}
