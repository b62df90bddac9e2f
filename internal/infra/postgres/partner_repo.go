package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iruldev/eroaming-broadcast-gateway/internal/domain/partner"
	"github.com/iruldev/eroaming-broadcast-gateway/internal/infra/resilience"
)

// PartnerRepo implements partner.Repository against PostgreSQL. Partner
// secrets (api_key) are stored already decrypted by an upstream column
// codec; this repository treats api_key as an opaque string column.
//
// Every query runs through a ResilienceWrapper (circuit breaker + retry)
// rather than a bare pool.QueryRow/Exec, so a flaky database connection
// degrades the same way a flaky partner endpoint does elsewhere in this
// module, instead of being the one unprotected call in the request path.
type PartnerRepo struct {
	pool     *pgxpool.Pool
	resilier resilience.ResilienceWrapper
}

// NewPartnerRepo creates a PartnerRepo over pool, wrapping every query
// with a database-preset circuit breaker, retrier, bulkhead, and timeout
// built from cfg -- the same four resilience layers this module applies
// to outbound partner calls, applied here to the one other network
// dependency the broadcast path has: Postgres.
func NewPartnerRepo(pool *pgxpool.Pool, cfg resilience.ResilienceConfig) *PartnerRepo {
	cbPresets := resilience.NewCircuitBreakerPresets(cfg.CircuitBreaker)
	bulkheadPresets := resilience.NewBulkheadPresets(cfg.Bulkhead)
	timeoutPresets := resilience.NewTimeoutPresets(cfg.Timeout)
	wrapper := resilience.NewResilienceWrapper(
		resilience.WithCircuitBreakerFactory(cbPresets.Factory()),
		resilience.WithWrapperRetrier(resilience.NewRetrier("partner-repo", cfg.Retry)),
		resilience.WithWrapperBulkhead(bulkheadPresets.ForDatabase()),
		resilience.WithWrapperTimeout(timeoutPresets.ForDatabase()),
	)
	return &PartnerRepo{pool: pool, resilier: wrapper}
}

const partnerColumns = `id, name, base_url, start_charging_endpoint, http_method,
	authentication_type, api_key, request_format, uid_field_name,
	success_status_pattern, response_status_path, response_message_path,
	timeout_ms, custom_headers, enabled, updated_at`

// FindActive returns every enabled partner.
func (r *PartnerRepo) FindActive(ctx context.Context) ([]partner.Partner, error) {
	var out []partner.Partner
	err := r.resilier.Execute(ctx, "partner-repo.find-active", func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx, `SELECT `+partnerColumns+` FROM partners WHERE enabled = true ORDER BY id`)
		if err != nil {
			return fmt.Errorf("partner_repo.FindActive: query: %w", err)
		}
		defer rows.Close()

		out = nil
		for rows.Next() {
			p, err := scanPartner(rows)
			if err != nil {
				return fmt.Errorf("partner_repo.FindActive: scan: %w", err)
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindByIDAndEnabled returns the enabled partner for id.
func (r *PartnerRepo) FindByIDAndEnabled(ctx context.Context, id string) (partner.Partner, error) {
	var p partner.Partner
	err := r.resilier.Execute(ctx, "partner-repo.find-by-id", func(ctx context.Context) error {
		row := r.pool.QueryRow(ctx,
			`SELECT `+partnerColumns+` FROM partners WHERE id = $1 AND enabled = true`, id)
		scanned, err := scanPartnerRow(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return partner.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("partner_repo.FindByIDAndEnabled: %w", err)
		}
		p = scanned
		return nil
	})
	if err != nil {
		if errors.Is(err, partner.ErrNotFound) {
			return partner.Partner{}, partner.ErrNotFound
		}
		return partner.Partner{}, err
	}
	return p, nil
}

// Save upserts p by id and returns the persisted record.
func (r *PartnerRepo) Save(ctx context.Context, p partner.Partner) (partner.Partner, error) {
	headers, err := json.Marshal(p.CustomHeaders)
	if err != nil {
		return partner.Partner{}, fmt.Errorf("partner_repo.Save: marshal custom_headers: %w", err)
	}

	var saved partner.Partner
	execErr := r.resilier.Execute(ctx, "partner-repo.save", func(ctx context.Context) error {
		row := r.pool.QueryRow(ctx, `
			INSERT INTO partners (id, name, base_url, start_charging_endpoint, http_method,
				authentication_type, api_key, request_format, uid_field_name,
				success_status_pattern, response_status_path, response_message_path,
				timeout_ms, custom_headers, enabled, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now())
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				base_url = EXCLUDED.base_url,
				start_charging_endpoint = EXCLUDED.start_charging_endpoint,
				http_method = EXCLUDED.http_method,
				authentication_type = EXCLUDED.authentication_type,
				api_key = EXCLUDED.api_key,
				request_format = EXCLUDED.request_format,
				uid_field_name = EXCLUDED.uid_field_name,
				success_status_pattern = EXCLUDED.success_status_pattern,
				response_status_path = EXCLUDED.response_status_path,
				response_message_path = EXCLUDED.response_message_path,
				timeout_ms = EXCLUDED.timeout_ms,
				custom_headers = EXCLUDED.custom_headers,
				enabled = EXCLUDED.enabled,
				updated_at = now()
			RETURNING `+partnerColumns,
			p.ID, p.Name, p.BaseURL, p.StartChargingEndpoint, p.HTTPMethod,
			p.AuthenticationType, p.APIKey, p.RequestFormat, p.UIDFieldName,
			p.SuccessStatusPattern, p.ResponseStatusPath, p.ResponseMessagePath,
			p.TimeoutMillis, headers, p.Enabled,
		)
		scanned, err := scanPartnerRow(row)
		if err != nil {
			return fmt.Errorf("partner_repo.Save: %w", err)
		}
		saved = scanned
		return nil
	})
	if execErr != nil {
		return partner.Partner{}, execErr
	}
	return saved, nil
}

// SetEnabled flips a partner's enabled flag.
func (r *PartnerRepo) SetEnabled(ctx context.Context, id string, enabled bool) error {
	return r.resilier.Execute(ctx, "partner-repo.set-enabled", func(ctx context.Context) error {
		tag, err := r.pool.Exec(ctx, `UPDATE partners SET enabled = $2, updated_at = now() WHERE id = $1`, id, enabled)
		if err != nil {
			return fmt.Errorf("partner_repo.SetEnabled: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return partner.ErrNotFound
		}
		return nil
	})
}

// rowScanner is satisfied by both pgx.Rows and pgx.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPartner(rows pgx.Rows) (partner.Partner, error) {
	return scanPartnerRow(rows)
}

func scanPartnerRow(row rowScanner) (partner.Partner, error) {
	var p partner.Partner
	var headers []byte
	err := row.Scan(
		&p.ID, &p.Name, &p.BaseURL, &p.StartChargingEndpoint, &p.HTTPMethod,
		&p.AuthenticationType, &p.APIKey, &p.RequestFormat, &p.UIDFieldName,
		&p.SuccessStatusPattern, &p.ResponseStatusPath, &p.ResponseMessagePath,
		&p.TimeoutMillis, &headers, &p.Enabled, &p.UpdatedAt,
	)
	if err != nil {
		return partner.Partner{}, err
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &p.CustomHeaders); err != nil {
			return partner.Partner{}, fmt.Errorf("unmarshal custom_headers: %w", err)
		}
	}
	return p, nil
}

var _ partner.Repository = (*PartnerRepo)(nil)
