// Package store persists assessments and their latest pricing snapshot.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Simplici0/studio-quotes/internal/assessment"
	"github.com/Simplici0/studio-quotes/internal/pricing"
)

// ErrNotFound is returned when no assessment has the requested id.
var ErrNotFound = errors.New("assessment not found")

// ErrConflict is returned by Update when the stored version moved on.
var ErrConflict = errors.New("assessment was modified concurrently")

// timeLayout is fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const defaultListLimit = 50

// Record is a stored assessment. Version grows by one on every feature
// update; Pricing is the breakdown computed for that version.
type Record struct {
	ID        string             `json:"id"`
	Version   int                `json:"version"`
	Answers   assessment.Answers `json:"answers"`
	Pricing   *pricing.Breakdown `json:"pricing,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Summary is a list row.
type Summary struct {
	ID             string    `json:"id"`
	Version        int       `json:"version"`
	ProjectName    string    `json:"projectName"`
	ClientEmail    string    `json:"clientEmail,omitempty"`
	Budget         string    `json:"budget,omitempty"`
	FinalTotal     int64     `json:"finalTotal"`
	CatalogVersion string    `json:"catalogVersion,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Query filters List. Text matches project name or client email.
type Query struct {
	Text  string
	Limit int
}

// SQL stores assessments in the assessments table.
type SQL struct {
	db     *sql.DB
	driver string
}

// New returns a store over db. driver selects the placeholder style.
func New(db *sql.DB, driver string) *SQL {
	return &SQL{db: db, driver: driver}
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQL) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Load returns the assessment with id.
func (s *SQL) Load(ctx context.Context, id string) (Record, error) {
	var (
		rec                  Record
		answersJSON          string
		pricingJSON          string
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, version, answers_json, pricing_json, created_at, updated_at
		FROM assessments
		WHERE id = ?
	`), id).Scan(&rec.ID, &rec.Version, &answersJSON, &pricingJSON, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("load assessment %s: %w", id, err)
	}

	if err := json.Unmarshal([]byte(answersJSON), &rec.Answers); err != nil {
		return Record{}, fmt.Errorf("decode answers of %s: %w", id, err)
	}
	if pricingJSON != "" {
		var b pricing.Breakdown
		if err := json.Unmarshal([]byte(pricingJSON), &b); err != nil {
			return Record{}, fmt.Errorf("decode pricing of %s: %w", id, err)
		}
		rec.Pricing = &b
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return Record{}, fmt.Errorf("decode created_at of %s: %w", id, err)
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Record{}, fmt.Errorf("decode updated_at of %s: %w", id, err)
	}
	return rec, nil
}

// Save inserts rec or replaces the stored row with the same id. The last
// write wins; created_at keeps its first value.
func (s *SQL) Save(ctx context.Context, rec Record) error {
	row, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO assessments (
			id, version, project_name, client_email, budget,
			answers_json, pricing_json, catalog_version, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			version = excluded.version,
			project_name = excluded.project_name,
			client_email = excluded.client_email,
			budget = excluded.budget,
			answers_json = excluded.answers_json,
			pricing_json = excluded.pricing_json,
			catalog_version = excluded.catalog_version,
			updated_at = excluded.updated_at
	`),
		rec.ID,
		rec.Version,
		rec.Answers.ProjectName,
		strings.TrimSpace(rec.Answers.ClientEmail),
		rec.Answers.Budget,
		row.answers,
		row.pricing,
		row.catalogVersion,
		formatTime(rec.CreatedAt),
		formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save assessment %s: %w", rec.ID, err)
	}
	return nil
}

// Update writes rec only if the stored row is still at prevVersion, so two
// writers racing from the same version cannot both succeed.
func (s *SQL) Update(ctx context.Context, rec Record, prevVersion int) error {
	row, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE assessments SET
			version = ?,
			project_name = ?,
			client_email = ?,
			budget = ?,
			answers_json = ?,
			pricing_json = ?,
			catalog_version = ?,
			updated_at = ?
		WHERE id = ? AND version = ?
	`),
		rec.Version,
		rec.Answers.ProjectName,
		strings.TrimSpace(rec.Answers.ClientEmail),
		rec.Answers.Budget,
		row.answers,
		row.pricing,
		row.catalogVersion,
		formatTime(rec.UpdatedAt),
		rec.ID,
		prevVersion,
	)
	if err != nil {
		return fmt.Errorf("update assessment %s: %w", rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update assessment %s: %w", rec.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update assessment %s at version %d: %w", rec.ID, prevVersion, ErrConflict)
	}
	return nil
}

// List returns summaries newest first.
func (s *SQL) List(ctx context.Context, q Query) ([]Summary, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT id, version, project_name, client_email, budget, pricing_json, catalog_version, created_at, updated_at
		FROM assessments`
	var args []any
	if text := strings.ToLower(strings.TrimSpace(q.Text)); text != "" {
		query += `
		WHERE LOWER(project_name) LIKE ? OR LOWER(client_email) LIKE ?`
		pattern := "%" + text + "%"
		args = append(args, pattern, pattern)
	}
	query += `
		ORDER BY created_at DESC, id DESC
		LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var (
			sum                  Summary
			pricingJSON          string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&sum.ID, &sum.Version, &sum.ProjectName, &sum.ClientEmail, &sum.Budget,
			&pricingJSON, &sum.CatalogVersion, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan assessment row: %w", err)
		}
		if pricingJSON != "" {
			var total struct {
				FinalTotal int64 `json:"finalTotal"`
			}
			if err := json.Unmarshal([]byte(pricingJSON), &total); err != nil {
				return nil, fmt.Errorf("decode pricing of %s: %w", sum.ID, err)
			}
			sum.FinalTotal = total.FinalTotal
		}
		if sum.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("decode created_at of %s: %w", sum.ID, err)
		}
		if sum.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("decode updated_at of %s: %w", sum.ID, err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assessments: %w", err)
	}
	return out, nil
}

type encodedRecord struct {
	answers        string
	pricing        string
	catalogVersion string
}

func encodeRecord(rec Record) (encodedRecord, error) {
	answersJSON, err := json.Marshal(rec.Answers)
	if err != nil {
		return encodedRecord{}, fmt.Errorf("encode answers of %s: %w", rec.ID, err)
	}
	row := encodedRecord{answers: string(answersJSON)}
	if rec.Pricing != nil {
		pricingJSON, err := json.Marshal(rec.Pricing)
		if err != nil {
			return encodedRecord{}, fmt.Errorf("encode pricing of %s: %w", rec.ID, err)
		}
		row.pricing = string(pricingJSON)
		row.catalogVersion = rec.Pricing.CatalogVersion
	}
	return row, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
