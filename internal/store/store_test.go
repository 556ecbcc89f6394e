package store

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/studio-quotes/internal/assessment"
	"github.com/Simplici0/studio-quotes/internal/catalog"
	"github.com/Simplici0/studio-quotes/internal/db"
	"github.com/Simplici0/studio-quotes/internal/migrations"
	"github.com/Simplici0/studio-quotes/internal/pricing"
)

func openTestStore(t *testing.T) *SQL {
	t.Helper()

	database, err := db.Open(db.DriverSQLite, filepath.Join(t.TempDir(), "store-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, migrations.Up(database, db.DriverSQLite, "../../migrations"))
	return New(database, db.DriverSQLite)
}

func sampleRecord(id, name string, created time.Time) Record {
	ans := assessment.Answers{
		ProjectName:      name,
		ProjectType:      "webapp",
		MustHaveFeatures: []string{"user-auth", "payments"},
		Platform:         []string{"web"},
		Budget:           "5-10k",
		ClientEmail:      "client@example.test",
	}
	b := pricing.Compute(ans, catalog.Default())
	return Record{ID: id, Version: 1, Answers: ans, Pricing: &b, CreatedAt: created, UpdatedAt: created}
}

func TestSQL_SaveAndLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 4, 10, 0, 0, 123, time.UTC)

	rec := sampleRecord("a-1", "Client portal", created)
	require.NoError(t, s.Save(ctx, rec))

	got, err := s.Load(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, rec.Answers, got.Answers)
	assert.Equal(t, 1, got.Version)
	require.NotNil(t, got.Pricing)
	assert.Equal(t, int64(800000), got.Pricing.FinalTotal)
	assert.True(t, got.CreatedAt.Equal(created))
}

func TestSQL_SaveIsLastWriteWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	rec := sampleRecord("a-1", "Client portal", created)
	require.NoError(t, s.Save(ctx, rec))

	updated := rec
	updated.Version = 2
	updated.Answers = rec.Answers.WithFeatures([]string{"chat"})
	b := pricing.Compute(updated.Answers, catalog.Default())
	updated.Pricing = &b
	updated.CreatedAt = created.Add(time.Hour)
	updated.UpdatedAt = created.Add(time.Hour)
	require.NoError(t, s.Save(ctx, updated))

	got, err := s.Load(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, []string{"chat"}, got.Answers.MustHaveFeatures)
	assert.Equal(t, b.FinalTotal, got.Pricing.FinalTotal)
	assert.True(t, got.CreatedAt.Equal(created), "created_at must keep its first value")
	assert.True(t, got.UpdatedAt.Equal(created.Add(time.Hour)))
}

func TestSQL_UpdateRejectsStaleVersion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	rec := sampleRecord("a-1", "Client portal", created)
	require.NoError(t, s.Save(ctx, rec))

	first := rec
	first.Version = 2
	first.Answers = rec.Answers.WithFeatures([]string{"chat"})
	first.UpdatedAt = created.Add(time.Minute)
	require.NoError(t, s.Update(ctx, first, 1))

	second := rec
	second.Version = 2
	second.Answers = rec.Answers.WithFeatures([]string{"search"})
	second.UpdatedAt = created.Add(2 * time.Minute)
	err := s.Update(ctx, second, 1)
	assert.ErrorIs(t, err, ErrConflict)

	got, err := s.Load(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, []string{"chat"}, got.Answers.MustHaveFeatures)
	assert.True(t, got.CreatedAt.Equal(created))

	assert.ErrorIs(t, s.Update(ctx, sampleRecord("missing", "Ghost", created), 0), ErrConflict)
}

func TestSQL_LoadMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQL_ListNewestFirstWithFilter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, sampleRecord("a-1", "Bakery website", base)))
	require.NoError(t, s.Save(ctx, sampleRecord("a-2", "Client portal", base.Add(time.Minute))))
	require.NoError(t, s.Save(ctx, sampleRecord("a-3", "Portal v2", base.Add(2*time.Minute))))

	all, err := s.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a-3", "a-2", "a-1"}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, int64(800000), all[0].FinalTotal)
	assert.Equal(t, catalog.Default().Version, all[0].CatalogVersion)

	portals, err := s.List(ctx, Query{Text: "PORTAL"})
	require.NoError(t, err)
	require.Len(t, portals, 2)

	limited, err := s.List(ctx, Query{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "a-3", limited[0].ID)
}

func TestSQL_PostgresPlaceholders(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	s := New(mockDB, "postgres")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs("a-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "version", "answers_json", "pricing_json", "created_at", "updated_at"}).
			AddRow("a-1", 3, `{"projectName":"Portal","projectType":"webapp"}`, "", "2024-03-04T10:00:00.000000000Z", "2024-03-04T11:00:00.000000000Z"))

	rec, err := s.Load(context.Background(), "a-1")
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Version)
	assert.Equal(t, "Portal", rec.Answers.ProjectName)
	assert.Nil(t, rec.Pricing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQL_SaveWrapsDriverErrors(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	boom := errors.New("disk full")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO assessments")).WillReturnError(boom)

	err = New(mockDB, "sqlite").Save(context.Background(), sampleRecord("a-1", "Portal", time.Now()))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "save assessment a-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQL_UpdateChecksVersionOnPostgres(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	rec := sampleRecord("a-1", "Portal", time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))
	rec.Version = 4
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $9 AND version = $10")).
		WithArgs(4, "Portal", "client@example.test", "5-10k", sqlmock.AnyArg(), sqlmock.AnyArg(),
			catalog.Default().Version, "2024-03-04T10:00:00.000000000Z", "a-1", 3).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = New(mockDB, "postgres").Update(context.Background(), rec, 3)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQL_ListQueryError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectQuery(regexp.QuoteMeta("LIKE $1 OR LOWER(client_email) LIKE $2")).
		WithArgs("%portal%", "%portal%", 50).
		WillReturnError(errors.New("connection reset"))

	_, err = New(mockDB, "postgres").List(context.Background(), Query{Text: "Portal"})
	assert.ErrorContains(t, err, "list assessments")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "a = ? AND b = ?", New(nil, "sqlite").rebind("a = ? AND b = ?"))
	assert.Equal(t, "a = $1 AND b = $2", New(nil, "postgres").rebind("a = ? AND b = ?"))
}
