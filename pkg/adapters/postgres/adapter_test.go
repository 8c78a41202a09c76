package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaplineage/pkg/adapter"
	"github.com/leapstack-labs/leaplineage/pkg/core"
)

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name     string
		config   adapter.Config
		expected string
	}{
		{
			name: "basic connection",
			config: adapter.Config{
				Host:     "localhost",
				Port:     5432,
				Database: "testdb",
				Username: "user",
				Password: "pass",
			},
			expected: "host=localhost port=5432 dbname=testdb sslmode=disable user=user password=pass",
		},
		{
			name: "with custom sslmode",
			config: adapter.Config{
				Host:     "prod.example.com",
				Port:     5432,
				Database: "proddb",
				Username: "admin",
				Options:  map[string]string{"sslmode": "require"},
			},
			expected: "host=prod.example.com port=5432 dbname=proddb sslmode=require user=admin",
		},
		{
			name: "defaults",
			config: adapter.Config{
				Database: "mydb",
			},
			expected: "host=localhost port=5432 dbname=mydb sslmode=disable",
		},
		{
			name: "extra options in key order",
			config: adapter.Config{
				Host:     "db.example.com",
				Port:     5433,
				Database: "analytics",
				Options: map[string]string{
					"connect_timeout":  "10",
					"application_name": "leaplineage",
				},
			},
			expected: "host=db.example.com port=5433 dbname=analytics sslmode=disable application_name=leaplineage connect_timeout=10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildPostgresDSN(tt.config))
		})
	}
}

func TestNew(t *testing.T) {
	adp := New(nil)

	assert.NotNil(t, adp, "New() should return non-nil adapter")
	assert.Nil(t, adp.DB, "DB should be nil before Connect")
	assert.False(t, adp.IsConnected(), "should not be connected initially")
	assert.Equal(t, "postgres", adp.DialectName(), "dialect name should be postgres")
}

func TestAdapter_NotConnected(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)

	assert.ErrorIs(t, adp.Exec(ctx, "SELECT 1"), adapter.ErrNotConnected)
	_, err := adp.QueryScalar(ctx, "SELECT 1")
	assert.ErrorIs(t, err, adapter.ErrNotConnected)
}

func TestAdapter_ExecTranslatesServerErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	adp := New(nil)
	adp.DB = db
	ctx := context.Background()

	mock.ExpectExec("CREATE TABLE marts.orders").WillReturnError(&pgconn.PgError{
		Severity: "ERROR",
		Code:     "42501",
		Message:  "permission denied for schema marts",
	})
	mock.ExpectExec("CREATE TABLE marts.orders").WillReturnError(&pgconn.PgError{
		Severity: "ERROR",
		Code:     "42P01",
		Message:  `relation "raw.orders" does not exist`,
		Hint:     "Check the search_path.",
	})

	err = adp.Exec(ctx, "CREATE TABLE marts.orders AS SELECT * FROM raw.orders")
	var wh *core.WarehouseError
	require.ErrorAs(t, err, &wh)
	assert.Equal(t, core.CategoryForbidden, wh.Category)
	assert.Equal(t, []string{"permission denied for schema marts"}, wh.Messages)

	err = adp.Exec(ctx, "CREATE TABLE marts.orders AS SELECT * FROM raw.orders")
	require.ErrorAs(t, err, &wh)
	assert.Equal(t, core.CategoryBadRequest, wh.Category)
	assert.Equal(t, []string{`relation "raw.orders" does not exist`, "HINT: Check the search_path."}, wh.Messages)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_Registry(t *testing.T) {
	assert.True(t, adapter.IsRegistered("postgres"), "postgres adapter should be registered")

	adp, err := adapter.NewAdapter(adapter.Config{Type: "postgres"}, nil)
	require.NoError(t, err)

	pg, ok := adp.(*Adapter)
	require.True(t, ok, "factory should return *Adapter")
	assert.Equal(t, "postgres", pg.DialectName())
}

func TestAdapter_Close(t *testing.T) {
	adp := New(nil)
	assert.NoError(t, adp.Close())
}
