package adapter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaplineage/pkg/core"
)

// errDenied stands in for a driver error the test translator recognizes.
var errDenied = errors.New("permission denied for schema raw")

func testTranslator(err error) *core.WarehouseError {
	if strings.Contains(err.Error(), "permission denied") {
		return &core.WarehouseError{Category: core.CategoryForbidden, Messages: []string{err.Error()}, Err: err}
	}
	return nil
}

func TestBaseSQLAdapter_Close(t *testing.T) {
	tests := []struct {
		name    string
		setupDB bool
	}{
		{name: "close with nil DB", setupDB: false},
		{name: "close with open DB", setupDB: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &BaseSQLAdapter{}

			if tt.setupDB {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				mock.ExpectClose()
				base.DB = db
			}

			assert.NoError(t, base.Close())
		})
	}
}

func TestBaseSQLAdapter_Exec(t *testing.T) {
	tests := []struct {
		name         string
		setupDB      bool
		setupMock    func(mock sqlmock.Sqlmock)
		sql          string
		wantErr      error
		wantCategory core.ErrorCategory
		errMsg       string
	}{
		{
			name:    "exec without connection",
			sql:     "SELECT 1",
			wantErr: ErrNotConnected,
		},
		{
			name:    "exec success",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("CREATE TABLE users").WillReturnResult(sqlmock.NewResult(0, 0))
			},
			sql: "CREATE TABLE users (id INT)",
		},
		{
			name:    "unrecognized error passes through",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INVALID SQL").WillReturnError(assert.AnError)
			},
			sql:     "INVALID SQL",
			wantErr: assert.AnError,
			errMsg:  "failed to execute SQL",
		},
		{
			name:    "recognized error is categorized",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("CREATE TABLE raw.x").WillReturnError(errDenied)
			},
			sql:          "CREATE TABLE raw.x (id INT)",
			wantErr:      errDenied,
			wantCategory: core.CategoryForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			base := &BaseSQLAdapter{Translate: testTranslator}

			if tt.setupDB {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				defer func() { _ = db.Close() }()

				if tt.setupMock != nil {
					tt.setupMock(mock)
				}
				base.DB = db
			}

			err := base.Exec(ctx, tt.sql)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
			if tt.errMsg != "" {
				assert.Contains(t, err.Error(), tt.errMsg)
			}

			var wh *core.WarehouseError
			if tt.wantCategory == "" {
				assert.False(t, errors.As(err, &wh), "unrecognized errors are not categorized")
				return
			}
			require.ErrorAs(t, err, &wh)
			assert.Equal(t, tt.wantCategory, wh.Category)
		})
	}
}

func TestBaseSQLAdapter_QueryScalar(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	base := &BaseSQLAdapter{DB: db, Translate: testTranslator}
	ctx := context.Background()

	mock.ExpectQuery("SELECT count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))
	n, err := base.QueryScalar(ctx, "SELECT count(*) FROM marts.orders")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	mock.ExpectQuery("SELECT count").WillReturnError(errDenied)
	_, err = base.QueryScalar(ctx, "SELECT count(*) FROM raw.secret")
	var wh *core.WarehouseError
	require.ErrorAs(t, err, &wh)
	assert.Equal(t, core.CategoryForbidden, wh.Category)
	assert.Contains(t, err.Error(), "failed to execute query")

	_, err = (&BaseSQLAdapter{}).QueryScalar(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrNotConnected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLAdapter_TranslateError(t *testing.T) {
	base := &BaseSQLAdapter{Translate: testTranslator}

	assert.NoError(t, base.TranslateError(nil))
	assert.Same(t, assert.AnError, base.TranslateError(assert.AnError))

	already := &core.WarehouseError{Category: core.CategoryAuth}
	assert.Same(t, already, base.TranslateError(already))

	noTranslator := &BaseSQLAdapter{}
	assert.Same(t, errDenied, noTranslator.TranslateError(errDenied))
}

func TestBaseSQLAdapter_IsConnected(t *testing.T) {
	base := &BaseSQLAdapter{}
	assert.False(t, base.IsConnected())

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	base.DB = db
	assert.True(t, base.IsConnected())
}
