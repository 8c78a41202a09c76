package lineage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaplineage/pkg/core"
)

func warehouseErr(category core.ErrorCategory, messages ...string) error {
	return &core.WarehouseError{Category: category, Messages: messages, Err: errors.New("driver error")}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindUnknown},
		{"plain error", errors.New("boom"), KindUnknown},
		{"bad request", warehouseErr(core.CategoryBadRequest, "syntax error"), KindBadRequest},
		{"forbidden", warehouseErr(core.CategoryForbidden, "denied"), KindForbidden},
		{"auth", warehouseErr(core.CategoryAuth, "expired"), KindAuth},
		{"unknown category", warehouseErr(core.CategoryUnknown, "?"), KindUnknown},
		{"wrapped warehouse error", fmt.Errorf("exec: %w", warehouseErr(core.CategoryForbidden, "denied")), KindForbidden},
		{"database error", &DatabaseError{Messages: []string{"x"}}, KindDomain},
		{"runtime error", &RuntimeError{Message: "x"}, KindDomain},
		{"wrapped domain error", fmt.Errorf("ctx: %w", &AuthError{Message: "x"}), KindDomain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassify_DomainWinsOverWarehouseCategory(t *testing.T) {
	inner := warehouseErr(core.CategoryBadRequest, "syntax error")
	err := &DatabaseError{Messages: []string{"syntax error"}, Err: inner}

	assert.Equal(t, KindDomain, Classify(err))
}

func TestTranslate_DatabaseErrors(t *testing.T) {
	for _, category := range []core.ErrorCategory{core.CategoryBadRequest, core.CategoryForbidden} {
		t.Run(string(category), func(t *testing.T) {
			raw := warehouseErr(category, "Access Denied: Table shop:raw.orders", "User does not have permission")

			err := Translate(raw, TranslateOptions{})

			var dbErr *DatabaseError
			require.ErrorAs(t, err, &dbErr)
			assert.Equal(t, []string{"Access Denied: Table shop:raw.orders", "User does not have permission"}, dbErr.Messages)
			assert.Equal(t, "Access Denied: Table shop:raw.orders\nUser does not have permission", err.Error())
			assert.ErrorIs(t, err, raw)
		})
	}
}

func TestTranslate_DatabaseErrorWithoutMessages(t *testing.T) {
	raw := &core.WarehouseError{Category: core.CategoryBadRequest, Err: errors.New("parse failure")}

	err := Translate(raw, TranslateOptions{})

	var dbErr *DatabaseError
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, []string{"bad_request: parse failure"}, dbErr.Messages)
}

func TestTranslate_Auth(t *testing.T) {
	raw := warehouseErr(core.CategoryAuth, "token expired")

	t.Run("plain", func(t *testing.T) {
		err := Translate(raw, TranslateOptions{})

		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, "Unable to generate access token.\n\n"+raw.Error(), err.Error())
		assert.NotContains(t, err.Error(), "impersonate_service_account")
		assert.ErrorIs(t, err, raw)
	})

	t.Run("impersonating", func(t *testing.T) {
		err := Translate(raw, TranslateOptions{Impersonating: true})

		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Contains(t, err.Error(), "impersonate_service_account")
		assert.Contains(t, err.Error(), "roles/iam.serviceAccountTokenCreator")
		assert.Contains(t, err.Error(), raw.Error())
	})
}

func TestTranslate_DomainErrorPassesThrough(t *testing.T) {
	original := &RuntimeError{Message: "already classified"}
	wrapped := fmt.Errorf("retry: %w", original)

	assert.Same(t, original, Translate(original, TranslateOptions{}))
	assert.Same(t, wrapped, Translate(wrapped, TranslateOptions{}))
}

func TestTranslate_RuntimeTruncation(t *testing.T) {
	tests := []struct {
		name       string
		msg        string
		delimiters []string
		want       string
	}{
		{
			name: "default delimiter",
			msg:  "Query exceeded limits \n" + QueryJobSQLDelimiter + "\nSELECT * FROM huge",
			want: "Query exceeded limits",
		},
		{
			name: "no delimiter",
			msg:  "  connection reset  ",
			want: "connection reset",
		},
		{
			name:       "earliest of several",
			msg:        "fatal --SQL-- select 1 ##LOG## trace",
			delimiters: []string{"##LOG##", "--SQL--"},
			want:       "fatal",
		},
		{
			name:       "empty delimiter ignored",
			msg:        "boom",
			delimiters: []string{""},
			want:       "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := errors.New(tt.msg)

			err := Translate(raw, TranslateOptions{Delimiters: tt.delimiters})

			var rtErr *RuntimeError
			require.ErrorAs(t, err, &rtErr)
			assert.Equal(t, tt.want, rtErr.Error())
			assert.ErrorIs(t, err, raw)
		})
	}
}

func TestTranslate_Nil(t *testing.T) {
	assert.NoError(t, Translate(nil, TranslateOptions{}))
}
