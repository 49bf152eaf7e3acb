package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegacyRepositoryGetMissing(t *testing.T) {
	db, mock, cleanup := newRecordMock(t)
	defer cleanup()
	repo := NewLegacyRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT store_value FROM kv_store WHERE store_key = ?")).
		WithArgs("cantonese_lesson_data").
		WillReturnRows(sqlmock.NewRows([]string{"store_value"}))

	_, ok, err := repo.Get(context.Background(), "cantonese_lesson_data")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLegacyRepositorySQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewLegacyRepository(newSQLiteRecords(t))

	require.NoError(t, repo.Put(ctx, "blob", `{"lessons":[]}`))
	require.NoError(t, repo.Put(ctx, "blob", `{"lessons":[],"students":[]}`))

	value, ok, err := repo.Get(ctx, "blob")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"lessons":[],"students":[]}`, value)

	require.NoError(t, repo.Delete(ctx, "blob"))
	_, ok, err = repo.Get(ctx, "blob")
	require.NoError(t, err)
	assert.False(t, ok)
}
