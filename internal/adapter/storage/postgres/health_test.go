package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	hc := NewHealthCheck(mock)
	assert.Equal(t, "postgresql", hc.Name())

	mock.ExpectQuery("SELECT to_regclass").WillReturnRows(pgxmock.NewRows([]string{"migrated"}).AddRow(true))
	mock.ExpectQuery("SELECT to_regclass").WillReturnRows(pgxmock.NewRows([]string{"migrated"}).AddRow(false))
	mock.ExpectQuery("SELECT to_regclass").WillReturnError(errors.New("down"))

	assert.NoError(t, hc.Ping(context.Background()))
	assert.EqualError(t, hc.Ping(context.Background()), "schema not migrated")
	assert.ErrorContains(t, hc.Ping(context.Background()), "probing schema")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_Begin(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	tx, err := NewTransactor(mock).Begin(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tx)

	_, err = NewTransactor(mock).Begin(context.Background())
	assert.ErrorContains(t, err, "begin transaction")
}
