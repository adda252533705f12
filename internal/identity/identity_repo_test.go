package identity

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestRepository_WithTxRunsOnTransaction(t *testing.T) {
	poolDB, poolMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer poolDB.Close()

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: poolDB}), &gorm.Config{})
	assert.NoError(t, err)

	txDB, txMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer txDB.Close()

	txMock.ExpectBegin()
	tx, err := txDB.Begin()
	assert.NoError(t, err)

	credID := uuid.New()
	txMock.ExpectExec(`UPDATE credentials`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewRepository(gdb).WithTx(tx)
	advanced, err := repo.AdvanceSignCount(context.Background(), credID.String(), 9)
	assert.NoError(t, err)
	assert.True(t, advanced)

	// the supplied transaction carried the update; the gorm pool saw nothing
	assert.NoError(t, txMock.ExpectationsWereMet())
	assert.NoError(t, poolMock.ExpectationsWereMet())
}
