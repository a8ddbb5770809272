package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SivaGaneshv1729/library-management-api/pkg/config"
	"github.com/SivaGaneshv1729/library-management-api/pkg/database"
	"github.com/SivaGaneshv1729/library-management-api/pkg/models"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "library.db")
	t.Setenv("DB_DRIVER", config.DriverSQLite)
	t.Setenv("SQLITE_PATH", path)
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("GORM_LOG_LEVEL", "silent")
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestMigrateAndSeed(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema is up to date")

	out, err = execute(t, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 2 members and 3 books")

	out, err = execute(t, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 0 members and 0 books")
}

func TestSweepSuspendsOverdueMember(t *testing.T) {
	path := setupEnv(t)

	_, err := execute(t, "seed")
	require.NoError(t, err)

	db, err := database.Open(context.Background(), config.Database{
		Driver:     config.DriverSQLite,
		SQLitePath: path,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	var member models.Member
	require.NoError(t, db.Where("membership_number = ?", "MEM001").First(&member).Error)
	var book models.Book
	require.NoError(t, db.Where("title = ?", "Clean Architecture").First(&book).Error)

	borrowed := time.Now().UTC().Add(-30 * 24 * time.Hour)
	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&models.Transaction{
			MemberID:   member.ID,
			BookID:     book.ID,
			BorrowedAt: borrowed,
			DueDate:    borrowed.Add(14 * 24 * time.Hour),
			Status:     models.TransactionActive,
		}).Error)
	}
	require.NoError(t, db.Model(&models.Book{}).Where("id = ?", book.ID).
		Update("available_copies", book.TotalCopies-3).Error)
	closeDatabase(db)

	out, err := execute(t, "sweep", "--report")
	require.NoError(t, err)

	var result sweepOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result), out)
	assert.Equal(t, []string{member.ID}, result.Members)
	assert.Equal(t, []string{member.ID}, result.Suspended)
	assert.Len(t, result.Reclassified, 3)
	assert.Empty(t, result.Failures)
	require.Len(t, result.Overdue, 3)
	for _, trx := range result.Overdue {
		assert.Equal(t, models.TransactionOverdue, trx.Status)
	}

	out, err = execute(t, "sweep")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &result), out)
	assert.Empty(t, result.Members)
}

func TestDriverFlagOverridesEnvironment(t *testing.T) {
	setupEnv(t)
	t.Setenv("DB_DRIVER", config.DriverPostgres)

	out, err := execute(t, "migrate", "--db-driver", config.DriverSQLite)
	require.NoError(t, err)
	assert.Contains(t, out, "schema is up to date")

	_, err = execute(t, "migrate", "--db-driver", "mysql")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestInvalidConfigurationFails(t *testing.T) {
	setupEnv(t)
	t.Setenv("TX_TIMEOUT", "soon")

	_, err := execute(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TX_TIMEOUT")
}
