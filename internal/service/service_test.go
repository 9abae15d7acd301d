package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/OraMead/notehub-back/internal/config"
	"github.com/OraMead/notehub-back/internal/db"
	"github.com/OraMead/notehub-back/internal/store"
)

func newTestService(t *testing.T) *Service {
	s, _ := newTestServiceWithBlobDir(t)
	return s
}

func newTestServiceWithBlobDir(t *testing.T) (*Service, string) {
	t.Helper()

	dir := t.TempDir()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(dir, "test.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	blobDir := filepath.Join(dir, "blobs")
	st, err := store.NewNoteStore(&config.Config{StoragePath: blobDir})
	require.NoError(t, err)

	return New(gdb, st, zap.NewNop().Sugar()), blobDir
}

// breakBlobDir replaces the blob root with a regular file so every
// subsequent blob read or write fails with a real I/O error.
func breakBlobDir(t *testing.T, blobDir string) {
	t.Helper()

	require.NoError(t, os.RemoveAll(blobDir))
	require.NoError(t, os.WriteFile(blobDir, []byte("not a directory"), 0o644))
}

func createUser(t *testing.T, s *Service, email string) *db.User {
	t.Helper()

	user := db.User{
		FirstName: "Test",
		LastName:  "User",
		Email:     email,
		Password:  "irrelevant-hash",
		Role:      db.RoleOrdinary,
		Token:     uuid.New().String(),
	}
	require.NoError(t, s.db.Create(&user).Error)
	return &user
}

func createNote(t *testing.T, s *Service, ownerID uint64, subject, title, content string) uint64 {
	t.Helper()

	id, err := s.CreateNote(CreateNoteReq{
		OwnerID:     ownerID,
		SubjectName: subject,
		Title:       title,
		Content:     []byte(content),
	})
	require.NoError(t, err)
	return id
}

func countRows(t *testing.T, s *Service, table, where string, args ...interface{}) int64 {
	t.Helper()

	var n int64
	require.NoError(t, s.db.Table(table).Where(where, args...).Count(&n).Error)
	return n
}
