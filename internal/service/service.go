package service

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/OraMead/notehub-back/internal/store"
)

// Service is the note lifecycle, sharing and classification core. It is the
// only component that mutates the catalog and the content store in the same
// operation.
type Service struct {
	db     *gorm.DB
	store  *store.NoteStore
	logger *zap.SugaredLogger
}

func New(db *gorm.DB, store *store.NoteStore, logger *zap.SugaredLogger) *Service {
	return &Service{
		db:     db,
		store:  store,
		logger: logger,
	}
}
