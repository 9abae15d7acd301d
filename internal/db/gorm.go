package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/OraMead/notehub-back/internal/config"
)

const (
	RoleOrdinary      = "ordinary"
	RoleAdministrator = "administrator"
)

type (
	GormForkedModel struct {
		ID        uint64 `gorm:"primarykey"`
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	User struct {
		GormForkedModel
		FirstName string `gorm:"not null"`
		LastName  string
		Email     string `gorm:"unique;not null"`
		Password  string `gorm:"not null"`
		Role      string `gorm:"not null;default:ordinary"`
		Token     string `gorm:"not null"`
		Notes     []Note
		Subjects  []Subject
	}

	Subject struct {
		GormForkedModel
		Name   string `gorm:"not null;uniqueIndex:uidx_subject_name_user_id"`
		UserID uint64 `gorm:"not null;uniqueIndex:uidx_subject_name_user_id"`
		User   User
	}

	// Tag is user-scoped when UserID is set; UserID 0 marks a global tag
	// visible to everyone. No FK on UserID for that reason.
	Tag struct {
		GormForkedModel
		Name   string `gorm:"not null;uniqueIndex:uidx_tag_name_user_id"`
		UserID uint64 `gorm:"uniqueIndex:uidx_tag_name_user_id"`
		Notes  []Note `gorm:"many2many:note_tags;"`
	}

	// Note has no FK on SubjectID: a copy may reference a subject owned by
	// another user, and that subject can outlive its owner's account.
	Note struct {
		GormForkedModel
		Title     string `gorm:"not null"`
		UserID    uint64 `gorm:"not null"`
		User      User
		SubjectID uint64 `gorm:"not null"`
		Tags      []Tag `gorm:"many2many:note_tags;"`
		Shares    []Share
	}

	Share struct {
		GormForkedModel
		NoteID     uint64 `gorm:"not null;uniqueIndex:uidx_share_note_id_user_id"`
		UserID     uint64 `gorm:"not null;uniqueIndex:uidx_share_note_id_user_id"`
		User       User
		Permission int `gorm:"not null"`
	}
)

func NewGormClient(cfg *config.Config) (*gorm.DB, error) {
	newLogger := logger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Info,
		Colorful:                  true,
		IgnoreRecordNotFoundError: false,
	})

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         newLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&User{}); err != nil {
		return errors.Wrap(err, "migrate user")
	}
	if err := db.AutoMigrate(&Subject{}); err != nil {
		return errors.Wrap(err, "migrate subject")
	}
	if err := db.AutoMigrate(&Tag{}); err != nil {
		return errors.Wrap(err, "migrate tag")
	}
	if err := db.AutoMigrate(&Note{}); err != nil {
		return errors.Wrap(err, "migrate note")
	}
	if err := db.AutoMigrate(&Share{}); err != nil {
		return errors.Wrap(err, "migrate share")
	}
	return nil
}
