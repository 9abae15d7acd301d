package service

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/OraMead/notehub-back/internal/db"
)

// ShareNote grants the grantee the given permission on the note. Only the
// owner may administer sharing; a manage grantee cannot.
func (s *Service) ShareNote(actorID, noteID, granteeID uint64, permission Permission) error {
	if !permission.Valid() {
		return newValidationError("permission", "must be one of read, manage")
	}

	note, err := s.getNote(s.db, noteID)
	if err != nil {
		return err
	}
	if note.UserID != actorID {
		return errors.Wrap(ErrNotAuthorized, "share note")
	}
	if granteeID == note.UserID {
		return newValidationError("grantee", "cannot share a note with its owner")
	}
	if granteeID == actorID {
		return newValidationError("grantee", "cannot share a note with yourself")
	}

	grantee := db.User{}
	res := s.db.First(&grantee, granteeID)
	if res.Error != nil {
		if res.Error == gorm.ErrRecordNotFound {
			return errors.Wrap(ErrNotFound, "grantee")
		}
		return errors.Wrap(res.Error, "load grantee")
	}

	grant := db.Share{
		NoteID:     note.ID,
		UserID:     granteeID,
		Permission: int(permission),
	}
	res = s.db.Create(&grant)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return errors.Wrap(ErrConflict, "grant already exists")
		}
		return errors.Wrap(res.Error, "insert grant")
	}

	return nil
}

// UpdateShare changes an existing grant's permission. A missing grant is a
// no-op, not an error.
func (s *Service) UpdateShare(actorID, noteID, granteeID uint64, permission Permission) error {
	if !permission.Valid() {
		return newValidationError("permission", "must be one of read, manage")
	}

	note, err := s.getNote(s.db, noteID)
	if err != nil {
		return err
	}
	if note.UserID != actorID {
		return errors.Wrap(ErrNotAuthorized, "update share")
	}

	res := s.db.Model(&db.Share{}).
		Where("note_id = ? AND user_id = ?", note.ID, granteeID).
		Update("permission", int(permission))
	if res.Error != nil {
		return errors.Wrap(res.Error, "update grant")
	}

	return nil
}

// Unshare revokes a grant. A missing grant is a no-op.
func (s *Service) Unshare(actorID, noteID, granteeID uint64) error {
	note, err := s.getNote(s.db, noteID)
	if err != nil {
		return err
	}
	if note.UserID != actorID {
		return errors.Wrap(ErrNotAuthorized, "unshare note")
	}

	res := s.db.Where("note_id = ? AND user_id = ?", note.ID, granteeID).Delete(&db.Share{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete grant")
	}

	return nil
}
