package service

import (
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/OraMead/notehub-back/internal/db"
)

// ResolveTag looks a tag up by name in the owner's scope, creating it if
// absent, and returns its id. The unique index is the arbiter for
// concurrent creates: a duplicate-key insert falls back to a re-fetch.
func (s *Service) ResolveTag(ownerID uint64, name string) (uint64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, newValidationError("name", "must not be blank")
	}

	tag := db.Tag{
		Name:   name,
		UserID: ownerID,
	}
	res := s.db.Create(&tag)
	if res.Error == nil {
		return tag.ID, nil
	}
	if !errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return 0, errors.Wrap(res.Error, "insert tag")
	}

	existing := db.Tag{}
	res = s.db.Where("name = ? AND user_id = ?", name, ownerID).First(&existing)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "fetch existing tag")
	}
	return existing.ID, nil
}

// resolveSubjectTx resolves the subject for a note create. When subjectID
// is set it must exist and belong to the owner; otherwise the named subject
// is created if absent, same race handling as tags.
func (s *Service) resolveSubjectTx(tx *gorm.DB, ownerID, subjectID uint64, name string) (uint64, error) {
	if subjectID != 0 {
		subject := db.Subject{}
		res := tx.First(&subject, subjectID)
		if res.Error != nil {
			if res.Error == gorm.ErrRecordNotFound {
				return 0, errors.Wrap(ErrNotFound, "subject")
			}
			return 0, errors.Wrap(res.Error, "load subject")
		}
		if subject.UserID != ownerID {
			return 0, newValidationError("subject", "must belong to the note's owner")
		}
		return subject.ID, nil
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return 0, newValidationError("subject", "id or name is required")
	}

	subject := db.Subject{
		Name:   name,
		UserID: ownerID,
	}
	res := tx.Create(&subject)
	if res.Error == nil {
		return subject.ID, nil
	}
	if !errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return 0, errors.Wrap(res.Error, "insert subject")
	}

	existing := db.Subject{}
	res = tx.Where("name = ? AND user_id = ?", name, ownerID).First(&existing)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "fetch existing subject")
	}
	return existing.ID, nil
}

// ResolveSubject is the standalone variant used outside note creation.
func (s *Service) ResolveSubject(ownerID uint64, name string) (uint64, error) {
	return s.resolveSubjectTx(s.db, ownerID, 0, name)
}

// ToggleTag adds or removes a note-tag membership. Both directions are
// idempotent. Tagging is owner-level metadata, so manage grantees may not.
func (s *Service) ToggleTag(actorID, noteID, tagID uint64, on bool) error {
	note, err := s.getNote(s.db, noteID)
	if err != nil {
		return err
	}
	if note.UserID != actorID {
		return errors.Wrap(ErrNotAuthorized, "tag note")
	}

	tag := db.Tag{}
	res := s.db.First(&tag, tagID)
	if res.Error != nil {
		if res.Error == gorm.ErrRecordNotFound {
			return errors.Wrap(ErrNotFound, "tag")
		}
		return errors.Wrap(res.Error, "load tag")
	}
	if tag.UserID != 0 && tag.UserID != actorID {
		return errors.Wrap(ErrNotAuthorized, "tag not visible to user")
	}

	if !on {
		res := s.db.Exec("DELETE FROM note_tags WHERE note_id = ? AND tag_id = ?", note.ID, tag.ID)
		if res.Error != nil {
			return errors.Wrap(res.Error, "remove membership")
		}
		return nil
	}

	var count int64
	res = s.db.Table("note_tags").Where("note_id = ? AND tag_id = ?", note.ID, tag.ID).Count(&count)
	if res.Error != nil {
		return errors.Wrap(res.Error, "check membership")
	}
	if count > 0 {
		return nil
	}

	res = s.db.Exec("INSERT INTO note_tags (note_id, tag_id) VALUES (?, ?)", note.ID, tag.ID)
	if res.Error != nil {
		// Concurrent duplicate add resolves through the join table's key.
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return nil
		}
		return errors.Wrap(res.Error, "add membership")
	}
	return nil
}
