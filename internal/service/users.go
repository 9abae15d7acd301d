package service

import (
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/OraMead/notehub-back/internal/db"
)

type RegisterReq struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Role      string
}

func (s *Service) Register(req RegisterReq) (string, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" {
		return "", newValidationError("email", "must not be blank")
	}
	if len(req.Password) < 8 {
		return "", newValidationError("password", "must be at least 8 characters")
	}
	if req.Role == "" {
		req.Role = db.RoleOrdinary
	}
	if req.Role != db.RoleOrdinary && req.Role != db.RoleAdministrator {
		return "", newValidationError("role", "must be one of ordinary, administrator")
	}

	hash, err := s.bcryptGen(req.Password)
	if err != nil {
		return "", errors.Wrap(err, "bcryptGen")
	}
	token := uuid.New().String()
	res := s.db.Create(&db.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  hash,
		Role:      req.Role,
		Token:     token,
	})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return "", errors.Wrap(ErrConflict, "email already registered")
		}
		return "", errors.Wrap(res.Error, "insert user")
	}
	return token, nil
}

func (s *Service) Login(email, pass string) (string, error) {
	user := db.User{}
	res := s.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user)
	if res.Error != nil {
		if res.Error == gorm.ErrRecordNotFound {
			return "", ErrLoginUserNotFound
		}
		return "", res.Error
	}

	if err := s.bcryptCheck(user.Password, pass); err != nil {
		return "", ErrLoginPasswordDoesNotMatch
	}

	token := uuid.New().String()
	res = s.db.Model(&user).Update("token", token)
	if res.Error != nil {
		return "", errors.Wrap(res.Error, "update token")
	}

	return token, nil
}

// DeleteAccount cascades: every owned note goes through the full delete
// path, grants where the user is a grantee are revoked, and then the user's
// tags, subjects and row are removed. Blob removal happens after commit.
func (s *Service) DeleteAccount(userID uint64) error {
	user := db.User{}
	res := s.db.First(&user, userID)
	if res.Error != nil {
		if res.Error == gorm.ErrRecordNotFound {
			return errors.Wrap(ErrNotFound, "user")
		}
		return errors.Wrap(res.Error, "load user")
	}

	noteIDs := make([]uint64, 0)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&db.Note{}).Where("user_id = ?", userID).Pluck("id", &noteIDs)
		if res.Error != nil {
			return errors.Wrap(res.Error, "list owned notes")
		}

		if len(noteIDs) > 0 {
			if res := tx.Exec("DELETE FROM note_tags WHERE note_id IN ?", noteIDs); res.Error != nil {
				return errors.Wrap(res.Error, "delete note memberships")
			}
			if res := tx.Where("note_id IN ?", noteIDs).Delete(&db.Share{}); res.Error != nil {
				return errors.Wrap(res.Error, "delete note grants")
			}
			if res := tx.Where("id IN ?", noteIDs).Delete(&db.Note{}); res.Error != nil {
				return errors.Wrap(res.Error, "delete notes")
			}
		}

		if res := tx.Where("user_id = ?", userID).Delete(&db.Share{}); res.Error != nil {
			return errors.Wrap(res.Error, "delete grantee grants")
		}

		tagIDs := make([]uint64, 0)
		if res := tx.Model(&db.Tag{}).Where("user_id = ?", userID).Pluck("id", &tagIDs); res.Error != nil {
			return errors.Wrap(res.Error, "list tags")
		}
		if len(tagIDs) > 0 {
			if res := tx.Exec("DELETE FROM note_tags WHERE tag_id IN ?", tagIDs); res.Error != nil {
				return errors.Wrap(res.Error, "delete tag memberships")
			}
			if res := tx.Where("id IN ?", tagIDs).Delete(&db.Tag{}); res.Error != nil {
				return errors.Wrap(res.Error, "delete tags")
			}
		}

		if res := tx.Where("user_id = ?", userID).Delete(&db.Subject{}); res.Error != nil {
			return errors.Wrap(res.Error, "delete subjects")
		}

		if res := tx.Delete(&db.User{}, userID); res.Error != nil {
			return errors.Wrap(res.Error, "delete user")
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, noteID := range noteIDs {
		if err := s.store.Remove(noteID); err != nil {
			s.logger.Warnw("account deleted but blob removal failed", "note_id", noteID, "error", err)
		}
	}

	return nil
}

func (s *Service) bcryptGen(pass string) (string, error) {
	passwordHashB, err := bcrypt.GenerateFromPassword([]byte(pass), 14)
	if err != nil {
		return "", errors.Wrap(err, "generate password hash")
	}
	return string(passwordHashB), nil
}

func (s *Service) bcryptCheck(hash, pass string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass))
}
