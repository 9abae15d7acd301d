package service

import (
	"gorm.io/gorm"

	"github.com/OraMead/notehub-back/internal/db"
)

// Permission is the privilege level attached to a sharing grant.
// Ownership is not a grant; it always outranks both levels.
type Permission int

const (
	PermissionRead   Permission = 1
	PermissionManage Permission = 2
)

func ParsePermission(s string) (Permission, error) {
	switch s {
	case "read":
		return PermissionRead, nil
	case "manage":
		return PermissionManage, nil
	default:
		return 0, newValidationError("permission", "must be one of read, manage")
	}
}

func (p Permission) String() string {
	switch p {
	case PermissionRead:
		return "read"
	case PermissionManage:
		return "manage"
	default:
		return "unknown"
	}
}

func (p Permission) Valid() bool {
	return p == PermissionRead || p == PermissionManage
}

// access is the resolved privilege of an actor on a specific note.
type access int

const (
	accessNone access = iota
	accessRead
	accessManage
	accessOwner
)

func (a access) canRead() bool { return a >= accessRead }

// canEdit covers content edits only. A manage grantee may edit but may not
// delete, tag, or administer sharing.
func (a access) canEdit() bool { return a >= accessManage }

func (a access) isOwner() bool { return a == accessOwner }

// accessLevel resolves the actor's privilege over the note from ownership
// or, failing that, the sharing grant on record.
func (s *Service) accessLevel(tx *gorm.DB, note *db.Note, userID uint64) (access, error) {
	if note.UserID == userID {
		return accessOwner, nil
	}

	share := db.Share{}
	res := tx.Where("note_id = ? AND user_id = ?", note.ID, userID).First(&share)
	if res.Error != nil {
		if res.Error == gorm.ErrRecordNotFound {
			return accessNone, nil
		}
		return accessNone, res.Error
	}

	switch Permission(share.Permission) {
	case PermissionManage:
		return accessManage, nil
	default:
		return accessRead, nil
	}
}
