package service

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/OraMead/notehub-back/internal/db"
)

const (
	defaultNoteTitle = "Untitled Note"
	copyTitlePrefix  = "Copy of "
	copyTitleMax     = 50
	previewLength    = 150
)

// Uploads are restricted to flat text by filename extension.
var allowedExtensions = map[string]struct{}{
	".txt": {},
}

type (
	CreateNoteReq struct {
		OwnerID     uint64
		SubjectID   uint64 // 0 when SubjectName is used instead
		SubjectName string
		Title       string
		Filename    string // original upload name, checked against the allow-list; empty means no file
		Content     []byte
	}

	CopyNoteReq struct {
		ActorID    uint64
		SourceID   uint64
		Title      string
		CopyTags   bool
		CopyShared bool
	}

	TagInfo struct {
		ID   uint64
		Name string
	}

	ShareInfo struct {
		UserID     uint64
		Email      string
		Permission Permission
	}

	NoteSummary struct {
		ID         uint64
		Title      string
		Subject    string
		Preview    string
		UpdatedAt  time.Time
		OwnerID    uint64
		Permission Permission // set on shared listings only
		Tags       []TagInfo
		Shares     []ShareInfo
	}

	NoteDetail struct {
		ID        uint64
		Title     string
		Subject   string
		OwnerID   uint64
		UpdatedAt time.Time
		Content   string
		Tags      []TagInfo
		Shares    []ShareInfo
	}
)

// CreateNote resolves or creates the subject, inserts the note row and then
// writes the content blob. A blob failure after the row commits leaves a
// note that reads as empty, which is the documented degradation, so the new
// id is still returned.
func (s *Service) CreateNote(req CreateNoteReq) (uint64, error) {
	if req.Filename != "" {
		ext := strings.ToLower(filepath.Ext(req.Filename))
		if _, ok := allowedExtensions[ext]; !ok {
			return 0, newValidationError("file", "extension not allowed")
		}
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultNoteTitle
	}

	note := db.Note{
		Title:  title,
		UserID: req.OwnerID,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		subjectID, err := s.resolveSubjectTx(tx, req.OwnerID, req.SubjectID, req.SubjectName)
		if err != nil {
			return err
		}
		note.SubjectID = subjectID

		if res := tx.Create(&note); res.Error != nil {
			return errors.Wrap(res.Error, "insert note")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := s.store.Write(note.ID, req.Content); err != nil {
		s.logger.Warnw("note created but blob write failed, note reads as empty",
			"note_id", note.ID, "error", err)
	}

	return note.ID, nil
}

func (s *Service) GetNote(actorID, noteID uint64) (*NoteDetail, error) {
	note, err := s.getNote(s.db, noteID)
	if err != nil {
		return nil, err
	}

	level, err := s.accessLevel(s.db, note, actorID)
	if err != nil {
		return nil, errors.Wrap(err, "resolve access")
	}
	if !level.canRead() {
		return nil, errors.Wrap(ErrNotAuthorized, "read note")
	}

	content, err := s.store.Read(note.ID)
	if err != nil {
		// Read paths degrade to empty content on storage trouble.
		s.logger.Warnw("blob read failed, returning empty content", "note_id", note.ID, "error", err)
		content = []byte{}
	}

	subject := ""
	sub := db.Subject{}
	if res := s.db.First(&sub, note.SubjectID); res.Error == nil {
		subject = sub.Name
	}

	tags, err := s.tagsByNote(s.db, []uint64{note.ID})
	if err != nil {
		return nil, err
	}
	shares, err := s.sharesByNote(s.db, []uint64{note.ID})
	if err != nil {
		return nil, err
	}

	return &NoteDetail{
		ID:        note.ID,
		Title:     note.Title,
		Subject:   subject,
		OwnerID:   note.UserID,
		UpdatedAt: note.UpdatedAt,
		Content:   string(content),
		Tags:      tags[note.ID],
		Shares:    shares[note.ID],
	}, nil
}

// EditNote overwrites the content blob and only then advances the note's
// timestamp, so a failed write never produces a falsely fresh note.
func (s *Service) EditNote(actorID, noteID uint64, content []byte) (time.Time, error) {
	note, err := s.getNote(s.db, noteID)
	if err != nil {
		return time.Time{}, err
	}

	level, err := s.accessLevel(s.db, note, actorID)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "resolve access")
	}
	if !level.canEdit() {
		return time.Time{}, errors.Wrap(ErrNotAuthorized, "edit note")
	}

	if err := s.store.Write(note.ID, content); err != nil {
		return time.Time{}, errors.Wrapf(ErrStorage, "write blob: %v", err)
	}

	now := time.Now()
	res := s.db.Model(note).UpdateColumn("updated_at", now)
	if res.Error != nil {
		return time.Time{}, errors.Wrap(res.Error, "update timestamp")
	}

	return now, nil
}

// CopyNote creates a new note owned by the actor, inheriting the source's
// subject id even across users, with optional duplication of tag
// memberships and sharing grants. When the copier is not the original
// owner, a manage grant back to the owner is synthesized so provenance
// access is preserved.
func (s *Service) CopyNote(req CopyNoteReq) (uint64, error) {
	source, err := s.getNote(s.db, req.SourceID)
	if err != nil {
		return 0, err
	}

	level, err := s.accessLevel(s.db, source, req.ActorID)
	if err != nil {
		return 0, errors.Wrap(err, "resolve access")
	}
	if !level.canRead() {
		return 0, errors.Wrap(ErrNotAuthorized, "copy note")
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = truncate(copyTitlePrefix+source.Title, copyTitleMax)
	}

	note := db.Note{
		Title:     title,
		UserID:    req.ActorID,
		SubjectID: source.SubjectID,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if res := tx.Create(&note); res.Error != nil {
			return errors.Wrap(res.Error, "insert note copy")
		}

		if req.CopyTags {
			tagIDs := make([]uint64, 0)
			res := tx.Table("note_tags").Where("note_id = ?", source.ID).Pluck("tag_id", &tagIDs)
			if res.Error != nil {
				return errors.Wrap(res.Error, "load source tags")
			}
			for _, tagID := range tagIDs {
				if res := tx.Exec("INSERT INTO note_tags (note_id, tag_id) VALUES (?, ?)", note.ID, tagID); res.Error != nil {
					return errors.Wrap(res.Error, "copy tag membership")
				}
			}
		}

		if req.CopyShared {
			shares := make([]db.Share, 0)
			res := tx.Where("note_id = ?", source.ID).Find(&shares)
			if res.Error != nil {
				return errors.Wrap(res.Error, "load source shares")
			}
			for i := range shares {
				if shares[i].UserID == req.ActorID {
					continue
				}
				grant := db.Share{
					NoteID:     note.ID,
					UserID:     shares[i].UserID,
					Permission: shares[i].Permission,
				}
				if res := tx.Create(&grant); res.Error != nil {
					return errors.Wrap(res.Error, "copy share grant")
				}
			}
			if source.UserID != req.ActorID {
				grant := db.Share{
					NoteID:     note.ID,
					UserID:     source.UserID,
					Permission: int(PermissionManage),
				}
				if res := tx.Create(&grant); res.Error != nil {
					return errors.Wrap(res.Error, "grant back to owner")
				}
			}
		}

		if err := s.store.Copy(source.ID, note.ID); err != nil {
			if rmErr := s.store.Remove(note.ID); rmErr != nil {
				s.logger.Warnw("failed to clean up blob after copy rollback", "note_id", note.ID, "error", rmErr)
			}
			return errors.Wrapf(ErrStorage, "copy blob: %v", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return note.ID, nil
}

// DeleteNote is owner-only. Memberships, grants and the note row go in one
// transaction; the blob is removed after commit, and a missing blob is fine.
func (s *Service) DeleteNote(actorID, noteID uint64) error {
	note, err := s.getNote(s.db, noteID)
	if err != nil {
		return err
	}
	if note.UserID != actorID {
		return errors.Wrap(ErrNotAuthorized, "delete note")
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if res := tx.Exec("DELETE FROM note_tags WHERE note_id = ?", note.ID); res.Error != nil {
			return errors.Wrap(res.Error, "delete tag memberships")
		}
		if res := tx.Where("note_id = ?", note.ID).Delete(&db.Share{}); res.Error != nil {
			return errors.Wrap(res.Error, "delete share grants")
		}
		if res := tx.Delete(&db.Note{}, note.ID); res.Error != nil {
			return errors.Wrap(res.Error, "delete note")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.store.Remove(note.ID); err != nil {
		s.logger.Warnw("note deleted but blob removal failed", "note_id", note.ID, "error", err)
	}

	return nil
}

func (s *Service) ListOwned(userID uint64) ([]NoteSummary, error) {
	sql, args, err := squirrel.
		Select("n.id", "n.title", "n.updated_at", "COALESCE(s.name, '') AS subject", "n.user_id AS owner_id").
		From("notes n").
		LeftJoin("subjects s ON n.subject_id = s.id").
		Where(squirrel.Eq{"n.user_id": userID}).
		OrderBy("n.id").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}

	rows := make([]noteRow, 0)
	res := s.db.Raw(sql, args...).Scan(&rows)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "scan")
	}

	return s.buildSummaries(rows)
}

func (s *Service) ListShared(userID uint64) ([]NoteSummary, error) {
	sql, args, err := squirrel.
		Select("n.id", "n.title", "n.updated_at", "COALESCE(s.name, '') AS subject", "n.user_id AS owner_id", "sh.permission").
		From("notes n").
		Join("shares sh ON sh.note_id = n.id").
		LeftJoin("subjects s ON n.subject_id = s.id").
		Where(squirrel.Eq{"sh.user_id": userID}).
		OrderBy("n.id").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}

	rows := make([]noteRow, 0)
	res := s.db.Raw(sql, args...).Scan(&rows)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "scan")
	}

	return s.buildSummaries(rows)
}

type noteRow struct {
	ID         uint64
	Title      string
	UpdatedAt  time.Time
	Subject    string
	OwnerID    uint64
	Permission int
}

func (s *Service) buildSummaries(rows []noteRow) ([]NoteSummary, error) {
	ids := make([]uint64, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}

	tags, err := s.tagsByNote(s.db, ids)
	if err != nil {
		return nil, err
	}
	shares, err := s.sharesByNote(s.db, ids)
	if err != nil {
		return nil, err
	}

	summaries := make([]NoteSummary, len(rows))
	for i := range rows {
		content, err := s.store.Read(rows[i].ID)
		if err != nil {
			s.logger.Warnw("blob read failed, empty preview", "note_id", rows[i].ID, "error", err)
			content = []byte{}
		}
		summaries[i] = NoteSummary{
			ID:         rows[i].ID,
			Title:      rows[i].Title,
			Subject:    rows[i].Subject,
			Preview:    preview(content),
			UpdatedAt:  rows[i].UpdatedAt,
			OwnerID:    rows[i].OwnerID,
			Permission: Permission(rows[i].Permission),
			Tags:       tags[rows[i].ID],
			Shares:     shares[rows[i].ID],
		}
	}
	return summaries, nil
}

func (s *Service) tagsByNote(tx *gorm.DB, noteIDs []uint64) (map[uint64][]TagInfo, error) {
	out := make(map[uint64][]TagInfo)
	if len(noteIDs) == 0 {
		return out, nil
	}

	sql, args, err := squirrel.
		Select("nt.note_id", "t.id", "t.name").
		From("note_tags nt").
		Join("tags t ON t.id = nt.tag_id").
		Where(squirrel.Eq{"nt.note_id": noteIDs}).
		OrderBy("t.id").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}

	rows := make([]struct {
		NoteID uint64
		ID     uint64
		Name   string
	}, 0)
	res := tx.Raw(sql, args...).Scan(&rows)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "scan tags")
	}

	for i := range rows {
		out[rows[i].NoteID] = append(out[rows[i].NoteID], TagInfo{ID: rows[i].ID, Name: rows[i].Name})
	}
	return out, nil
}

func (s *Service) sharesByNote(tx *gorm.DB, noteIDs []uint64) (map[uint64][]ShareInfo, error) {
	out := make(map[uint64][]ShareInfo)
	if len(noteIDs) == 0 {
		return out, nil
	}

	sql, args, err := squirrel.
		Select("sh.note_id", "sh.user_id", "u.email", "sh.permission").
		From("shares sh").
		Join("users u ON u.id = sh.user_id").
		Where(squirrel.Eq{"sh.note_id": noteIDs}).
		OrderBy("sh.id").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}

	rows := make([]struct {
		NoteID     uint64
		UserID     uint64
		Email      string
		Permission int
	}, 0)
	res := tx.Raw(sql, args...).Scan(&rows)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "scan shares")
	}

	for i := range rows {
		out[rows[i].NoteID] = append(out[rows[i].NoteID], ShareInfo{
			UserID:     rows[i].UserID,
			Email:      rows[i].Email,
			Permission: Permission(rows[i].Permission),
		})
	}
	return out, nil
}

func (s *Service) getNote(tx *gorm.DB, noteID uint64) (*db.Note, error) {
	note := db.Note{}
	res := tx.First(&note, noteID)
	if res.Error != nil {
		if res.Error == gorm.ErrRecordNotFound {
			return nil, errors.Wrap(ErrNotFound, "note")
		}
		return nil, errors.Wrap(res.Error, "load note")
	}
	return &note, nil
}

func preview(content []byte) string {
	if len(content) <= previewLength {
		return string(content)
	}
	// truncate on a rune boundary so a multi-byte character is never split
	runes := []rune(string(content))
	if len(runes) <= previewLength {
		return string(content)
	}
	return string(runes[:previewLength]) + "..."
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
