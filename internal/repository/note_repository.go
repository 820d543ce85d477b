package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/mirkodev/notes-service/internal/domain"
	"github.com/mirkodev/notes-service/internal/observability"

	"gorm.io/gorm"
)

var (
	ErrNoteNotFound  = errors.New("note not found")
	ErrAlreadyShared = errors.New("note already shared")
)

// NoteFilter narrows and orders note listings. Zero values mean "no filter";
// a zero Limit falls back to 10 results, matching the API default.
type NoteFilter struct {
	Text            string
	Tags            []string
	Category        string
	OrderByCategory string // "ASC" or "DESC"
	OrderByDate     string // "ASC" or "DESC"
	Limit           int
	Offset          int
}

type NoteRepository interface {
	Create(note *domain.Note) error
	FindByID(id uint) (*domain.Note, error)
	FindByIDForUser(userID, id uint) (*domain.Note, error)
	Update(note *domain.Note) error
	ReplaceTags(note *domain.Note, tagNames []string) error
	Delete(id uint) error
	ListByUser(userID uint, filter NoteFilter) ([]domain.Note, error)
	ListAll(filter NoteFilter) ([]domain.Note, error)
	Share(link *domain.SharedNote) error
	FindShare(noteID, targetUserID uint) (*domain.SharedNote, error)
	ListSharedWithUser(userID uint, filter NoteFilter) ([]domain.Note, error)
}

type GormNoteRepository struct{ db *gorm.DB }

func NewNoteRepository(db *gorm.DB) NoteRepository { return &GormNoteRepository{db: db} }

func (r *GormNoteRepository) Create(note *domain.Note) error {
	err := r.db.Create(note).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "note", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "note", "create", "success")
	return nil
}

func (r *GormNoteRepository) FindByID(id uint) (*domain.Note, error) {
	var n domain.Note
	err := r.db.Preload("Tags").First(&n, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "note", "find_by_id", "not_found")
			return nil, ErrNoteNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "note", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "note", "find_by_id", "success")
	return &n, nil
}

func (r *GormNoteRepository) FindByIDForUser(userID, id uint) (*domain.Note, error) {
	var n domain.Note
	err := r.db.Preload("Tags").Where("id = ? AND user_id = ?", id, userID).First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "note", "find_for_user", "not_found")
			return nil, ErrNoteNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "note", "find_for_user", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "note", "find_for_user", "success")
	return &n, nil
}

func (r *GormNoteRepository) Update(note *domain.Note) error {
	err := r.db.Save(note).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "note", "update", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "note", "update", "success")
	return nil
}

// ReplaceTags swaps the note's tag set for the named tags, creating any tag
// that does not exist yet.
func (r *GormNoteRepository) ReplaceTags(note *domain.Note, tagNames []string) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		tags := make([]domain.Tag, 0, len(tagNames))
		for _, name := range tagNames {
			var tag domain.Tag
			err := tx.Where("name = ?", name).First(&tag).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				tag = domain.Tag{Name: name}
				if err := tx.Create(&tag).Error; err != nil {
					return err
				}
			} else if err != nil {
				return err
			}
			tags = append(tags, tag)
		}
		if err := tx.Model(note).Association("Tags").Replace(tags); err != nil {
			return err
		}
		note.Tags = tags
		return nil
	})
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "note", "replace_tags", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "note", "replace_tags", "success")
	return nil
}

func (r *GormNoteRepository) Delete(id uint) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("note_id = ?", id).Delete(&domain.SharedNote{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&domain.Note{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNoteNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNoteNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "note", "delete", "not_found")
		} else {
			observability.RecordRepositoryOperation(context.Background(), "note", "delete", "error")
		}
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "note", "delete", "success")
	return nil
}

func (r *GormNoteRepository) ListByUser(userID uint, filter NoteFilter) ([]domain.Note, error) {
	q := r.db.Preload("Tags").Where("notes.user_id = ?", userID)
	return r.list("list_by_user", q, filter)
}

func (r *GormNoteRepository) ListAll(filter NoteFilter) ([]domain.Note, error) {
	return r.list("list_all", r.db.Preload("Tags"), filter)
}

func (r *GormNoteRepository) list(op string, q *gorm.DB, filter NoteFilter) ([]domain.Note, error) {
	if filter.Text != "" {
		q = q.Where("notes.text LIKE ?", "%"+filter.Text+"%")
	}
	if filter.Category != "" {
		q = q.Where("notes.category = ?", filter.Category)
	}
	for _, tag := range filter.Tags {
		q = q.Where("EXISTS (SELECT 1 FROM note_tags nt JOIN tags t ON t.id = nt.tag_id WHERE nt.note_id = notes.id AND t.name = ?)", tag)
	}
	if dir, ok := orderDirection(filter.OrderByCategory); ok {
		q = q.Order("notes.category " + dir)
	}
	if dir, ok := orderDirection(filter.OrderByDate); ok {
		q = q.Order("notes.created_at " + dir)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	var notes []domain.Note
	err := q.Limit(limit).Offset(filter.Offset).Find(&notes).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "note", op, "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "note", op, "success")
	return notes, nil
}

func orderDirection(v string) (string, bool) {
	switch strings.ToUpper(v) {
	case "ASC":
		return "ASC", true
	case "DESC":
		return "DESC", true
	}
	return "", false
}

func (r *GormNoteRepository) Share(link *domain.SharedNote) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing domain.SharedNote
		err := tx.Where("note_id = ? AND target_user_id = ?", link.NoteID, link.TargetUserID).
			First(&existing).Error
		if err == nil {
			return ErrAlreadyShared
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(link).Error
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyShared) {
			observability.RecordRepositoryOperation(context.Background(), "shared_note", "share", "conflict")
		} else {
			observability.RecordRepositoryOperation(context.Background(), "shared_note", "share", "error")
		}
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "shared_note", "share", "success")
	return nil
}

func (r *GormNoteRepository) FindShare(noteID, targetUserID uint) (*domain.SharedNote, error) {
	var link domain.SharedNote
	err := r.db.Where("note_id = ? AND target_user_id = ?", noteID, targetUserID).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "shared_note", "find", "not_found")
			return nil, ErrNoteNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "shared_note", "find", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "shared_note", "find", "success")
	return &link, nil
}

func (r *GormNoteRepository) ListSharedWithUser(userID uint, filter NoteFilter) ([]domain.Note, error) {
	q := r.db.Preload("Tags").
		Joins("JOIN shared_notes sn ON sn.note_id = notes.id").
		Where("sn.target_user_id = ?", userID)
	return r.list("list_shared", q, filter)
}
