package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/mirkodev/notes-service/internal/cache"
	"github.com/mirkodev/notes-service/internal/domain"
	"github.com/mirkodev/notes-service/internal/repository"
)

// NoteUpdate enumerates the mutable note fields. A nil Tags slice leaves the
// tag set alone; an empty one clears it.
type NoteUpdate struct {
	Text     *string  `json:"text"`
	Category *string  `json:"category"`
	Tags     []string `json:"tags"`
}

type NoteService struct {
	notes repository.NoteRepository
	users repository.UserRepository
	cache *cache.NotesCache
}

func NewNoteService(notes repository.NoteRepository, users repository.UserRepository, notesCache *cache.NotesCache) *NoteService {
	return &NoteService{notes: notes, users: users, cache: notesCache}
}

func (s *NoteService) Create(ctx context.Context, userID uint, text, category string, tags []string) (*domain.Note, error) {
	if category == "" {
		category = domain.CategoryUnknown
	}
	if !domain.ValidCategory(category) {
		return nil, ErrInvalidCategory
	}
	note := &domain.Note{Text: text, Category: category, UserID: userID}
	if err := s.notes.Create(note); err != nil {
		return nil, err
	}
	if len(tags) > 0 {
		if err := s.notes.ReplaceTags(note, tags); err != nil {
			return nil, err
		}
	}
	s.cache.InvalidateUser(ctx, userID)
	return note, nil
}

// ListPersonal reads through the cache: the filter is fingerprinted into the
// key, hits skip the database, misses populate the cache with the TTL the
// cache was built with.
func (s *NoteService) ListPersonal(ctx context.Context, userID uint, filter repository.NoteFilter) ([]domain.Note, error) {
	key := cache.UserNotesKey(userID, filterFingerprint(filter))
	var notes []domain.Note
	if s.cache.Get(ctx, key, &notes) {
		return notes, nil
	}
	notes, err := s.notes.ListByUser(userID, filter)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, notes)
	return notes, nil
}

func (s *NoteService) ListShared(ctx context.Context, userID uint, filter repository.NoteFilter) ([]domain.Note, error) {
	key := cache.SharedNotesKey(userID, filterFingerprint(filter))
	var notes []domain.Note
	if s.cache.Get(ctx, key, &notes) {
		return notes, nil
	}
	notes, err := s.notes.ListSharedWithUser(userID, filter)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, notes)
	return notes, nil
}

func (s *NoteService) Update(ctx context.Context, userID, noteID uint, update NoteUpdate) (*domain.Note, error) {
	note, err := s.notes.FindByIDForUser(userID, noteID)
	if err != nil {
		if errors.Is(err, repository.ErrNoteNotFound) {
			return nil, ErrNoteNotFound
		}
		return nil, err
	}
	if err := s.applyUpdate(note, update); err != nil {
		return nil, err
	}
	s.cache.InvalidateUser(ctx, userID)
	s.cache.InvalidateNote(ctx, noteID)
	return note, nil
}

// UpdateShared lets a share target edit a note, provided the share grants
// write permission.
func (s *NoteService) UpdateShared(ctx context.Context, userID, noteID uint, update NoteUpdate) (*domain.Note, error) {
	link, err := s.notes.FindShare(noteID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNoteNotFound) {
			return nil, ErrNoteNotFound
		}
		return nil, err
	}
	if link.Permission != domain.SharePermissionWrite {
		return nil, ErrForbidden
	}
	note, err := s.notes.FindByID(noteID)
	if err != nil {
		if errors.Is(err, repository.ErrNoteNotFound) {
			return nil, ErrNoteNotFound
		}
		return nil, err
	}
	// Tag changes stay with the owner; a share target edits content only.
	update.Tags = nil
	if err := s.applyUpdate(note, update); err != nil {
		return nil, err
	}
	s.cache.InvalidateUser(ctx, note.UserID)
	s.cache.InvalidateNote(ctx, noteID)
	return note, nil
}

func (s *NoteService) applyUpdate(note *domain.Note, update NoteUpdate) error {
	if update.Text != nil {
		note.Text = *update.Text
	}
	if update.Category != nil {
		if !domain.ValidCategory(*update.Category) {
			return ErrInvalidCategory
		}
		note.Category = *update.Category
	}
	if err := s.notes.Update(note); err != nil {
		return err
	}
	if update.Tags != nil {
		if err := s.notes.ReplaceTags(note, update.Tags); err != nil {
			return err
		}
	}
	return nil
}

func (s *NoteService) Share(ctx context.Context, ownerID, noteID, targetUserID uint, permission string) error {
	if permission == "" {
		permission = domain.SharePermissionRead
	}
	if permission != domain.SharePermissionRead && permission != domain.SharePermissionWrite {
		return ErrForbidden
	}
	if _, err := s.notes.FindByIDForUser(ownerID, noteID); err != nil {
		if errors.Is(err, repository.ErrNoteNotFound) {
			return ErrNoteNotFound
		}
		return err
	}
	if _, err := s.users.FindByID(targetUserID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	err := s.notes.Share(&domain.SharedNote{
		NoteID:       noteID,
		OwnerID:      ownerID,
		TargetUserID: targetUserID,
		Permission:   permission,
	})
	if errors.Is(err, repository.ErrAlreadyShared) {
		return ErrAlreadyShared
	}
	return err
}

func (s *NoteService) Delete(ctx context.Context, userID, noteID uint) error {
	if _, err := s.notes.FindByIDForUser(userID, noteID); err != nil {
		if errors.Is(err, repository.ErrNoteNotFound) {
			return ErrNoteNotFound
		}
		return err
	}
	if err := s.notes.Delete(noteID); err != nil {
		return err
	}
	s.cache.InvalidateUser(ctx, userID)
	s.cache.InvalidateNote(ctx, noteID)
	return nil
}

// AdminGet serves a single note through the note:<id> cache key.
func (s *NoteService) AdminGet(ctx context.Context, noteID uint) (*domain.Note, error) {
	key := cache.NoteKey(noteID)
	var cached domain.Note
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}
	note, err := s.notes.FindByID(noteID)
	if err != nil {
		if errors.Is(err, repository.ErrNoteNotFound) {
			return nil, ErrNoteNotFound
		}
		return nil, err
	}
	s.cache.Set(ctx, key, note)
	return note, nil
}

func (s *NoteService) AdminList(ctx context.Context, filter repository.NoteFilter) ([]domain.Note, error) {
	return s.notes.ListAll(filter)
}

func (s *NoteService) AdminDelete(ctx context.Context, noteID uint) error {
	note, err := s.notes.FindByID(noteID)
	if err != nil {
		if errors.Is(err, repository.ErrNoteNotFound) {
			return ErrNoteNotFound
		}
		return err
	}
	if err := s.notes.Delete(noteID); err != nil {
		return err
	}
	s.cache.InvalidateUser(ctx, note.UserID)
	s.cache.InvalidateNote(ctx, noteID)
	return nil
}

func filterFingerprint(filter repository.NoteFilter) string {
	tags := append([]string(nil), filter.Tags...)
	sort.Strings(tags)
	return cache.Fingerprint(
		strconv.Itoa(filter.Limit),
		strconv.Itoa(filter.Offset),
		strings.Join(tags, ","),
		filter.Category,
		filter.OrderByCategory,
		filter.OrderByDate,
		filter.Text,
	)
}
