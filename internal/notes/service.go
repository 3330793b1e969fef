package notes

import (
	"context"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aldoetobex/smb-crm-backend/internal/association"
	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
	"github.com/aldoetobex/smb-crm-backend/pkg/validation"
)

const maxNoteLen = 250

type Service struct {
	db    *gorm.DB
	store *association.Store
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, store: association.NewStore(db)}
}

// Add attaches a new note to ref.
func (s *Service) Add(ctx context.Context, ref models.SubjectRef, text string) (*models.Note, error) {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return nil, apperr.ValidationFields(validation.Field("note", "This field is required"))
	case utf8.RuneCountInString(text) > maxNoteLen:
		return nil, apperr.ValidationFields(validation.Field("note", "Must be at most 250 characters"))
	}
	note := &models.Note{Text: text}
	if _, err := s.store.Attach(ctx, ref, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *Service) List(ctx context.Context, ref models.SubjectRef) ([]models.Note, error) {
	if err := s.store.Exists(ctx, ref); err != nil {
		return nil, err
	}
	return association.List[models.Note](ctx, s.store, ref)
}

// Delete removes a note and returns the subject it belonged to.
func (s *Service) Delete(ctx context.Context, id uint) (models.SubjectRef, error) {
	var note models.Note
	if err := s.db.WithContext(ctx).First(&note, id).Error; err != nil {
		return models.SubjectRef{}, apperr.FromGorm(err, "note", id)
	}
	return note.Subject(), s.store.Delete(ctx, association.KindNote, id)
}

// Tag toggles the pin on a note. Pinning clears every sibling of the same
// subject and sets the target in one UPDATE, so no two notes of a subject are
// ever tagged together.
func (s *Service) Tag(ctx context.Context, noteID uint) (*models.Note, error) {
	var note models.Note
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&note, noteID).Error; err != nil {
			return apperr.FromGorm(err, "note", noteID)
		}

		if note.Tagged {
			if err := tx.Model(&models.Note{}).Where("id = ?", note.ID).Update("tagged", false).Error; err != nil {
				return err
			}
			note.Tagged = false
			return nil
		}

		if err := tx.Model(&models.Note{}).
			Where("subject_type = ? AND subject_id = ?", note.SubjectType, note.SubjectID).
			Update("tagged", gorm.Expr("(id = ?)", note.ID)).Error; err != nil {
			return err
		}
		note.Tagged = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// Tagged returns the pinned note of ref, or nil.
func (s *Service) Tagged(ctx context.Context, ref models.SubjectRef) (*models.Note, error) {
	var notes []models.Note
	if err := s.db.WithContext(ctx).
		Where("subject_type = ? AND subject_id = ? AND tagged = ?", ref.Type, ref.ID, true).
		Order("id DESC").Limit(1).Find(&notes).Error; err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, nil
	}
	return &notes[0], nil
}
