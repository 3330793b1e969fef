// Package association attaches notes, tasks and quotes to any subject
// (lead, customer, contact, project or quote) and moves them between subjects.
package association

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
)

// Kind names an annotation table.
type Kind string

const (
	KindNote  Kind = "note"
	KindTask  Kind = "task"
	KindQuote Kind = "quote"
)

// Annotation is the set of row types that can be listed per subject.
type Annotation interface {
	models.Note | models.Task | models.Quote
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

// WithTx returns a store bound to tx so its writes join the caller's transaction.
func (s *Store) WithTx(tx *gorm.DB) *Store { return &Store{db: tx} }

func (s *Store) DB() *gorm.DB { return s.db }

/* ============================== Subjects ================================ */

func subjectModel(t models.SubjectType) (any, error) {
	switch t {
	case models.SubjectLead:
		return &models.Lead{}, nil
	case models.SubjectCustomer:
		return &models.Customer{}, nil
	case models.SubjectContact:
		return &models.Contact{}, nil
	case models.SubjectProject:
		return &models.Project{}, nil
	case models.SubjectQuote:
		return &models.Quote{}, nil
	default:
		return nil, apperr.Validation(fmt.Sprintf("unknown subject type %q", t))
	}
}

// Resolve loads the concrete row behind ref (*models.Lead, *models.Customer, ...).
func (s *Store) Resolve(ctx context.Context, ref models.SubjectRef) (any, error) {
	row, err := subjectModel(ref.Type)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).First(row, ref.ID).Error; err != nil {
		return nil, apperr.FromGorm(err, string(ref.Type), ref.ID)
	}
	return row, nil
}

// Exists checks the subject without loading it.
func (s *Store) Exists(ctx context.Context, ref models.SubjectRef) error {
	row, err := subjectModel(ref.Type)
	if err != nil {
		return err
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(row).Where("id = ?", ref.ID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound(string(ref.Type), ref.ID)
	}
	return nil
}

/* ============================== Annotations ============================= */

func kindOf(a models.Attachable) (Kind, error) {
	switch a.(type) {
	case *models.Note:
		return KindNote, nil
	case *models.Task:
		return KindTask, nil
	case *models.Quote:
		return KindQuote, nil
	default:
		return "", fmt.Errorf("association: unsupported annotation %T", a)
	}
}

func kindModel(k Kind) (any, error) {
	switch k {
	case KindNote:
		return &models.Note{}, nil
	case KindTask:
		return &models.Task{}, nil
	case KindQuote:
		return &models.Quote{}, nil
	default:
		return nil, apperr.Validation(fmt.Sprintf("unknown annotation kind %q", k))
	}
}

// Allowed reports whether annotations of kind k may hang off subjects of type t.
// Notes and tasks attach anywhere; quotes only to leads and customers.
func Allowed(k Kind, t models.SubjectType) bool {
	if !t.Valid() {
		return false
	}
	if k == KindQuote {
		return t == models.SubjectLead || t == models.SubjectCustomer
	}
	return true
}

func checkAllowed(k Kind, ref models.SubjectRef) error {
	if !Allowed(k, ref.Type) {
		return apperr.ValidationFields(map[string][]string{
			"subject_type": {fmt.Sprintf("a %s cannot be attached to a %s", k, ref.Type)},
		})
	}
	return nil
}

// Attach stores a (its subject fields are overwritten with ref) and returns the new id.
func (s *Store) Attach(ctx context.Context, ref models.SubjectRef, a models.Attachable) (uint, error) {
	k, err := kindOf(a)
	if err != nil {
		return 0, err
	}
	if err := checkAllowed(k, ref); err != nil {
		return 0, err
	}
	if err := s.Exists(ctx, ref); err != nil {
		return 0, err
	}
	a.SetSubject(ref)
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return 0, err
	}
	var id uint
	switch v := a.(type) {
	case *models.Note:
		id = v.ID
	case *models.Task:
		id = v.ID
	case *models.Quote:
		id = v.ID
	}
	return id, nil
}

// List returns the annotations of type T attached to ref, newest first.
func List[T Annotation](ctx context.Context, s *Store, ref models.SubjectRef) ([]T, error) {
	out := []T{}
	err := s.db.WithContext(ctx).
		Where("subject_type = ? AND subject_id = ?", ref.Type, ref.ID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// Reparent moves one annotation onto another subject.
func (s *Store) Reparent(ctx context.Context, k Kind, id uint, to models.SubjectRef) error {
	model, err := kindModel(k)
	if err != nil {
		return err
	}
	if err := checkAllowed(k, to); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(model).Where("id = ?", id).
		Updates(map[string]any{"subject_type": to.Type, "subject_id": to.ID})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(string(k), id)
	}
	return nil
}

// ReparentAll moves every annotation of kind k from one subject to another in a
// single statement and returns how many rows moved.
func (s *Store) ReparentAll(ctx context.Context, k Kind, from, to models.SubjectRef) (int64, error) {
	model, err := kindModel(k)
	if err != nil {
		return 0, err
	}
	if err := checkAllowed(k, to); err != nil {
		return 0, err
	}
	res := s.db.WithContext(ctx).Model(model).
		Where("subject_type = ? AND subject_id = ?", from.Type, from.ID).
		Updates(map[string]any{"subject_type": to.Type, "subject_id": to.ID})
	return res.RowsAffected, res.Error
}

// Delete removes one annotation together with the rows it owns.
func (s *Store) Delete(ctx context.Context, k Kind, id uint) error {
	model, err := kindModel(k)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch k {
		case KindTask:
			if err := tx.Where("task_id = ?", id).Delete(&models.Timesheet{}).Error; err != nil {
				return err
			}
		case KindQuote:
			// a quote is also a subject with its own notes and tasks
			if err := deleteSubjectTx(tx, models.SubjectRef{Type: models.SubjectQuote, ID: id}); err != nil {
				return err
			}
		}
		res := tx.Delete(model, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound(string(k), id)
		}
		return nil
	})
}

func deleteQuoteLines(tx *gorm.DB, quoteIDs []uint) error {
	if len(quoteIDs) == 0 {
		return nil
	}
	if err := tx.Where("quote_id IN ?", quoteIDs).Delete(&models.QuotePayment{}).Error; err != nil {
		return err
	}
	return tx.Where("quote_id IN ?", quoteIDs).Delete(&models.QuoteService{}).Error
}
