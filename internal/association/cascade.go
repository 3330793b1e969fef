package association

import (
	"context"

	"gorm.io/gorm"

	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
)

// DeleteSubject deletes a subject and everything hanging off it: notes, tasks
// with their timesheets, quotes with their line items. Customers also take
// their projects; contacts of a deleted customer are kept and detached.
func (s *Store) DeleteSubject(ctx context.Context, ref models.SubjectRef) error {
	row, err := subjectModel(ref.Type)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteSubjectTx(tx, ref); err != nil {
			return err
		}
		res := tx.Delete(row, ref.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound(string(ref.Type), ref.ID)
		}
		return nil
	})
}

func deleteSubjectTx(tx *gorm.DB, ref models.SubjectRef) error {
	switch ref.Type {
	case models.SubjectCustomer:
		var projectIDs []uint
		if err := tx.Model(&models.Project{}).Where("customer_id = ?", ref.ID).Pluck("id", &projectIDs).Error; err != nil {
			return err
		}
		for _, pid := range projectIDs {
			if err := deleteSubjectTx(tx, models.SubjectRef{Type: models.SubjectProject, ID: pid}); err != nil {
				return err
			}
		}
		if len(projectIDs) > 0 {
			if err := tx.Where("id IN ?", projectIDs).Delete(&models.Project{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&models.Contact{}).Where("customer_id = ?", ref.ID).
			Updates(map[string]any{"customer_id": nil, "is_main": false}).Error; err != nil {
			return err
		}
	case models.SubjectProject:
		var budgetIDs []uint
		if err := tx.Model(&models.ProjectBudget{}).Where("project_id = ?", ref.ID).Pluck("id", &budgetIDs).Error; err != nil {
			return err
		}
		if len(budgetIDs) > 0 {
			if err := tx.Model(&models.Timesheet{}).Where("budget_id IN ?", budgetIDs).Update("budget_id", nil).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", budgetIDs).Delete(&models.ProjectBudget{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&models.Payment{}).Where("project_id = ?", ref.ID).Update("project_id", nil).Error; err != nil {
			return err
		}
	case models.SubjectQuote:
		if err := deleteQuoteLines(tx, []uint{ref.ID}); err != nil {
			return err
		}
	}
	return deleteAnnotationsOf(tx, ref)
}

// deleteAnnotationsOf removes the notes, tasks and quotes attached to ref.
func deleteAnnotationsOf(tx *gorm.DB, ref models.SubjectRef) error {
	where := "subject_type = ? AND subject_id = ?"

	if err := tx.Where(where, ref.Type, ref.ID).Delete(&models.Note{}).Error; err != nil {
		return err
	}

	var taskIDs []uint
	if err := tx.Model(&models.Task{}).Where(where, ref.Type, ref.ID).Pluck("id", &taskIDs).Error; err != nil {
		return err
	}
	if len(taskIDs) > 0 {
		if err := tx.Where("task_id IN ?", taskIDs).Delete(&models.Timesheet{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", taskIDs).Delete(&models.Task{}).Error; err != nil {
			return err
		}
	}

	var quoteIDs []uint
	if err := tx.Model(&models.Quote{}).Where(where, ref.Type, ref.ID).Pluck("id", &quoteIDs).Error; err != nil {
		return err
	}
	for _, qid := range quoteIDs {
		// quotes carry their own notes and tasks
		if err := deleteAnnotationsOf(tx, models.SubjectRef{Type: models.SubjectQuote, ID: qid}); err != nil {
			return err
		}
	}
	if len(quoteIDs) > 0 {
		if err := deleteQuoteLines(tx, quoteIDs); err != nil {
			return err
		}
		if err := tx.Where("id IN ?", quoteIDs).Delete(&models.Quote{}).Error; err != nil {
			return err
		}
	}
	return nil
}
