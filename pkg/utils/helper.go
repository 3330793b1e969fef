package utils

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
	"github.com/aldoetobex/smb-crm-backend/pkg/logger"
	"github.com/aldoetobex/smb-crm-backend/pkg/models"
)

// LogStatusChange inserts an audit record into status_histories.
// Used after status transitions and conversions have committed.
// Errors are only logged (best-effort audit).
func LogStatusChange(
	ctx context.Context,
	db *gorm.DB,
	entity string,
	entityID uint,
	action string,
	oldS, newS string,
	reason string,
) {
	err := db.WithContext(ctx).Create(&models.StatusHistory{
		EntityType: entity,
		EntityID:   entityID,
		Action:     action,
		OldStatus:  oldS,
		NewStatus:  newS,
		Reason:     reason,
		CreatedAt:  time.Now(),
	}).Error
	if err != nil {
		logger.FromContext(ctx).Warn("status history not recorded",
			zap.String("entity", entity), zap.Uint("entity_id", entityID), zap.Error(err))
	}
}

// ParseID parses a path or form id; "0" is allowed and means "create new".
func ParseID(raw string) (uint, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, apperr.Validation("invalid id " + strconv.Quote(raw))
	}
	return uint(n), nil
}

// ParseIDList parses "1, 2,3" into ids. Any non-integer entry rejects the whole list.
func ParseIDList(raw string) ([]uint, error) {
	var ids []uint
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil || n == 0 {
			return nil, apperr.Validation("ids must be a comma-separated list of positive integers")
		}
		ids = append(ids, uint(n))
	}
	if len(ids) == 0 {
		return nil, apperr.Validation("no ids given")
	}
	return ids, nil
}

// DeleteEach runs del for every id independently. Ids that do not exist are
// skipped and reported as missing; any other failure stops the loop.
func DeleteEach(ctx context.Context, ids []uint, del func(ctx context.Context, id uint) error) (deleted, missing []uint, err error) {
	deleted, missing = []uint{}, []uint{}
	for _, id := range ids {
		if err := del(ctx, id); err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				missing = append(missing, id)
				continue
			}
			return deleted, missing, err
		}
		deleted = append(deleted, id)
	}
	return deleted, missing, nil
}
