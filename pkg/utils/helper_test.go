package utils

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldoetobex/smb-crm-backend/pkg/apperr"
)

func TestParseIDList(t *testing.T) {
	ids, err := ParseIDList(" 3, 1,,7 ")
	require.NoError(t, err)
	assert.Equal(t, []uint{3, 1, 7}, ids)

	_, err = ParseIDList("1,x,3")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = ParseIDList("")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestParseID(t *testing.T) {
	id, err := ParseID("0")
	require.NoError(t, err)
	assert.Zero(t, id)

	_, err = ParseID("-1")
	assert.Error(t, err)
}

func TestDeleteEach_SkipsMissing(t *testing.T) {
	existing := map[uint]bool{1: true, 3: true}
	deleted, missing, err := DeleteEach(context.Background(), []uint{1, 2, 3}, func(_ context.Context, id uint) error {
		if !existing[id] {
			return apperr.NotFound("lead", id)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 3}, deleted)
	assert.Equal(t, []uint{2}, missing)
}

func TestDeleteEach_StopsOnFailure(t *testing.T) {
	boom := errors.New("db down")
	deleted, _, err := DeleteEach(context.Background(), []uint{1, 2, 3}, func(_ context.Context, id uint) error {
		if id == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []uint{1}, deleted)
}
