package testutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "consentd/pkg/domain-errors"
)

func TestRunConcurrent(t *testing.T) {
	result := RunConcurrent(40, func(idx int) error {
		switch idx % 4 {
		case 1:
			return dErrors.New(dErrors.CodeStorageWrite, "quota")
		case 2:
			return dErrors.New(dErrors.CodeTimeout, "lock wait")
		case 3:
			return errors.New("boom")
		}
		return nil
	})

	assert.Equal(t, int32(10), result.Successes)
	assert.Equal(t, int32(10), result.NotRemembered)
	assert.Equal(t, int32(10), result.Timeouts)
	assert.Equal(t, int32(10), result.Errors)
	assert.Equal(t, int32(40), result.Total())
}

func TestRecordBuilder(t *testing.T) {
	b := NewRecordBuilder().FromPreferences()
	first := b.Build()
	second := b.RejectAll().Build()

	assert.True(t, first.Preferences.Marketing)
	assert.False(t, second.Preferences.Marketing)
	assert.Equal(t, first.ConsentID, second.ConsentID)
	assert.Equal(t, TestTime, second.Timestamp)
}
