package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessorErrors_MatchSentinels(t *testing.T) {
	cause := errors.New("stripe: authentication_required")
	err := fmt.Errorf("commence stage 4: %w", AuthenticationRequired(cause))

	assert.ErrorIs(t, err, ErrAuthenticationRequired)
	assert.NotErrorIs(t, err, ErrChargeFailed)
	assert.ErrorIs(t, err, cause)

	var pe *ProcessorError
	assert.True(t, errors.As(err, &pe))
	assert.True(t, pe.Retryable)

	assert.ErrorIs(t, ChargeFailed(nil), ErrChargeFailed)
}

func TestReasons(t *testing.T) {
	err := fmt.Errorf("transition: %w", Precondition("stage cannot be completed", "stage_photo_missing", "stage_video_missing"))
	assert.Equal(t, []string{"stage_photo_missing", "stage_video_missing"}, Reasons(err))
	assert.Contains(t, err.Error(), "stage_photo_missing, stage_video_missing")
	assert.Nil(t, Reasons(errors.New("plain")))
}
