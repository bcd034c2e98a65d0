package yterr

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorsIsMatchesKind(t *testing.T) {
	err := New(KindFormatNotFound, "no format for %s", "720p")
	wrapped := fmt.Errorf("select video: %w", err)

	assert.True(t, errors.Is(wrapped, ErrFormatNotFound))
	assert.False(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, KindFormatNotFound, KindOf(wrapped))
}

func TestValidationCarriesIssues(t *testing.T) {
	err := Validation([]FieldIssue{{Field: "query", Rule: "min", Message: "must be at least 2 characters"}})

	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "query: must be at least 2 characters")
}

func TestErrorMessageIncludesCauseAndHint(t *testing.T) {
	cause := errors.New("exit status 1")
	err := Wrap(KindExtractionFailed, cause, "yt-dlp failed").WithHint("retry later")

	assert.Equal(t, "ExtractionFailed: yt-dlp failed: exit status 1. retry later", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, Kind(""), KindOf(cause))
}

func TestMarshalKeepsCause(t *testing.T) {
	err := Wrap(KindTranscodeError, errors.New("exit status 1: Server returned 403 Forbidden"), "ffmpeg run failed")

	data, mErr := json.Marshal(err)
	require.NoError(t, mErr)
	assert.JSONEq(t, `{"kind":"TranscodeError","message":"ffmpeg run failed","cause":"exit status 1: Server returned 403 Forbidden"}`, string(data))

	data, mErr = json.Marshal(New(KindNotFound, "video %s not found", "x"))
	require.NoError(t, mErr)
	assert.NotContains(t, string(data), "cause")
}
