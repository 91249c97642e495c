package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct code", func(t *testing.T) {
		err := New(CodeInvalidConfig, "unknown zone")
		assert.True(t, HasCode(err, CodeInvalidConfig))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("matches code through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("configure: %w", New(CodeInvalidConfig, "unknown zone"))
		assert.True(t, HasCode(err, CodeInvalidConfig))
	})

	t.Run("matches inner code of nested domain errors", func(t *testing.T) {
		inner := New(CodeNotFound, "session missing")
		err := Wrap(inner, CodeInternal, "snapshot failed")
		assert.True(t, HasCode(err, CodeInternal))
		assert.True(t, HasCode(err, CodeNotFound))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestWrap(t *testing.T) {
	cause := errors.New("redis down")
	err := Wrap(cause, CodeUnavailable, "publish snapshot")

	assert.True(t, Is(err, cause))
	assert.Equal(t, "publish snapshot: redis down", err.Error())
	assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidConfig: http.StatusBadRequest,
		CodeNotFound:      http.StatusNotFound,
		CodeInvalidState:  http.StatusConflict,
		CodeUnavailable:   http.StatusServiceUnavailable,
		CodeRateLimited:   http.StatusTooManyRequests,
		CodeInternal:      http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), string(code))
	}
}
