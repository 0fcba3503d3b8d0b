package errx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestStatusAndMessage(t *testing.T) {
	base := errors.New("boom")

	wrapped := fmt.Errorf("turn: %w", WrapLLM(base))
	assert.Equal(t, http.StatusBadGateway, StatusOf(wrapped))
	assert.Equal(t, ModelErrorMessage, MessageOf(wrapped))
	assert.ErrorIs(t, wrapped, base)

	assert.Equal(t, http.StatusBadRequest, StatusOf(Validation(base)))
	assert.Equal(t, StorageErrorMessage, MessageOf(WrapSQL(base)))

	assert.Equal(t, http.StatusInternalServerError, StatusOf(base))
	assert.Equal(t, SystemErrorMessage, MessageOf(base))
}

func TestWrapRedis(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusOf(WrapRedis(redis.Nil)))
	assert.Equal(t, http.StatusBadGateway, StatusOf(WrapRedis(errors.New("dial"))))
	assert.NoError(t, WrapRedis(nil))
	assert.Nil(t, Validation(nil))
}
