package errx

import (
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// WrapSQL wraps a failure of the inventory database.
func WrapSQL(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadGateway, StorageErrorMessage)
}

// WrapLLM wraps a failure of the language model provider.
func WrapLLM(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadGateway, ModelErrorMessage)
}

// WrapRedis wraps a conversation store failure. A missing key is a 404.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return New(err, http.StatusNotFound, RedisNotFoundMessage)
	}
	return New(err, http.StatusBadGateway, RedisErrorMessage)
}
