package api

import (
	"github.com/xraph/forge"

	"github.com/xraph/warrant"
)

// mapError maps engine error kinds to Forge HTTP errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	switch warrant.KindOf(err) {
	case warrant.KindNotFound:
		return forge.NotFound(err.Error())
	case warrant.KindValidation, warrant.KindUnsupportedStrategy, warrant.KindInvalidState:
		return forge.BadRequest(err.Error())
	}
	return err
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
