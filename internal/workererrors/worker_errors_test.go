package workererrors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/workererrors"
)

func TestExitError(t *testing.T) {
	inner := errors.New("bad flag")
	err := workererrors.ExitErrorWrap(2, inner)

	var exitErr workererrors.ExitError
	assert.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "2: bad flag", err.Error())
}

func TestDeliveryErrorPermanent(t *testing.T) {
	for code, permanent := range map[int]bool{
		0:   false,
		400: true,
		401: true,
		408: false,
		422: true,
		429: false,
		500: false,
		503: false,
	} {
		assert.Equal(t, permanent, workererrors.DeliveryError{StatusCode: code}.Permanent(), "status %d", code)
	}
}
