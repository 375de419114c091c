package apperr

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("load coupon: %w", NotFound("Coupon not found"))

	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, Is(err, KindNotFound))
	assert.Equal(t, "Coupon not found", Message(err))
	assert.Equal(t, http.StatusNotFound, KindOf(err).HTTPStatus())
}

func TestPlainErrorIsInternal(t *testing.T) {
	err := fmt.Errorf("query: %w", sql.ErrConnDone)

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "Internal server error", Message(err))
	assert.Equal(t, http.StatusInternalServerError, KindOf(err).HTTPStatus())
}

func TestSettlementHidesDetail(t *testing.T) {
	err := Settlement(fmt.Errorf("UPDATE products SET stock = ... failed"))

	assert.Equal(t, http.StatusInternalServerError, err.Kind.HTTPStatus())
	assert.Equal(t, "Internal server error", Message(err))
	assert.Contains(t, err.Error(), "UPDATE products")
}

func TestStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:       http.StatusBadRequest,
		KindConflict:         http.StatusBadRequest,
		KindDuplicate:        http.StatusConflict,
		KindUnauthorized:     http.StatusUnauthorized,
		KindForbidden:        http.StatusForbidden,
		KindSignatureInvalid: http.StatusBadRequest,
		KindRateLimited:      http.StatusTooManyRequests,
	}
	for kind, status := range cases {
		assert.Equal(t, status, kind.HTTPStatus(), kind.String())
	}
}
