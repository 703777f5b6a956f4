package common

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteErrorUnwrapsAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, fmt.Errorf("load: %w", NotFound("promotion not found", errors.New("no rows"))))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"error":{"code":"NOT_FOUND","message":"promotion not found"}}`, rec.Body.String())
}

func TestWriteErrorHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("dial tcp: connection refused"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "connection refused")
}

func TestValidationFailedListsJSONFields(t *testing.T) {
	type payload struct {
		ProductID int64 `json:"product_id" validate:"required,gt=0"`
		Quantity  int   `json:"quantity" validate:"gte=1"`
	}
	err := ValidationFailed(NewValidator().Struct(payload{Quantity: 0}))
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	fields := appErr.Details.(map[string]any)["fields"].([]FieldError)
	require.Len(t, fields, 2)
	require.Equal(t, "product_id", fields[0].Field)
	require.Equal(t, "quantity", fields[1].Field)
}
