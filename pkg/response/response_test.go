package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmsv-2726/federated-socmed/pkg/errcode"
)

func run(t *testing.T, fn func(c *gin.Context)) (int, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	fn(c)
	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestErrorMapsKinds(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{errcode.New(errcode.Validation, "SELF_FOLLOW", "x"), http.StatusBadRequest, "SELF_FOLLOW"},
		{fmt.Errorf("wrapped: %w", errcode.New(errcode.Conflict, "ALREADY_FOLLOWING", "x")), http.StatusConflict, "ALREADY_FOLLOWING"},
		{errcode.New(errcode.Forbidden, "APPROVAL_REQUIRED", "x"), http.StatusForbidden, "APPROVAL_REQUIRED"},
		{errcode.New(errcode.NotFound, "NOT_FOUND", "x"), http.StatusNotFound, "NOT_FOUND"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tt := range tests {
		status, body := run(t, func(c *gin.Context) { Error(c, tt.err) })
		assert.Equal(t, tt.status, status)
		assert.Equal(t, tt.code, body.Code)
	}
}

func TestInternalErrorHidesDetail(t *testing.T) {
	_, body := run(t, func(c *gin.Context) { InternalError(c, errors.New("password=hunter2")) })
	assert.NotContains(t, body.Message, "hunter2")
}

func TestSuccess(t *testing.T) {
	status, body := run(t, func(c *gin.Context) { Success(c, gin.H{"ok": true}) })
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body.Code)
	assert.Equal(t, map[string]interface{}{"ok": true}, body.Data)
}
