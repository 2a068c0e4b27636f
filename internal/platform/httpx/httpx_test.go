package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devcampus/devcampus/internal/shared"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
		detail bool
	}{
		{fmt.Errorf("profiles: get u1: %w", shared.ErrNotFound), http.StatusNotFound, true},
		{fmt.Errorf("dup: %w", shared.ErrConflict), http.StatusConflict, true},
		{fmt.Errorf("bad role: %w", shared.ErrInvalidInput), http.StatusBadRequest, true},
		{errors.New("connection refused"), http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		res := httptest.NewRecorder()
		RespondError(res, tc.err)
		require.Equal(t, tc.status, res.Code, tc.err.Error())
		assert.Equal(t, "application/problem+json", res.Header().Get("Content-Type"))

		var body ProblemDetail
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
		assert.Equal(t, tc.status, body.Status)
		assert.Equal(t, "about:blank", body.Type)
		if tc.detail {
			assert.Equal(t, tc.err.Error(), body.Detail)
		} else {
			assert.Empty(t, body.Detail)
		}
	}
}

func TestJSON(t *testing.T) {
	res := httptest.NewRecorder()
	JSON(res, http.StatusCreated, map[string]int{"n": 1})
	assert.Equal(t, http.StatusCreated, res.Code)
	assert.Equal(t, "application/json; charset=utf-8", res.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", res.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"n":1}`, res.Body.String())
}
