package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsCodeThroughWrapping(t *testing.T) {
	base := errors.New("zip: not a valid zip file")
	err := fmt.Errorf("import: %w", Wrap(base, CodeArchiveInvalid, "archive unreadable"))

	require.True(t, IsCode(err, CodeArchiveInvalid))
	require.False(t, IsCode(err, CodeInternal))
	require.ErrorIs(t, err, base)
	require.Equal(t, CodeArchiveInvalid, CodeOf(err))
	require.Equal(t, CodeUnknown, CodeOf(base))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalid:        http.StatusBadRequest,
		CodeArchiveInvalid: http.StatusBadRequest,
		CodeUnauthorized:   http.StatusUnauthorized,
		CodeForbidden:      http.StatusForbidden,
		CodeNotFound:       http.StatusNotFound,
		CodeConflict:       http.StatusConflict,
		CodeInternal:       http.StatusInternalServerError,
	}
	for code, want := range cases {
		require.Equal(t, want, HTTPStatus(New(code, "x")), string(code))
	}
	require.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
}

func TestWithMeta(t *testing.T) {
	err := New(CodeNotFound, "project not found").WithMeta("project_id", "p1")
	require.Equal(t, "p1", err.Meta["project_id"])
	require.Equal(t, "not_found: project not found", err.Error())
}
