package logical

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodedError_KindsAndMessages(t *testing.T) {
	err := Unauthorized("no authenticated user")
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "unauthorized: no authenticated user", err.Error())
	assert.Equal(t, http.StatusUnauthorized, GetErrorCode(err))

	nf := fmt.Errorf("lookup: %w", NotFoundf("application credential %s", "abc"))
	assert.True(t, errors.Is(nf, ErrNotFound))
	assert.Equal(t, http.StatusNotFound, GetErrorCode(nf))
	assert.Equal(t, "lookup: not found: application credential abc", nf.Error())

	assert.Equal(t, http.StatusNotImplemented, GetErrorCode(NotImplemented("delete_for_user")))
	assert.Equal(t, http.StatusConflict, GetErrorCode(Conflictf("dup")))
	assert.Equal(t, http.StatusBadRequest, GetErrorCode(InvalidRequestf("bad")))
}

func TestRoleAssignmentNotFoundError(t *testing.T) {
	var err error = fmt.Errorf("create: %w", &RoleAssignmentNotFoundError{RoleID: "r1", ActorID: "u1", TargetID: "p1"})

	assert.True(t, errors.Is(err, ErrNotFound))

	var ranf *RoleAssignmentNotFoundError
	if assert.True(t, errors.As(err, &ranf)) {
		assert.Equal(t, "r1", ranf.RoleID)
		assert.Equal(t, "u1", ranf.ActorID)
		assert.Equal(t, "p1", ranf.TargetID)
	}
	assert.Contains(t, err.Error(), "role: r1")
	assert.Equal(t, http.StatusNotFound, GetErrorCode(err))
}

func TestGetErrorCode_Plain(t *testing.T) {
	assert.Equal(t, http.StatusOK, GetErrorCode(nil))
	assert.Equal(t, http.StatusInternalServerError, GetErrorCode(errors.New("x")))
}
