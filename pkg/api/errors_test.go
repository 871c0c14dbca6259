package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/llmcouncil/pkg/conversation"
	"github.com/codeready-toolchain/llmcouncil/pkg/council"
)

func TestMapServiceError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"not found", conversation.ErrNotFound, http.StatusNotFound},
		{"wrapped not found", errors.Join(errors.New("context"), conversation.ErrNotFound), http.StatusNotFound},
		{"no such user", conversation.ErrNoSuchUser, http.StatusNotFound},
		{"bad request", conversation.ErrBadRequest, http.StatusBadRequest},
		{"no members available", council.ErrNoMembersAvailable, http.StatusBadRequest},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			he := mapServiceError(tc.err)
			assert.Equal(t, tc.code, he.Code)
		})
	}
}
