// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMountStdlib(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	mux := http.NewServeMux()
	MountStdlib(mux, "/webauthn", handler)

	rec := postJSON(t, mux, "/webauthn"+PathGenerateRegistrationOptions, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Wrong method reaches the handler's own check
	req := httptest.NewRequest(http.MethodGet, "/webauthn"+PathGenerateRegistrationOptions, nil)
	getRec := httptest.NewRecorder()
	mux.ServeHTTP(getRec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, getRec.Code)
}

func TestRoutes(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	routes := handler.Routes()
	require.Len(t, routes, 4)

	paths := make([]string, 0, len(routes))
	for _, route := range routes {
		assert.Equal(t, "POST", route.Method)
		assert.NotNil(t, route.Handler)
		paths = append(paths, route.Path)
	}
	assert.ElementsMatch(t, []string{
		PathGenerateRegistrationOptions,
		PathVerifyRegistration,
		PathGenerateAuthenticationOptions,
		PathVerifyAuthentication,
	}, paths)
}
