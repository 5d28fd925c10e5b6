package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bookbonus/bonus-backend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// approveReceipt runs a submission through manual approval and returns the
// minted access tokens.
func approveReceipt(t *testing.T, env *testEnv) []string {
	t.Helper()
	receiptID := submitAndGetReceiptID(t, env)
	w := postReview(t, env, receiptID, types.ReviewRequest{
		Action: types.ReviewActionApprove, ReviewerID: "reviewer-7",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	env.claims.mu.Lock()
	defer env.claims.mu.Unlock()
	var tokens []string
	for token := range env.claims.entitlements {
		tokens = append(tokens, token)
	}
	require.NotEmpty(t, tokens)
	return tokens
}

func TestBonusHandler_Redeem(t *testing.T) {
	env := newTestEnv(t)
	tokens := approveReceipt(t, env)

	req := httptest.NewRequest(http.MethodGet, "/v1/bonus/"+tokens[0], nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Slug        string `json:"slug"`
		DownloadURL string `json:"downloadUrl"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "bonus-chapter", resp.Slug)
	assert.NotEmpty(t, resp.DownloadURL)
}

func TestBonusHandler_Redeem_UnknownToken(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/bonus/not-a-real-token", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
