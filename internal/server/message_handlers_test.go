package server

import (
	"fmt"
	"net/http"
	"testing"

	"whisperchain/internal/crypto"
	"whisperchain/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCurrentRound(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.request(t, http.MethodGet, "/api/rounds/current", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.NotZero(t, body["round_id"])
	assert.Equal(t, float64(120), body["round_length"])
	assert.NotEmpty(t, body["round_start"])
	assert.NotEmpty(t, body["round_end"])
}

func TestGetMyToken(t *testing.T) {
	ts := setupTestServer(t)
	_, senderToken := ts.createApprovedUser(t, "sender1", models.RoleSender)
	_, receiverToken := ts.createApprovedUser(t, "receiver1", models.RoleReceiver)

	resp := ts.request(t, http.MethodGet, "/api/tokens/me", senderToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decodeBody(t, resp)
	assert.Len(t, first["token_hash"], 64)
	assert.Equal(t, true, first["is_new"])

	// Stable within the round.
	resp = ts.request(t, http.MethodGet, "/api/tokens/me", senderToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := decodeBody(t, resp)
	assert.Equal(t, first["token_hash"], second["token_hash"])
	assert.Equal(t, false, second["is_new"])

	// Receivers hold no tokens.
	resp = ts.request(t, http.MethodGet, "/api/tokens/me", receiverToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSendMessageFlow(t *testing.T) {
	ts := setupTestServer(t)
	_, senderToken := ts.createApprovedUser(t, "sender2", models.RoleSender)

	publicKey, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	recipient := &models.User{
		Username:   "receiver2",
		Role:       models.RoleReceiver,
		IsApproved: true,
		Status:     models.StatusApproved,
		PublicKey:  publicKey,
	}
	require.NoError(t, ts.db.Create(recipient).Error)
	recipientToken, err := ts.server.generateToken(recipient.ID, recipient.Username, recipient.Role)
	require.NoError(t, err)

	resp := ts.request(t, http.MethodPost, "/api/messages", senderToken, map[string]any{
		"recipient_id": recipient.ID,
		"payload":      "meet me at the docks",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sent := decodeBody(t, resp)
	require.NotEmpty(t, sent["message_id"])
	require.NotEmpty(t, sent["token_hash"])

	// Recipient sees the ciphertext, decrypts it with their own key, and the
	// row never carries the sender id.
	resp = ts.request(t, http.MethodGet, "/api/messages", recipientToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var inbox []map[string]any
	decodeJSONList(t, resp, &inbox)
	require.Len(t, inbox, 1)
	assert.Equal(t, sent["token_hash"], inbox[0]["token_hash"])
	assert.NotContains(t, inbox[0], "sender_id")

	plaintext, err := crypto.DecryptMessage(inbox[0]["encrypted_content"].(string), priv)
	require.NoError(t, err)
	assert.Equal(t, "meet me at the docks", plaintext)

	// Second send in the same round exhausts the token.
	resp = ts.request(t, http.MethodPost, "/api/messages", senderToken, map[string]any{
		"recipient_id": recipient.ID,
		"payload":      "one more thing",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Mark read and flag.
	msgID := sent["message_id"].(string)
	resp = ts.request(t, http.MethodPost, fmt.Sprintf("/api/messages/%s/read", msgID), recipientToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.request(t, http.MethodPost, fmt.Sprintf("/api/messages/%s/flag", msgID), recipientToken, map[string]string{
		"reason": "threatening",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	flagged := decodeBody(t, resp)
	assert.Equal(t, true, flagged["is_flagged"])
}

func TestSendMessageValidation(t *testing.T) {
	ts := setupTestServer(t)
	_, senderToken := ts.createApprovedUser(t, "sender3", models.RoleSender)

	resp := ts.request(t, http.MethodPost, "/api/messages", senderToken, map[string]any{
		"payload": "no recipient",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.request(t, http.MethodPost, "/api/messages", senderToken, map[string]any{
		"recipient_id": 424242,
		"payload":      "to nobody",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.request(t, http.MethodPost, "/api/messages", "", map[string]any{
		"recipient_id": 1,
		"payload":      "anonymous",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetRecipients(t *testing.T) {
	ts := setupTestServer(t)
	_, senderToken := ts.createApprovedUser(t, "sender4", models.RoleSender)
	ts.createApprovedUser(t, "receiver4", models.RoleReceiver)

	resp := ts.request(t, http.MethodGet, "/api/recipients", senderToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var recipients []map[string]any
	decodeJSONList(t, resp, &recipients)
	require.Len(t, recipients, 1)
	assert.Equal(t, "receiver4", recipients[0]["username"])
}

func TestDecryptMessageEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	_, senderToken := ts.createApprovedUser(t, "sender8", models.RoleSender)

	publicKey, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	protectedKey, err := crypto.ProtectPrivateKey(priv, "inbox-password")
	require.NoError(t, err)
	recipient := &models.User{
		Username:            "receiver8",
		Role:                models.RoleReceiver,
		IsApproved:          true,
		Status:              models.StatusApproved,
		PublicKey:           publicKey,
		EncryptedPrivateKey: protectedKey,
	}
	require.NoError(t, ts.db.Create(recipient).Error)
	recipientToken, err := ts.server.generateToken(recipient.ID, recipient.Username, recipient.Role)
	require.NoError(t, err)

	resp := ts.request(t, http.MethodPost, "/api/messages", senderToken, map[string]any{
		"recipient_id": recipient.ID,
		"payload":      "burn after reading",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	msgID := decodeBody(t, resp)["message_id"].(string)

	// Correct password yields the plaintext.
	resp = ts.request(t, http.MethodPost, fmt.Sprintf("/api/messages/%s/decrypt", msgID), recipientToken, map[string]string{
		"password": "inbox-password",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "burn after reading", decodeBody(t, resp)["content"])

	// Wrong password fails without leaking anything.
	resp = ts.request(t, http.MethodPost, fmt.Sprintf("/api/messages/%s/decrypt", msgID), recipientToken, map[string]string{
		"password": "wrong",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// The sender cannot decrypt a message addressed to someone else.
	resp = ts.request(t, http.MethodPost, fmt.Sprintf("/api/messages/%s/decrypt", msgID), senderToken, map[string]string{
		"password": "inbox-password",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
