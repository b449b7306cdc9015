package clients

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vigilkey/vigil-backend/api"
	"github.com/vigilkey/vigil-backend/cryptoutils"
)

// GuardianKey identifies one guardian to distribute to: their Ed25519
// identity key and the X25519 key their share ciphertext is sealed to.
type GuardianKey struct {
	IdentityPubkey   string
	EncryptionPubkey string
}

// RecoveryClient talks to the recovery orchestrator API.
type RecoveryClient struct {
	// ServerAddr is the base URL of the Vigil server.
	ServerAddr string

	// HTTPClient defaults to http.DefaultClient when nil.
	HTTPClient *http.Client
}

func (c *RecoveryClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// DistributeSecret splits the secret into one share per guardian, seals each
// share to its guardian's encryption key, and submits the signed
// distribution.
func (c *RecoveryClient) DistributeSecret(priv ed25519.PrivateKey, senderPubkey string, secret []byte, threshold int, guardians []GuardianKey) (*api.DistributeResponse, error) {
	shares, err := cryptoutils.SplitSecret(secret, len(guardians), threshold)
	if err != nil {
		return nil, fmt.Errorf("splitting secret: %w", err)
	}

	entries := make([]api.GuardianEntry, len(guardians))
	for i, guardian := range guardians {
		sealed, err := cryptoutils.SealToPubkey(guardian.EncryptionPubkey, shares[i])
		if err != nil {
			return nil, fmt.Errorf("sealing share for guardian %s: %w", guardian.IdentityPubkey, err)
		}
		entries[i] = api.GuardianEntry{
			Pubkey:         guardian.IdentityPubkey,
			EncryptedShare: sealed,
			ShareIndex:     i,
		}
	}

	ts := time.Now().UnixMilli()
	request := api.DistributeRequest{
		SenderPubkey: senderPubkey,
		Threshold:    threshold,
		Guardians:    entries,
		Signature:    cryptoutils.SignRequest(priv, ts, cryptoutils.ActionRecoveryDistribute),
		Timestamp:    ts,
	}

	var response api.DistributeResponse
	if err := c.do(http.MethodPost, "/api/recovery/distribute", request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Guardians fetches the public configuration for an owner.
func (c *RecoveryClient) Guardians(ownerPubkey string) (*api.GuardiansResponse, error) {
	var response api.GuardiansResponse
	if err := c.do(http.MethodGet, "/api/recovery/guardians/"+ownerPubkey, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Guardianships lists the owners a guardian pubkey holds shares for.
func (c *RecoveryClient) Guardianships(guardianPubkey string) (*api.GuardianshipsResponse, error) {
	var response api.GuardianshipsResponse
	if err := c.do(http.MethodGet, "/api/recovery/guardianships/"+guardianPubkey, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// FetchShare retrieves the guardian's stored share ciphertext for an owner.
func (c *RecoveryClient) FetchShare(guardianPubkey, ownerPubkey string) (*api.ShareRecordResponse, error) {
	var response api.ShareRecordResponse
	if err := c.do(http.MethodGet, fmt.Sprintf("/api/recovery/share/%s/%s", guardianPubkey, ownerPubkey), nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// RequestSession opens a recovery session with a fresh ephemeral keypair and
// returns the session handle together with the ephemeral private key needed
// to open the released shares.
func (c *RecoveryClient) RequestSession(ownerPubkey string, requestedGuardians []string) (*api.RequestSessionResponse, string, *[32]byte, error) {
	ephemeralPub, ephemeralPriv, err := cryptoutils.GenerateBoxKeypair()
	if err != nil {
		return nil, "", nil, fmt.Errorf("generating ephemeral keypair: %w", err)
	}

	request := api.RequestSessionRequest{
		OwnerPubkey:        ownerPubkey,
		EphemeralPubkey:    ephemeralPub,
		RequestedGuardians: requestedGuardians,
	}

	var response api.RequestSessionResponse
	if err := c.do(http.MethodPost, "/api/recovery/request", request, &response); err != nil {
		return nil, "", nil, err
	}
	return &response, ephemeralPub, ephemeralPriv, nil
}

// SessionStatus polls a session's approval tally.
func (c *RecoveryClient) SessionStatus(sessionID string) (*api.SessionStatusResponse, error) {
	var response api.SessionStatusResponse
	if err := c.do(http.MethodGet, "/api/recovery/session/"+sessionID+"/status", nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Approve submits a guardian's approval. The caller re-encrypts their share
// to the session's ephemeral key first; ApproveWithReencryption does both
// steps.
func (c *RecoveryClient) Approve(priv ed25519.PrivateKey, guardianPubkey, sessionID, reEncryptedShare string) (*api.ApproveResponse, error) {
	ts := time.Now().UnixMilli()
	request := api.ApproveRequest{
		GuardianPubkey:   guardianPubkey,
		ReEncryptedShare: reEncryptedShare,
		Signature:        cryptoutils.SignRequest(priv, ts, cryptoutils.ActionRecoveryApprove, sessionID),
		Timestamp:        ts,
	}

	var response api.ApproveResponse
	if err := c.do(http.MethodPost, "/api/recovery/session/"+sessionID+"/approve", request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// ApproveWithReencryption fetches the guardian's stored share for the owner,
// opens it with the guardian's encryption keypair, seals it to the session's
// ephemeral key, and submits the signed approval.
func (c *RecoveryClient) ApproveWithReencryption(priv ed25519.PrivateKey, guardianPubkey, ownerPubkey, sessionID, ephemeralPubkey string, boxPub, boxPriv *[32]byte) (*api.ApproveResponse, error) {
	stored, err := c.FetchShare(guardianPubkey, ownerPubkey)
	if err != nil {
		return nil, fmt.Errorf("fetching stored share: %w", err)
	}

	share, err := cryptoutils.OpenSealed(stored.EncryptedShare, boxPub, boxPriv)
	if err != nil {
		return nil, fmt.Errorf("opening stored share: %w", err)
	}

	reEncrypted, err := cryptoutils.SealToPubkey(ephemeralPubkey, share)
	if err != nil {
		return nil, fmt.Errorf("re-encrypting share: %w", err)
	}

	return c.Approve(priv, guardianPubkey, sessionID, reEncrypted)
}

// FetchShares retrieves the released shares of a ready session.
func (c *RecoveryClient) FetchShares(sessionID string) (*api.SharesResponse, error) {
	var response api.SharesResponse
	if err := c.do(http.MethodGet, "/api/recovery/session/"+sessionID+"/shares", nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// RecoverSecret opens every released share with the session's ephemeral
// keypair and recombines them into the original secret.
func (c *RecoveryClient) RecoverSecret(sessionID string, ephemeralPub, ephemeralPriv *[32]byte) ([]byte, error) {
	released, err := c.FetchShares(sessionID)
	if err != nil {
		return nil, err
	}

	shares := make([][]byte, 0, len(released.Shares))
	for _, entry := range released.Shares {
		share, err := cryptoutils.OpenSealed(entry.ReEncryptedShare, ephemeralPub, ephemeralPriv)
		if err != nil {
			return nil, fmt.Errorf("opening share from %s: %w", entry.GuardianPubkey, err)
		}
		shares = append(shares, share)
	}

	secret, err := cryptoutils.CombineShares(shares)
	if err != nil {
		return nil, fmt.Errorf("combining shares: %w", err)
	}
	return secret, nil
}

// Revoke deletes the owner's configuration and shares.
func (c *RecoveryClient) Revoke(priv ed25519.PrivateKey, senderPubkey string) error {
	ts := time.Now().UnixMilli()
	request := api.RevokeRequest{
		SenderPubkey: senderPubkey,
		Signature:    cryptoutils.SignRequest(priv, ts, cryptoutils.ActionRecoveryRevoke),
		Timestamp:    ts,
	}

	var response api.SuccessResponse
	return c.do(http.MethodDelete, "/api/recovery/revoke", request, &response)
}

func (c *RecoveryClient) do(method, path string, body, into any) error {
	return doRequest(c.httpClient(), c.ServerAddr, method, path, nil, body, into)
}

// doRequest is the shared request helper for both clients.
func doRequest(client *http.Client, serverAddr, method, path string, headers map[string]string, body, into any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, serverAddr+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("could not reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	if into == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
