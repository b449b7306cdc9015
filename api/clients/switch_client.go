package clients

import (
	"crypto/ed25519"
	"net/http"
	"time"

	"github.com/vigilkey/vigil-backend/api"
	"github.com/vigilkey/vigil-backend/cryptoutils"
	"github.com/vigilkey/vigil-backend/interfaces"
)

// SwitchClient talks to the dead-man's switch API.
type SwitchClient struct {
	// ServerAddr is the base URL of the Vigil server.
	ServerAddr string

	// CronSecret authenticates Process calls; only the sweep scheduler needs
	// it.
	CronSecret string

	// HTTPClient defaults to http.DefaultClient when nil.
	HTTPClient *http.Client
}

func (c *SwitchClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Create seals the message to the recipient's encryption key and arms a
// switch with the signed request.
func (c *SwitchClient) Create(priv ed25519.PrivateKey, senderPubkey, recipientUsername, recipientEncryptionKey string, message []byte, intervalHours int) (*api.CreateSwitchResponse, error) {
	sealed, err := cryptoutils.SealToPubkey(recipientEncryptionKey, message)
	if err != nil {
		return nil, err
	}

	ts := time.Now().UnixMilli()
	request := api.CreateSwitchRequest{
		RecipientUsername:    recipientUsername,
		EncryptedMessage:     sealed,
		CheckInIntervalHours: intervalHours,
		SenderPubkey:         senderPubkey,
		Signature:            cryptoutils.SignRequest(priv, ts, cryptoutils.ActionDMSCreate, recipientUsername),
		Timestamp:            ts,
	}

	var response api.CreateSwitchResponse
	if err := c.do(http.MethodPost, "/api/dms/create", nil, request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// CheckIn proves liveness and extends every active switch's deadline.
func (c *SwitchClient) CheckIn(priv ed25519.PrivateKey, senderPubkey string) (*api.CheckInResponse, error) {
	ts := time.Now().UnixMilli()
	request := api.CheckInRequest{
		SenderPubkey: senderPubkey,
		Signature:    cryptoutils.SignRequest(priv, ts, cryptoutils.ActionDMSCheckin),
		Timestamp:    ts,
	}

	var response api.CheckInResponse
	if err := c.do(http.MethodPost, "/api/dms/checkin", nil, request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// List fetches switch metadata for a pubkey.
func (c *SwitchClient) List(pubkey string) (*api.ListSwitchesResponse, error) {
	var response api.ListSwitchesResponse
	if err := c.do(http.MethodGet, "/api/dms/list/"+pubkey, nil, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Cancel disarms a switch.
func (c *SwitchClient) Cancel(priv ed25519.PrivateKey, senderPubkey, switchID string) error {
	ts := time.Now().UnixMilli()
	request := api.CancelSwitchRequest{
		SenderPubkey: senderPubkey,
		Signature:    cryptoutils.SignRequest(priv, ts, cryptoutils.ActionDMSCancel, switchID),
		Timestamp:    ts,
	}

	var response api.SuccessResponse
	return c.do(http.MethodDelete, "/api/dms/"+switchID, nil, request, &response)
}

// Process triggers one sweep run. Used by the cron caller.
func (c *SwitchClient) Process() (*interfaces.SweepResult, error) {
	var result interfaces.SweepResult
	headers := map[string]string{api.CronSecretHeader: c.CronSecret}
	if err := c.do(http.MethodPost, "/api/dms/process", headers, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FetchRelease pulls the released-message record for a triggered switch and
// returns it for the recipient to decrypt.
func (c *SwitchClient) FetchRelease(switchID string) (*interfaces.ReleaseRecord, error) {
	var record interfaces.ReleaseRecord
	if err := c.do(http.MethodGet, "/api/dms/release/"+switchID, nil, nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *SwitchClient) do(method, path string, headers map[string]string, body, into any) error {
	return doRequest(c.httpClient(), c.ServerAddr, method, path, headers, body, into)
}
