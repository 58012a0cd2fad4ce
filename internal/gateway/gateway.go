// Package gateway is the authenticated HTTP capability that resolves
// track metadata, media URLs, and a user token — specified as opaque by
// the protocol/player layers, but given a concrete implementation here
// grounded on the upstream player's internal/api/client.go request/auth
// idiom and the original gateway.rs method surface (refresh, request,
// list_to_queue, user_token, flush_user_token).
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/halcyon-audio/spindle/internal/config"
	"github.com/halcyon-audio/spindle/internal/errs"
	"github.com/halcyon-audio/spindle/internal/httpx"
	"github.com/halcyon-audio/spindle/internal/logging"
	"github.com/halcyon-audio/spindle/internal/model"
)

// ErrTooManyDevices distinguishes the account-wide device-limit refusal
// from an ordinary gatekeeping-bit-off refusal; both surface as
// PermissionDenied, but the connect engine logs them differently.
var ErrTooManyDevices = errors.New("gateway: device limit reached")

// Gateway is the capability the connect engine and player depend on.
// Its only job is to turn ids into playable Tracks and to mint/refresh
// the user token the Connect engine authenticates with.
type Gateway interface {
	// UserToken returns a valid token, the account id it was issued to,
	// and its expiry, refreshing first if none is cached or the cached
	// one has expired.
	UserToken(ctx context.Context) (config.UserToken, model.User, time.Time, error)

	// FlushUserToken discards any cached token, forcing the next
	// UserToken call to refresh.
	FlushUserToken()

	// ListToQueue resolves a protobuf-decoded queue skeleton (track ids +
	// ordering only) into a Queue of fully populated Tracks.
	ListToQueue(ctx context.Context, skeleton *model.Queue) (*model.Queue, error)

	// ResolveMedia fills in MediaURL, NotBefore, and MediaExpiry for each
	// track, using licenseToken to authorize the media resolution
	// request. FileSize is left as it was.
	ResolveMedia(ctx context.Context, licenseToken string, tracks []*model.Track) error

	// RemoteControlAllowed reports the gatekeeping bit: false means
	// incoming Connect offers must be refused with PermissionDenied.
	RemoteControlAllowed(ctx context.Context) (bool, error)
}

// HTTPGateway is the concrete Gateway backed by the gw-light and media
// resolution endpoints.
type HTTPGateway struct {
	client   *httpx.Client
	host     string
	arl      config.ARL
	clientID string
	log      *logging.Logger

	mu          sync.Mutex
	apiToken    string
	userToken   config.UserToken
	userID      uint64
	tokenExpiry time.Time
}

// New builds an HTTPGateway against host, authenticating with arl.
func New(client *httpx.Client, host string, arl config.ARL, clientID string, log *logging.Logger) *HTTPGateway {
	return &HTTPGateway{client: client, host: host, arl: arl, clientID: clientID, log: log}
}

type gwLightEnvelope struct {
	Error   map[string]interface{} `json:"error"`
	Results json.RawMessage        `json:"results"`
}

// request issues one POST to the gw-light.php endpoint for method,
// matching the exact query shape in the wire protocol contract:
// method=<M>&input=3&api_version=1.0&api_token=<T>&cid=<client_id>,
// Content-Type text/plain despite a JSON body.
func (g *HTTPGateway) request(ctx context.Context, method string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errs.New(errs.InvalidArgument, "gateway: request", err)
	}

	g.mu.Lock()
	token := g.apiToken
	g.mu.Unlock()

	url := fmt.Sprintf("https://%s/ajax/gw-light.php?method=%s&input=3&api_version=1.0&api_token=%s&cid=%s",
		g.host, method, token, g.clientID)

	resp, err := g.client.PostRaw(ctx, url, "text/plain;charset=UTF-8", bytes.NewReader(payload))
	if err != nil {
		return errs.New(errs.Unavailable, "gateway: request", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.New(errs.Unavailable, "gateway: request", err)
	}

	var env gwLightEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return errs.New(errs.InvalidArgument, "gateway: request", err)
	}
	if len(env.Error) > 0 {
		return errs.New(errs.FailedPrecondition, "gateway: request", fmt.Errorf("gateway error: %v", env.Error))
	}
	if out != nil {
		if err := json.Unmarshal(env.Results, out); err != nil {
			return errs.New(errs.InvalidArgument, "gateway: request", err)
		}
	}
	return nil
}

type userTokenResult struct {
	UserID    uint64 `json:"USER,string"`
	UserToken string `json:"userToken"`
	ExpiresAt int64  `json:"checkForm"` // seconds-since-epoch expiry, per upstream token.rs semantics
}

// UserToken returns the cached token and account id, refreshing via
// user.getData if the cache is missing or expired.
func (g *HTTPGateway) UserToken(ctx context.Context) (config.UserToken, model.User, time.Time, error) {
	g.mu.Lock()
	valid := g.userToken != "" && time.Now().Before(g.tokenExpiry)
	if valid {
		token, expiry, userID := g.userToken, g.tokenExpiry, g.userID
		g.mu.Unlock()
		return token, model.UserID(userID), expiry, nil
	}
	g.mu.Unlock()

	var result userTokenResult
	if err := g.request(ctx, "user.getData", struct{}{}, &result); err != nil {
		return "", model.User{}, time.Time{}, err
	}

	token := config.UserToken(result.UserToken)
	if err := token.Validate(); err != nil {
		return "", model.User{}, time.Time{}, errs.New(errs.InvalidArgument, "gateway: user token", err)
	}

	expiry := time.Unix(result.ExpiresAt, 0)
	g.mu.Lock()
	g.userToken = token
	g.tokenExpiry = expiry
	g.userID = result.UserID
	g.mu.Unlock()
	return token, model.UserID(result.UserID), expiry, nil
}

// FlushUserToken discards the cached token.
func (g *HTTPGateway) FlushUserToken() {
	g.mu.Lock()
	g.userToken = ""
	g.tokenExpiry = time.Time{}
	g.mu.Unlock()
}

type trackListResult struct {
	Tracks []trackResult `json:"data"`
}

type trackResult struct {
	ID         int64   `json:"SNG_ID,string"`
	Title      string  `json:"SNG_TITLE"`
	Artist     string  `json:"ART_NAME"`
	Cover      string  `json:"ALB_PICTURE"`
	DurationS  int64   `json:"DURATION,string"`
	GainDB     *float32 `json:"GAIN,string"`
	TrackToken string  `json:"TRACK_TOKEN"`
}

// ListToQueue resolves each track id in the skeleton queue into a full
// Track via the catalog.getTracks method, preserving ordering/shuffle/
// repeat/position from the skeleton.
func (g *HTTPGateway) ListToQueue(ctx context.Context, skeleton *model.Queue) (*model.Queue, error) {
	ids := make([]int64, len(skeleton.Tracks))
	for i, t := range skeleton.Tracks {
		ids[i] = int64(t.ID)
	}

	var result trackListResult
	body := struct {
		SNGIDs []int64 `json:"sng_ids"`
	}{SNGIDs: ids}
	if err := g.request(ctx, "catalog.getTracks", body, &result); err != nil {
		return nil, err
	}

	tracks := make([]*model.Track, len(result.Tracks))
	for i, r := range result.Tracks {
		// A catalog entry with no duration is a livestream (§3's
		// invariant: livestreams always have cipher = None, no duration,
		// and are not seekable); every other entry is an ordinary song.
		kind := model.ContentSong
		cipher := model.CipherBlowfishCbcStripe
		duration := time.Duration(r.DurationS) * time.Second
		if r.DurationS <= 0 {
			kind = model.ContentLivestream
			cipher = model.CipherNone
			duration = 0
		}

		tracks[i] = &model.Track{
			ID:         model.TrackID(r.ID),
			Kind:       kind,
			Title:      r.Title,
			Artist:     r.Artist,
			Cover:      r.Cover,
			Duration:   duration,
			ReplayGain: r.GainDB,
			Cipher:     cipher,
			Token:      r.TrackToken,
		}
	}

	return &model.Queue{
		UUID:       skeleton.UUID,
		Tracks:     tracks,
		QueueOrder: skeleton.QueueOrder,
		Position:   skeleton.Position,
		Shuffle:    skeleton.Shuffle,
		Repeat:     skeleton.Repeat,
	}, nil
}

type mediaFormat struct {
	Cipher string `json:"cipher"`
	Format string `json:"format"`
}

type mediaRequestEntry struct {
	Type    string        `json:"type"`
	Formats []mediaFormat `json:"formats"`
}

type mediaRequest struct {
	LicenseToken string              `json:"license_token"`
	Media        []mediaRequestEntry `json:"media"`
	TrackTokens  []string            `json:"track_tokens"`
}

type mediaSource struct {
	URL string `json:"url"`
}

type mediaResponseEntry struct {
	Sources []mediaSource `json:"sources"`
}

type mediaResponse struct {
	Data []mediaResponseEntry `json:"data"`
}

// ResolveMedia POSTs the media resolution request shape specified for
// the wire protocol and fills in each track's MediaURL and NotBefore/
// MediaExpiry window; it does not set FileSize.
func (g *HTTPGateway) ResolveMedia(ctx context.Context, licenseToken string, tracks []*model.Track) error {
	tokens := make([]string, len(tracks))
	for i, t := range tracks {
		tokens[i] = t.Token
	}

	req := mediaRequest{
		LicenseToken: licenseToken,
		Media: []mediaRequestEntry{{
			Type:    "FULL",
			Formats: []mediaFormat{{Cipher: "BF_CBC_STRIPE", Format: "MP3_128"}},
		}},
		TrackTokens: tokens,
	}

	var resp mediaResponse
	if err := g.request(ctx, "media.getSources", req, &resp); err != nil {
		return err
	}

	now := time.Now()
	for i, entry := range resp.Data {
		if i >= len(tracks) || len(entry.Sources) == 0 {
			continue
		}
		tracks[i].MediaURL = entry.Sources[0].URL
		tracks[i].NotBefore = now
		tracks[i].MediaExpiry = now.Add(time.Hour)
	}
	return nil
}

type gatekeepResult struct {
	RemoteControl    bool `json:"remote_control"`
	DeviceLimitHit   bool `json:"device_limit_reached"`
}

// RemoteControlAllowed reports the gatekeeping bit from user data. A
// tripped device-limit bit is reported as a PermissionDenied error
// wrapping ErrTooManyDevices rather than through the bool return, since
// it refuses the exchange outright rather than merely disabling control.
func (g *HTTPGateway) RemoteControlAllowed(ctx context.Context) (bool, error) {
	var result gatekeepResult
	if err := g.request(ctx, "user.getData", struct{}{}, &result); err != nil {
		return false, err
	}
	if result.DeviceLimitHit {
		return false, errs.New(errs.PermissionDenied, "gateway: remote_control", ErrTooManyDevices)
	}
	return result.RemoteControl, nil
}
