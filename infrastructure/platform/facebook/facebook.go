package facebook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"event-sync/domain/model"
	"event-sync/domain/repository"
	"event-sync/infrastructure/configuration"
	"event-sync/infrastructure/logger"
	"event-sync/infrastructure/media"
	"event-sync/infrastructure/platform"

	"github.com/google/go-querystring/query"
)

const (
	platformKey      = "facebook"
	defaultGraphBase = "https://graph.facebook.com/v19.0"
	defaultAuthBase  = "https://www.facebook.com/v19.0"
	// Comma-separated raw list; Facebook expects the commas unescaped.
	oauthScopes = "pages_show_list,pages_read_engagement,pages_manage_posts,pages_manage_events,public_profile"
)

// Adapter publishes events to a Facebook page via the Graph API. The page
// access token obtained during the OAuth handshake is the credential used for
// all event calls.
type Adapter struct {
	conf       configuration.OAuthClient
	secretKey  string
	store      repository.IPlatformConnection
	signer     *media.URLSigner
	httpClient *http.Client

	// Overridable for tests.
	GraphBase string
	AuthBase  string
}

func New(conf configuration.OAuthClient, secretKey string, store repository.IPlatformConnection, signer *media.URLSigner) *Adapter {
	return &Adapter{
		conf:       conf,
		secretKey:  secretKey,
		store:      store,
		signer:     signer,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		GraphBase:  defaultGraphBase,
		AuthBase:   defaultAuthBase,
	}
}

func (a *Adapter) Key() string { return platformKey }

type authURLParams struct {
	ClientID    string `url:"client_id"`
	RedirectURI string `url:"redirect_uri"`
	State       string `url:"state"`
	Scope       string `url:"scope"`
}

func (a *Adapter) GetAuthorizationURL(_ context.Context, ownerID string) (string, error) {
	if a.conf.ClientID == "" || a.conf.RedirectURI == "" {
		return "", fmt.Errorf("facebook: oauth not configured")
	}
	state, err := platform.EncodeState(a.secretKey, ownerID, platformKey)
	if err != nil {
		return "", err
	}
	q, err := query.Values(authURLParams{
		ClientID:    a.conf.ClientID,
		RedirectURI: a.conf.RedirectURI,
		State:       state,
		Scope:       oauthScopes,
	})
	if err != nil {
		return "", fmt.Errorf("facebook: encode auth params: %w", err)
	}
	return fmt.Sprintf("%s/dialog/oauth?%s", a.AuthBase, q.Encode()), nil
}

type codeExchangeParams struct {
	ClientID     string `url:"client_id"`
	ClientSecret string `url:"client_secret"`
	RedirectURI  string `url:"redirect_uri"`
	Code         string `url:"code"`
}

type longLivedParams struct {
	GrantType       string `url:"grant_type"`
	ClientID        string `url:"client_id"`
	ClientSecret    string `url:"client_secret"`
	FBExchangeToken string `url:"fb_exchange_token"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ExchangeAuthorizationCode runs the full handshake: code -> short-lived user
// token -> long-lived user token -> page enumeration. The first page in the
// list is selected; an account managing no pages is an error. The page token
// (typically non-expiring) is what gets persisted.
func (a *Adapter) ExchangeAuthorizationCode(ctx context.Context, code, ownerID string) (*model.PlatformConnection, error) {
	q, _ := query.Values(codeExchangeParams{
		ClientID:     a.conf.ClientID,
		ClientSecret: a.conf.ClientSecret,
		RedirectURI:  a.conf.RedirectURI,
		Code:         code,
	})
	var short tokenResponse
	if err := a.getJSON(ctx, fmt.Sprintf("%s/oauth/access_token?%s", a.GraphBase, q.Encode()), &short); err != nil {
		return nil, fmt.Errorf("facebook: code exchange: %w", err)
	}

	q, _ = query.Values(longLivedParams{
		GrantType:       "fb_exchange_token",
		ClientID:        a.conf.ClientID,
		ClientSecret:    a.conf.ClientSecret,
		FBExchangeToken: short.AccessToken,
	})
	var long tokenResponse
	if err := a.getJSON(ctx, fmt.Sprintf("%s/oauth/access_token?%s", a.GraphBase, q.Encode()), &long); err != nil {
		return nil, fmt.Errorf("facebook: long-lived exchange: %w", err)
	}

	var me struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := a.getJSON(ctx, fmt.Sprintf("%s/me?access_token=%s", a.GraphBase, url.QueryEscape(long.AccessToken)), &me); err != nil {
		return nil, fmt.Errorf("facebook: fetch identity: %w", err)
	}

	var pages struct {
		Data []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := a.getJSON(ctx, fmt.Sprintf("%s/me/accounts?access_token=%s", a.GraphBase, url.QueryEscape(long.AccessToken)), &pages); err != nil {
		return nil, fmt.Errorf("facebook: fetch pages: %w", err)
	}
	if len(pages.Data) == 0 {
		return nil, fmt.Errorf("facebook: account %s manages no pages; a page is required to publish events", me.ID)
	}
	// Deterministic default: first page in the list.
	selected := pages.Data[0]

	var expiresAt *time.Time
	if long.ExpiresIn > 0 {
		t := time.Now().Add(time.Duration(long.ExpiresIn) * time.Second).UTC()
		expiresAt = &t
	}
	conn := &model.PlatformConnection{
		OwnerID:          ownerID,
		Platform:         platformKey,
		PlatformUserID:   me.ID,
		PlatformPageID:   &selected.ID,
		PlatformUsername: &me.Name,
		AccessToken:      selected.AccessToken,
		TokenExpiresAt:   expiresAt,
		Metadata:         map[string]string{"page_name": selected.Name, "scopes": oauthScopes},
		IsActive:         true,
	}
	return a.store.Upsert(ctx, conn)
}

// ValidateConnection fetches the token's own identity. Any failure, wire or
// API level, reports false; validation never mutates platform state.
func (a *Adapter) ValidateConnection(ctx context.Context, conn *model.PlatformConnection) bool {
	var me struct {
		ID string `json:"id"`
	}
	if err := a.getJSON(ctx, fmt.Sprintf("%s/me?access_token=%s", a.GraphBase, url.QueryEscape(conn.AccessToken)), &me); err != nil {
		logger.GetLogger().WithField("error", err).WithField("connection_id", conn.ID).Debug("facebook: connection validation failed")
		return false
	}
	return me.ID != ""
}

func (a *Adapter) CreateEvent(ctx context.Context, event *model.Event, conn *model.PlatformConnection) (string, error) {
	if conn.PlatformPageID == nil {
		return "", fmt.Errorf("facebook: connection %d has no page", conn.ID)
	}
	form := a.eventForm(event, conn)
	endpoint := fmt.Sprintf("%s/%s/events", a.GraphBase, url.PathEscape(*conn.PlatformPageID))
	body, err := a.postForm(ctx, endpoint, form)
	if err != nil {
		return "", fmt.Errorf("facebook: create event: %w", err)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.ID == "" {
		return "", fmt.Errorf("facebook: create event: unexpected response %s", string(body))
	}
	a.tryUploadCover(ctx, created.ID, event, conn)
	return created.ID, nil
}

func (a *Adapter) UpdateEvent(ctx context.Context, event *model.Event, conn *model.PlatformConnection) error {
	id, ok := event.PlatformID(platformKey)
	if !ok {
		return fmt.Errorf("facebook: event %d has no platform id", event.ID)
	}
	form := a.eventForm(event, conn)
	endpoint := fmt.Sprintf("%s/%s", a.GraphBase, url.PathEscape(id))
	if _, err := a.postForm(ctx, endpoint, form); err != nil {
		return fmt.Errorf("facebook: update event: %w", err)
	}
	a.tryUploadCover(ctx, id, event, conn)
	return nil
}

// DeleteEvent removes the remote event. A 404 means the end state, absence,
// is already achieved and counts as success.
func (a *Adapter) DeleteEvent(ctx context.Context, platformEventID string, conn *model.PlatformConnection) error {
	endpoint := fmt.Sprintf("%s/%s?access_token=%s", a.GraphBase, url.PathEscape(platformEventID), url.QueryEscape(conn.AccessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("facebook: delete event: %w", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("facebook: delete event: status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (a *Adapter) UploadEventImage(ctx context.Context, platformEventID, imageRef string, conn *model.PlatformConnection) error {
	signedURL, err := a.signer.SignedURL(imageRef)
	if err != nil {
		return fmt.Errorf("facebook: sign image url: %w", err)
	}
	form := url.Values{}
	form.Set("url", signedURL)
	form.Set("access_token", conn.AccessToken)
	endpoint := fmt.Sprintf("%s/%s/photos", a.GraphBase, url.PathEscape(platformEventID))
	if _, err := a.postForm(ctx, endpoint, form); err != nil {
		return fmt.Errorf("facebook: upload event image: %w", err)
	}
	return nil
}

// tryUploadCover is the best-effort image attach after create/update; its
// failure is logged and swallowed, never failing the parent operation.
func (a *Adapter) tryUploadCover(ctx context.Context, platformEventID string, event *model.Event, conn *model.PlatformConnection) {
	if event.CoverImage == "" {
		return
	}
	if err := a.UploadEventImage(ctx, platformEventID, event.CoverImage, conn); err != nil {
		logger.GetLogger().WithFields(map[string]interface{}{
			"event_id":          event.ID,
			"platform_event_id": platformEventID,
			"error":             err,
		}).Warn("facebook: cover image upload failed")
	}
}

func (a *Adapter) eventForm(event *model.Event, conn *model.PlatformConnection) url.Values {
	deepLink := fmt.Sprintf("%s/events/%s", strings.TrimRight(configuration.C.App.BaseURL, "/"), event.Slug)
	description := event.Description
	if description != "" {
		description += "\n\n"
	}
	description += deepLink

	form := url.Values{}
	form.Set("name", event.Name)
	form.Set("description", description)
	form.Set("start_time", event.StartTime.Format(time.RFC3339))
	if event.EndTime != nil {
		form.Set("end_time", event.EndTime.Format(time.RFC3339))
	}
	if event.Location != "" {
		form.Set("place", event.Location)
	}
	form.Set("access_token", conn.AccessToken)
	return form
}

func (a *Adapter) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (a *Adapter) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
