package google

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"event-sync/domain/model"
	"event-sync/domain/repository"
	"event-sync/infrastructure/configuration"
	"event-sync/infrastructure/logger"
	"event-sync/infrastructure/media"
	"event-sync/infrastructure/platform"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const platformKey = "google"

// Adapter mirrors local events into the owner's primary Google Calendar.
// Unlike Facebook there are no sub-accounts: the primary calendar is the
// publishing target and the refresh token is the long-lived credential.
type Adapter struct {
	oauthConfig *oauth2.Config
	secretKey   string
	store       repository.IPlatformConnection
	signer      *media.URLSigner

	// Extra client options, used by tests to point at a fake backend.
	clientOpts []option.ClientOption
}

func New(conf configuration.OAuthClient, secretKey string, store repository.IPlatformConnection, signer *media.URLSigner, opts ...option.ClientOption) *Adapter {
	return &Adapter{
		oauthConfig: &oauth2.Config{
			ClientID:     conf.ClientID,
			ClientSecret: conf.ClientSecret,
			RedirectURL:  conf.RedirectURI,
			Scopes:       []string{calendar.CalendarEventsScope, calendar.CalendarReadonlyScope},
			Endpoint:     googleoauth.Endpoint,
		},
		secretKey:  secretKey,
		store:      store,
		signer:     signer,
		clientOpts: opts,
	}
}

func (a *Adapter) Key() string { return platformKey }

func (a *Adapter) GetAuthorizationURL(_ context.Context, ownerID string) (string, error) {
	if a.oauthConfig.ClientID == "" || a.oauthConfig.RedirectURL == "" {
		return "", fmt.Errorf("google: oauth not configured")
	}
	state, err := platform.EncodeState(a.secretKey, ownerID, platformKey)
	if err != nil {
		return "", err
	}
	// Offline access + consent prompt so a refresh token is always issued.
	return a.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent")), nil
}

func (a *Adapter) ExchangeAuthorizationCode(ctx context.Context, code, ownerID string) (*model.PlatformConnection, error) {
	token, err := a.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google: code exchange: %w", err)
	}
	srv, err := a.serviceForToken(ctx, token)
	if err != nil {
		return nil, err
	}
	primary, err := srv.Calendars.Get("primary").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("google: fetch primary calendar: %w", err)
	}

	var expiresAt *time.Time
	if !token.Expiry.IsZero() {
		t := token.Expiry.UTC()
		expiresAt = &t
	}
	conn := &model.PlatformConnection{
		OwnerID:          ownerID,
		Platform:         platformKey,
		PlatformUserID:   primary.Id,
		PlatformUsername: &primary.Summary,
		AccessToken:      token.AccessToken,
		RefreshToken:     token.RefreshToken,
		TokenExpiresAt:   expiresAt,
		Metadata:         map[string]string{"calendar_id": "primary", "timezone": primary.TimeZone},
		IsActive:         true,
	}
	return a.store.Upsert(ctx, conn)
}

func (a *Adapter) ValidateConnection(ctx context.Context, conn *model.PlatformConnection) bool {
	srv, err := a.serviceForConnection(ctx, conn)
	if err != nil {
		return false
	}
	if _, err := srv.Calendars.Get("primary").Context(ctx).Do(); err != nil {
		logger.GetLogger().WithField("error", err).WithField("connection_id", conn.ID).Debug("google: connection validation failed")
		return false
	}
	return true
}

func (a *Adapter) CreateEvent(ctx context.Context, event *model.Event, conn *model.PlatformConnection) (string, error) {
	srv, err := a.serviceForConnection(ctx, conn)
	if err != nil {
		return "", err
	}
	created, err := srv.Events.Insert("primary", a.calendarEvent(event)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("google: create event: %w", err)
	}
	a.tryAttachCover(ctx, srv, created.Id, event)
	return created.Id, nil
}

func (a *Adapter) UpdateEvent(ctx context.Context, event *model.Event, conn *model.PlatformConnection) error {
	id, ok := event.PlatformID(platformKey)
	if !ok {
		return fmt.Errorf("google: event %d has no platform id", event.ID)
	}
	srv, err := a.serviceForConnection(ctx, conn)
	if err != nil {
		return err
	}
	if _, err := srv.Events.Patch("primary", id, a.calendarEvent(event)).Context(ctx).Do(); err != nil {
		return fmt.Errorf("google: update event: %w", err)
	}
	a.tryAttachCover(ctx, srv, id, event)
	return nil
}

func (a *Adapter) DeleteEvent(ctx context.Context, platformEventID string, conn *model.PlatformConnection) error {
	srv, err := a.serviceForConnection(ctx, conn)
	if err != nil {
		return err
	}
	err = srv.Events.Delete("primary", platformEventID).Context(ctx).Do()
	if err != nil {
		// 404/410: the remote event is already gone, which is the end state
		// we wanted.
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && (gerr.Code == 404 || gerr.Code == 410) {
			return nil
		}
		return fmt.Errorf("google: delete event: %w", err)
	}
	return nil
}

func (a *Adapter) UploadEventImage(ctx context.Context, platformEventID, imageRef string, conn *model.PlatformConnection) error {
	srv, err := a.serviceForConnection(ctx, conn)
	if err != nil {
		return err
	}
	return a.attachCover(ctx, srv, platformEventID, imageRef)
}

func (a *Adapter) attachCover(ctx context.Context, srv *calendar.Service, platformEventID, imageRef string) error {
	signedURL, err := a.signer.SignedURL(imageRef)
	if err != nil {
		return fmt.Errorf("google: sign image url: %w", err)
	}
	patch := &calendar.Event{
		Attachments: []*calendar.EventAttachment{{FileUrl: signedURL, Title: "cover"}},
	}
	_, err = srv.Events.Patch("primary", platformEventID, patch).SupportsAttachments(true).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("google: attach cover: %w", err)
	}
	return nil
}

func (a *Adapter) tryAttachCover(ctx context.Context, srv *calendar.Service, platformEventID string, event *model.Event) {
	if event.CoverImage == "" {
		return
	}
	if err := a.attachCover(ctx, srv, platformEventID, event.CoverImage); err != nil {
		logger.GetLogger().WithFields(map[string]interface{}{
			"event_id":          event.ID,
			"platform_event_id": platformEventID,
			"error":             err,
		}).Warn("google: cover attach failed")
	}
}

func (a *Adapter) calendarEvent(event *model.Event) *calendar.Event {
	deepLink := fmt.Sprintf("%s/events/%s", strings.TrimRight(configuration.C.App.BaseURL, "/"), event.Slug)
	description := event.Description
	if description != "" {
		description += "\n\n"
	}
	description += deepLink

	end := event.StartTime.Add(2 * time.Hour)
	if event.EndTime != nil {
		end = *event.EndTime
	}
	return &calendar.Event{
		Summary:     event.Name,
		Description: description,
		Location:    event.Location,
		Start:       &calendar.EventDateTime{DateTime: event.StartTime.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)},
	}
}

func (a *Adapter) serviceForConnection(ctx context.Context, conn *model.PlatformConnection) (*calendar.Service, error) {
	token := &oauth2.Token{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
	}
	if conn.TokenExpiresAt != nil {
		token.Expiry = *conn.TokenExpiresAt
	}
	return a.serviceForToken(ctx, token)
}

func (a *Adapter) serviceForToken(ctx context.Context, token *oauth2.Token) (*calendar.Service, error) {
	opts := append([]option.ClientOption{
		option.WithTokenSource(a.oauthConfig.TokenSource(ctx, token)),
	}, a.clientOpts...)
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google: calendar service: %w", err)
	}
	return srv, nil
}
