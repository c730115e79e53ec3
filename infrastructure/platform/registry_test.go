package platform

import (
	"context"
	"testing"

	"event-sync/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct{ key string }

func (s *stubAdapter) Key() string { return s.key }
func (s *stubAdapter) GetAuthorizationURL(context.Context, string) (string, error) {
	return "", nil
}
func (s *stubAdapter) ExchangeAuthorizationCode(context.Context, string, string) (*model.PlatformConnection, error) {
	return nil, nil
}
func (s *stubAdapter) ValidateConnection(context.Context, *model.PlatformConnection) bool {
	return true
}
func (s *stubAdapter) CreateEvent(context.Context, *model.Event, *model.PlatformConnection) (string, error) {
	return "", nil
}
func (s *stubAdapter) UpdateEvent(context.Context, *model.Event, *model.PlatformConnection) error {
	return nil
}
func (s *stubAdapter) DeleteEvent(context.Context, string, *model.PlatformConnection) error {
	return nil
}
func (s *stubAdapter) UploadEventImage(context.Context, string, string, *model.PlatformConnection) error {
	return nil
}

func TestRegistry_ResolveIsCaseInsensitive(t *testing.T) {
	reg := NewRegistry(&stubAdapter{key: "Facebook"})

	a, err := reg.Resolve("facebook")
	require.NoError(t, err)
	assert.Equal(t, "Facebook", a.Key())

	a, err = reg.Resolve("FACEBOOK")
	require.NoError(t, err)
	assert.NotNil(t, a)
}

func TestRegistry_UnknownPlatform(t *testing.T) {
	reg := NewRegistry(&stubAdapter{key: "facebook"}, &stubAdapter{key: "google"})

	_, err := reg.Resolve("myspace")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported platform "myspace"`)
	assert.Contains(t, err.Error(), "facebook, google")
}

func TestRegistry_Keys(t *testing.T) {
	reg := NewRegistry(&stubAdapter{key: "google"}, &stubAdapter{key: "facebook"})
	assert.Equal(t, []string{"facebook", "google"}, reg.Keys())
}
