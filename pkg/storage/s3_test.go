package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/png", ContentTypeFor("banner.PNG"))
	assert.Equal(t, "image/jpeg", ContentTypeFor("logo.jpeg"))
	assert.Equal(t, "", ContentTypeFor("clip.mp4"))
	assert.Equal(t, "", ContentTypeFor("noext"))
}

func TestOverlayKey(t *testing.T) {
	now := time.Unix(0, 1700000000000000000)
	assert.Equal(t, "overlays/42/1700000000000000000-banner.png", OverlayKey(42, "../../banner.png", now))
}
