package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pearcec/kioskstats/internal/event"
)

func TestCatalogRegisterAndResolve(t *testing.T) {
	c := New()
	assert.Equal(t, 0, c.Len())

	c.Register("init-begin", event.ModeInit)
	c.Register("tour-begin", event.ModeActive, "pano")

	d, ok := c.Resolve("tour-begin")
	require.True(t, ok)
	assert.Equal(t, event.ModeActive, d.Mode)
	assert.Equal(t, "pano", d.ParameterName())

	d, ok = c.Resolve("init-begin")
	require.True(t, ok)
	assert.Equal(t, "", d.ParameterName())
	assert.Empty(t, d.Parameters)

	_, ok = c.Resolve("nope")
	assert.False(t, ok)
}

func TestCatalogDuplicateOverwrites(t *testing.T) {
	c := New()
	c.Register("idle-begin", event.ModeIdle)
	c.Register("idle-begin", event.ModeActive, "x")

	d, ok := c.Resolve("idle-begin")
	require.True(t, ok)
	assert.Equal(t, event.ModeActive, d.Mode)
	assert.Equal(t, []string{"x"}, c.ParametersOf("idle-begin"))
	assert.Equal(t, 1, c.Len())
}

func TestCatalogIsSupported(t *testing.T) {
	c := New()
	c.Register("nav-tap", event.ModeActive)

	tests := []struct {
		name string
		want bool
	}{
		{"nav-tap", true},
		{"nav-tap ", false},
		{"", false},
		{"unknown", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.IsSupported(tt.name), "IsSupported(%q)", tt.name)
	}
}

func TestCatalogParametersOfIsDefensive(t *testing.T) {
	c := New()
	c.Register("media-play", event.ModeActive, "url")

	params := c.ParametersOf("media-play")
	params[0] = "changed"
	assert.Equal(t, []string{"url"}, c.ParametersOf("media-play"))

	unknown := c.ParametersOf("missing")
	assert.NotNil(t, unknown)
	assert.Empty(t, unknown)
}

func TestCatalogNamesSorted(t *testing.T) {
	c := New()
	c.Register("tour-end", event.ModeActive)
	c.Register("idle-begin", event.ModeIdle)
	c.Register("init-begin", event.ModeInit)

	assert.Equal(t, []string{"idle-begin", "init-begin", "tour-end"}, c.Names())
}

func TestCatalogLookup(t *testing.T) {
	c := New()
	c.Register("init-begin", event.ModeInit)

	_, err := c.Lookup("init-begin")
	assert.NoError(t, err)

	_, err = c.Lookup("bogus")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownEventType))
	assert.Contains(t, err.Error(), "bogus")
}
