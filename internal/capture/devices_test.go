package capture

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddallabenetta/meet-transcriber-v3/pkg/logger"
)

type fakeLister struct {
	devices []Device
	err     error
}

func (f *fakeLister) ListDevices(ctx context.Context) ([]Device, error) {
	return f.devices, f.err
}

func TestRegistryRefreshSelectsDefault(t *testing.T) {
	lister := &fakeLister{devices: []Device{
		{ID: "mic-a", Name: "Mic A", IsInput: true},
		{ID: "mic-b", Name: "Mic B", IsInput: true, IsDefault: true},
	}}
	reg := NewRegistry(lister, logger.NewNop())

	devices, err := reg.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, devices, 2)
	assert.Equal(t, "mic-b", reg.Selected())
}

func TestRegistryRefreshFallsBackToFirst(t *testing.T) {
	lister := &fakeLister{devices: []Device{
		{ID: "mic-a", Name: "Mic A", IsInput: true},
		{ID: "mic-b", Name: "Mic B", IsInput: true},
	}}
	reg := NewRegistry(lister, logger.NewNop())

	_, err := reg.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mic-a", reg.Selected())
}

func TestRegistryRefreshEmptyListSelectsNothing(t *testing.T) {
	reg := NewRegistry(&fakeLister{}, logger.NewNop())

	devices, err := reg.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, devices)
	assert.Equal(t, "", reg.Selected())
}

func TestRegistryExplicitSelectionSurvivesRefresh(t *testing.T) {
	lister := &fakeLister{devices: []Device{
		{ID: "mic-a", Name: "Mic A", IsInput: true, IsDefault: true},
	}}
	reg := NewRegistry(lister, logger.NewNop())

	reg.Select("mic-z")
	_, err := reg.Refresh(context.Background())
	require.NoError(t, err)

	// a stale selection is kept as-is, never validated against the list
	assert.Equal(t, "mic-z", reg.Selected())
}

func TestRegistryRefreshError(t *testing.T) {
	reg := NewRegistry(&fakeLister{err: errors.New("boom")}, logger.NewNop())

	_, err := reg.Refresh(context.Background())
	assert.Error(t, err)
	assert.Equal(t, "", reg.Selected())
}

func TestParseSources(t *testing.T) {
	out := []byte(`Auto-detected sources for pulse:
* alsa_input.pci-0000_00_1f.3.analog-stereo [Built-in Audio Analog Stereo]
  bluez_input.F4_73_35 [WH-1000XM4]
`)

	devices := parseSources(out)
	require.Len(t, devices, 2)

	assert.Equal(t, "alsa_input.pci-0000_00_1f.3.analog-stereo", devices[0].ID)
	assert.Equal(t, "Built-in Audio Analog Stereo", devices[0].Name)
	assert.True(t, devices[0].IsDefault)
	assert.True(t, devices[0].IsInput)

	assert.Equal(t, "bluez_input.F4_73_35", devices[1].ID)
	assert.Equal(t, "WH-1000XM4", devices[1].Name)
	assert.False(t, devices[1].IsDefault)
}

func TestParseSourcesEmpty(t *testing.T) {
	assert.Empty(t, parseSources([]byte("Auto-detected sources for pulse:\n")))
}
