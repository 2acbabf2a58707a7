package recognizer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type closingEngine struct {
	fakeEngine
	closed bool
}

func (c *closingEngine) Close() error {
	c.closed = true
	return nil
}

func engineProbe(engine Transcriber, err error, calls *int) func(context.Context) (Transcriber, error) {
	return func(context.Context) (Transcriber, error) {
		*calls++
		return engine, err
	}
}

func TestNegotiateTestModeUsesCanned(t *testing.T) {
	selection, err := Negotiate(context.Background(), Options{
		TestMode: true,
		TestText: "open youtube",
		Device:   func(context.Context) error { return errors.New("must not probe devices") },
	})
	require.NoError(t, err)
	require.Equal(t, Canned{Text: "open youtube"}, selection.Backend)
	require.Empty(t, selection.Reasons)
	require.NoError(t, selection.Close())
}

func TestNegotiatePrefersOfflineStreaming(t *testing.T) {
	var offlineCalls, remoteCalls int
	engine := &closingEngine{}
	selection, err := Negotiate(context.Background(), Options{
		Device:  func(context.Context) error { return nil },
		Offline: engineProbe(engine, nil, &offlineCalls),
		Remote:  engineProbe(&fakeEngine{}, nil, &remoteCalls),
	})
	require.NoError(t, err)
	require.IsType(t, &Streaming{}, selection.Backend)
	require.Equal(t, 1, offlineCalls)
	require.Zero(t, remoteCalls)

	require.NoError(t, selection.Close())
	require.True(t, engine.closed)
}

func TestNegotiateFallsBackToRemoteUtterance(t *testing.T) {
	var offlineCalls, remoteCalls int
	selection, err := Negotiate(context.Background(), Options{
		Device:  func(context.Context) error { return nil },
		Offline: engineProbe(nil, errors.New("model download failed"), &offlineCalls),
		Remote:  engineProbe(&fakeEngine{}, nil, &remoteCalls),
	})
	require.NoError(t, err)
	require.IsType(t, &Utterance{}, selection.Backend)
	require.Equal(t, "utterance", selection.Backend.Name())
	require.Len(t, selection.Reasons, 1)
	require.Contains(t, selection.Reasons[0], "model download failed")
	require.Equal(t, 1, remoteCalls)
}

func TestNegotiateNoBackend(t *testing.T) {
	deviceCalls := 0
	selection, err := Negotiate(context.Background(), Options{
		Device: func(context.Context) error {
			deviceCalls++
			return errors.New("no audio input devices found")
		},
		Offline: engineProbe(nil, nil, new(int)),
		Remote:  engineProbe(nil, nil, new(int)),
	})
	require.ErrorIs(t, err, ErrNoBackend)
	require.Nil(t, selection.Backend)
	require.Len(t, selection.Reasons, 2)
	require.Equal(t, 1, deviceCalls)
	require.Contains(t, err.Error(), "no audio input devices found")
}

func TestNegotiateUnconfiguredEngines(t *testing.T) {
	_, err := Negotiate(context.Background(), Options{})
	require.ErrorIs(t, err, ErrNoBackend)
	require.Contains(t, err.Error(), "engine not configured")
}

func TestNegotiateHonoursPreference(t *testing.T) {
	var offlineCalls, remoteCalls int
	selection, err := Negotiate(context.Background(), Options{
		Prefer:  "Utterance",
		Offline: engineProbe(&fakeEngine{}, nil, &offlineCalls),
		Remote:  engineProbe(&fakeEngine{}, nil, &remoteCalls),
	})
	require.NoError(t, err)
	require.IsType(t, &Utterance{}, selection.Backend)
	require.Zero(t, offlineCalls)

	_, err = Negotiate(context.Background(), Options{
		Prefer: PreferStreaming,
		Remote: engineProbe(&fakeEngine{}, nil, &remoteCalls),
	})
	require.ErrorIs(t, err, ErrNoBackend)
	require.Equal(t, 1, remoteCalls)

	_, err = Negotiate(context.Background(), Options{Prefer: "psychic"})
	require.ErrorContains(t, err, "unknown recognizer preference")
}
