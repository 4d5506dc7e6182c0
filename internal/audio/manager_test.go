package audio

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager(nil, zerolog.Nop())
}

func TestStartAndStop(t *testing.T) {
	m := newTestManager()

	rec, err := m.Start(context.Background())
	require.NoError(t, err)

	chunk := []byte{1, 2, 3, 4}
	require.NoError(t, m.ProcessChunk(base64.StdEncoding.EncodeToString(chunk)))

	audio, err := rec.Stop()
	require.NoError(t, err)
	assert.Equal(t, chunk, audio)
}

func TestStartDeniedWithoutMicrophone(t *testing.T) {
	m := newTestManager()
	m.SetMicrophoneAvailable(false)

	_, err := m.Start(context.Background())
	require.ErrorIs(t, err, ErrPermissionDenied)

	m.SetMicrophoneAvailable(true)
	_, err = m.Start(context.Background())
	require.NoError(t, err)
}

func TestStartRejectsSecondCapture(t *testing.T) {
	m := newTestManager()

	rec, err := m.Start(context.Background())
	require.NoError(t, err)

	_, err = m.Start(context.Background())
	require.ErrorIs(t, err, ErrCaptureActive)

	// Stopping releases the device for the next capture
	_, err = rec.Stop()
	require.NoError(t, err)

	_, err = m.Start(context.Background())
	require.NoError(t, err)
}

func TestStopTwice(t *testing.T) {
	m := newTestManager()

	rec, err := m.Start(context.Background())
	require.NoError(t, err)

	_, err = rec.Stop()
	require.NoError(t, err)

	_, err = rec.Stop()
	require.ErrorIs(t, err, ErrNoRecording)
}

func TestProcessChunkAccumulates(t *testing.T) {
	m := newTestManager()

	rec, err := m.Start(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.ProcessChunk(base64.StdEncoding.EncodeToString([]byte("abc"))))
	require.NoError(t, m.ProcessChunk(base64.StdEncoding.EncodeToString([]byte("def"))))

	audio, err := rec.Stop()
	require.NoError(t, err)
	assert.Equal(t, []byte("abcdef"), audio)
}

func TestProcessChunkWithoutRecording(t *testing.T) {
	m := newTestManager()

	err := m.ProcessChunk(base64.StdEncoding.EncodeToString([]byte("abc")))
	require.ErrorIs(t, err, ErrNoRecording)
}

func TestProcessChunkRejectsBadBase64(t *testing.T) {
	m := newTestManager()

	_, err := m.Start(context.Background())
	require.NoError(t, err)

	err = m.ProcessChunk("not base64!!")
	require.Error(t, err)
}

func TestPlaybackLifecycle(t *testing.T) {
	m := newTestManager()

	payload := []byte("audio data")
	done, err := m.Play(context.Background(), payload)
	require.NoError(t, err)
	assert.True(t, m.IsPlaying())
	assert.Equal(t, payload, m.PendingPlayback())

	// A second Play while busy is rejected
	_, err = m.Play(context.Background(), []byte("other"))
	require.ErrorIs(t, err, ErrPlaybackActive)

	m.NotifyPlaybackFinished(nil)

	assert.NoError(t, <-done)
	assert.False(t, m.IsPlaying())
	assert.Nil(t, m.PendingPlayback())

	// The device is free again
	done2, err := m.Play(context.Background(), []byte("next"))
	require.NoError(t, err)
	m.NotifyPlaybackFinished(nil)
	assert.NoError(t, <-done2)
}

func TestPlaybackFailureDelivered(t *testing.T) {
	m := newTestManager()

	done, err := m.Play(context.Background(), []byte("audio"))
	require.NoError(t, err)

	deviceErr := errors.New("output device lost")
	m.NotifyPlaybackFinished(deviceErr)

	assert.ErrorIs(t, <-done, deviceErr)
	assert.False(t, m.IsPlaying())
}
