package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a9lim/shannon/internal/bus"
)

func TestEnvelopeToIncomingDirectMessage(t *testing.T) {
	raw := `{"envelope":{"source":"+15551234567","dataMessage":{"message":"hi there"}}}`
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))

	msg, ok := env.toIncoming()
	require.True(t, ok)
	assert.Equal(t, "signal", msg.Transport)
	assert.Equal(t, "+15551234567", msg.Channel)
	assert.Equal(t, "+15551234567", msg.UserID)
	assert.Equal(t, "hi there", msg.Content)
	assert.Empty(t, msg.GroupID)
}

func TestEnvelopeToIncomingGroupMessage(t *testing.T) {
	raw := `{"envelope":{"source":"+15551234567","dataMessage":{"message":"hello group","groupInfo":{"groupId":"grp123"}}}}`
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))

	msg, ok := env.toIncoming()
	require.True(t, ok)
	assert.Equal(t, "grp123", msg.Channel)
	assert.Equal(t, "grp123", msg.GroupID)
	assert.Equal(t, "+15551234567", msg.UserID)
}

func TestEnvelopeToIncomingNoDataMessageIsSkipped(t *testing.T) {
	raw := `{"envelope":{"source":"+15551234567"}}`
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))

	_, ok := env.toIncoming()
	assert.False(t, ok)
}

func TestEnvelopeToIncomingEmptyMessageIsSkipped(t *testing.T) {
	raw := `{"envelope":{"source":"+15551234567","dataMessage":{"message":""}}}`
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))

	_, ok := env.toIncoming()
	assert.False(t, ok)
}

func TestPollRESTOncePublishesIncoming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"envelope":{"source":"+15550001111","dataMessage":{"message":"rest hello"}}}]`))
	}))
	defer server.Close()

	b := bus.New(8)
	received := make(chan bus.IncomingMessage, 1)
	b.Subscribe(bus.KindMessageIncoming, func(ev bus.Event) {
		received <- ev.Payload.(bus.IncomingMessage)
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)
	defer b.Stop()

	tr := New(Config{PhoneNumber: "+15559999999", Mode: ModeREST, RESTAPIURL: server.URL}, b)
	require.NoError(t, tr.pollRESTOnce(context.Background()))

	select {
	case msg := <-received:
		assert.Equal(t, "rest hello", msg.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for incoming message")
	}
}

func TestSendRESTPostsExpectedBody(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tr := New(Config{PhoneNumber: "+15559999999", Mode: ModeREST, RESTAPIURL: server.URL}, bus.New(1))
	err := tr.sendREST(context.Background(), "+15550001111", "", "hello")
	require.NoError(t, err)
	assert.Equal(t, "/v2/send", gotPath)
}

func TestSendRESTNonOKStatusReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	tr := New(Config{PhoneNumber: "+1", Mode: ModeREST, RESTAPIURL: server.URL}, bus.New(1))
	err := tr.sendREST(context.Background(), "+1", "", "hi")
	assert.Error(t, err)
}

func TestSendCLIInvokesSignalCLIBinary(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "signal-cli")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nexit 0\n"), 0o755))

	tr := New(Config{PhoneNumber: "+1", SignalCLIPath: script}, bus.New(1))
	err := tr.sendCLI(context.Background(), "+15550001111", "", "hi")
	assert.NoError(t, err)
}

func TestSendCLINonZeroExitReturnsError(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "signal-cli")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho boom >&2\nexit 1\n"), 0o755))

	tr := New(Config{PhoneNumber: "+1", SignalCLIPath: script}, bus.New(1))
	err := tr.sendCLI(context.Background(), "+15550001111", "", "hi")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRunCLIReceiveOnceParsesJSONLines(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "signal-cli")
	content := "#!/bin/sh\n" +
		`echo '{"envelope":{"source":"+15550001111","dataMessage":{"message":"line one"}}}'` + "\n" +
		"echo 'not json'\n" +
		`echo '{"envelope":{"source":"+15550002222","dataMessage":{"message":"line two"}}}'` + "\n"
	require.NoError(t, os.WriteFile(script, []byte(content), 0o755))

	b := bus.New(8)
	var received []bus.IncomingMessage
	done := make(chan struct{})
	count := 0
	b.Subscribe(bus.KindMessageIncoming, func(ev bus.Event) {
		received = append(received, ev.Payload.(bus.IncomingMessage))
		count++
		if count == 2 {
			close(done)
		}
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)
	defer b.Stop()

	tr := New(Config{PhoneNumber: "+1", SignalCLIPath: script}, b)
	require.NoError(t, tr.runCLIReceiveOnce(context.Background()))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for both messages")
	}
	require.Len(t, received, 2)
	assert.Equal(t, "line one", received[0].Content)
	assert.Equal(t, "line two", received[1].Content)
}

func TestMinDuration(t *testing.T) {
	assert.Equal(t, 1*time.Second, minDuration(1*time.Second, 2*time.Second))
	assert.Equal(t, 1*time.Second, minDuration(2*time.Second, 1*time.Second))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 10))
	assert.Equal(t, "he", truncate("hello", 2))
}
