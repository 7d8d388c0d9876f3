package handlers_test

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-recordsdb/internal/fields"
	"github.com/localnerve/jam-build-recordsdb/internal/handlers"
	"github.com/localnerve/jam-build-recordsdb/internal/realtime"
	"github.com/localnerve/jam-build-recordsdb/tests/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveRealtime serves the realtime routes on a loopback listener
func serveRealtime(t *testing.T, e *helpers.Engine, keepAlive time.Duration) string {
	t.Helper()

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		DisableStartupMessage: true,
	})
	routes := &handlers.Routes{
		Collections: &handlers.CollectionsHandler{Collections: e.Collections},
		Records:     &handlers.RecordsHandler{Records: e.Records},
		Realtime:    &handlers.RealtimeHandler{Bus: e.Bus, Collections: e.Collections, KeepAlive: keepAlive},
	}
	routes.Register(app.Group("/api"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.ShutdownWithTimeout(time.Second) })

	return "http://" + ln.Addr().String()
}

func openStream(t *testing.T, ctx context.Context, url string) (*http.Response, *bufio.Reader) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	return resp, bufio.NewReader(resp.Body)
}

// readFrame reads one SSE frame, up to its blank line
func readFrame(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var lines []string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			if len(lines) == 0 {
				continue
			}
			return strings.Join(lines, "\n")
		}
		lines = append(lines, line)
	}
}

// readEvent skips keep-alive frames and returns the next event frame
func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		if frame := readFrame(t, r); !strings.HasPrefix(frame, ":") {
			return frame
		}
	}
}

func TestRealtimeStream(t *testing.T) {
	e := helpers.NewTestEngine(t)
	helpers.CreateTestCollection(t, e, "posts",
		helpers.Field("title", fields.Text, fields.Validation{}))
	base := serveRealtime(t, e, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, r := openStream(t, ctx, base+"/api/realtime/posts")

	connected := readFrame(t, r)
	assert.True(t, strings.HasPrefix(connected, "event: connected\n"), connected)
	assert.Contains(t, connected, `"collection":"posts"`)
	assert.Equal(t, 1, e.Bus.SubscriberCount("posts"))

	rec := helpers.CreateTestRecord(t, e, "posts", map[string]interface{}{"title": "first"})
	created := readEvent(t, r)
	assert.True(t, strings.HasPrefix(created, "event: "+realtime.RecordCreated+"\n"), created)
	assert.Contains(t, created, rec.ID)

	// idle streams get keep-alive comments
	assert.Equal(t, ": keep-alive", readFrame(t, r))

	// keep-alives leave the queue free for events
	for i := 0; i < realtime.DefaultBuffer+1; i++ {
		assert.Equal(t, ": keep-alive", readFrame(t, r))
	}
	helpers.CreateTestRecord(t, e, "posts", map[string]interface{}{"title": "second"})
	assert.Contains(t, readEvent(t, r), `"title":"second"`)

	// the subscription goes away with the client
	require.NoError(t, resp.Body.Close())
	cancel()
	assert.Eventually(t, func() bool {
		return e.Bus.SubscriberCount("posts") == 0
	}, 3*time.Second, 20*time.Millisecond)
}

func TestRealtimeStreamEndsWhenBusCloses(t *testing.T) {
	e := helpers.NewTestEngine(t)
	base := serveRealtime(t, e, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, r := openStream(t, ctx, base+"/api/realtime")
	defer resp.Body.Close()

	connected := readFrame(t, r)
	assert.True(t, strings.HasPrefix(connected, "event: connected\n"), connected)
	assert.Equal(t, 1, e.Bus.SubscriberCount(""))

	e.Bus.Close()

	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(string(rest)))
	assert.Equal(t, 0, e.Bus.SubscriberCount(""))
}
