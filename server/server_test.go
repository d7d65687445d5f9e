package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LocoMH/wwtbam-server/auth"
	"github.com/LocoMH/wwtbam-server/client"
	"github.com/LocoMH/wwtbam-server/domain"
	"github.com/LocoMH/wwtbam-server/hub"
	"github.com/LocoMH/wwtbam-server/metrics"
	"github.com/LocoMH/wwtbam-server/protocol"
	ws "github.com/LocoMH/wwtbam-server/websocket"
)

var testTokens = map[domain.Role]string{
	domain.RoleController: "ctrl123",
	domain.RoleContestant: "cont123",
	domain.RoleHost:       "host123",
	domain.RoleTVScreen:   "tv123",
	domain.RoleAudience:   "aud123",
}

// recordingRelay remembers every role the handler registers.
type recordingRelay struct {
	*hub.Hub
	mu    sync.Mutex
	roles []domain.Role
}

func (r *recordingRelay) Register(conn domain.Connection, role domain.Role) {
	r.mu.Lock()
	r.roles = append(r.roles, role)
	r.mu.Unlock()
	r.Hub.Register(conn, role)
}

func (r *recordingRelay) registered() []domain.Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Role(nil), r.roles...)
}

type testEnv struct {
	hub    *hub.Hub
	relay  *recordingRelay
	server *Server
	url    string
	http   string
}

func newTestEnv(t *testing.T, policy protocol.Policy) *testEnv {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := metrics.NewRelay(reg)
	h := hub.New(m)
	relay := &recordingRelay{Hub: h}
	handler := protocol.NewHandler(relay, auth.New(testTokens), policy, m)
	s := New(Config{Path: "/", ShutdownTimeout: time.Second, Conn: ws.DefaultOptions()}, h, handler, m, reg)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return &testEnv{
		hub:    h,
		relay:  relay,
		server: s,
		url:    "ws" + strings.TrimPrefix(srv.URL, "http") + "/",
		http:   srv.URL,
	}
}

func (e *testEnv) dial(t *testing.T, role domain.Role, token string) *client.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c, err := client.Dial(ctx, e.url, string(role), token)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// join dials as role and waits until the hub has registered n clients for it.
func (e *testEnv) join(t *testing.T, role domain.Role, n int) *client.Client {
	t.Helper()
	c := e.dial(t, role, testTokens[role])
	require.Eventually(t, func() bool {
		return e.hub.Stats()[role] == n
	}, time.Second, 5*time.Millisecond, "waiting for %s", role)
	return c
}

func receive(t *testing.T, c *client.Client) client.Reply {
	t.Helper()
	r, err := c.Receive(time.Now().Add(time.Second))
	require.NoError(t, err)
	return r
}

func assertSilent(t *testing.T, c *client.Client) {
	t.Helper()
	_, err := c.Receive(time.Now().Add(100 * time.Millisecond))
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestServer_ExampleScenario(t *testing.T) {
	env := newTestEnv(t, protocol.Policy{CloseOnAuthFailure: true})
	controller := env.join(t, domain.RoleController, 1)
	host := env.join(t, domain.RoleHost, 1)
	tv := env.join(t, domain.RoleTVScreen, 1)
	contestant := env.join(t, domain.RoleContestant, 1)

	require.NoError(t, controller.Send([]string{"host", "tvscreen"}, json.RawMessage(`["setCurrentLevel",5]`)))

	for _, c := range []*client.Client{host, tv} {
		r := receive(t, c)
		assert.Equal(t, "message", r.Type)
		assert.JSONEq(t, `["setCurrentLevel",5]`, string(r.Message))
	}
	assertSilent(t, contestant)
	assertSilent(t, controller)
}

func TestServer_BroadcastPreservesOrder(t *testing.T) {
	env := newTestEnv(t, protocol.Policy{CloseOnAuthFailure: true})
	controller := env.join(t, domain.RoleController, 1)
	audience := env.join(t, domain.RoleAudience, 1)

	for i := 0; i < 20; i++ {
		require.NoError(t, controller.Send(nil, i))
	}

	for i := 0; i < 20; i++ {
		r := receive(t, audience)
		assert.JSONEq(t, string(mustJSON(t, i)), string(r.Message))
	}
	for i := 0; i < 20; i++ {
		r := receive(t, controller)
		assert.JSONEq(t, string(mustJSON(t, i)), string(r.Message))
	}
}

func TestServer_HandshakeFailureClosesConnection(t *testing.T) {
	env := newTestEnv(t, protocol.Policy{CloseOnAuthFailure: true})
	c := env.dial(t, domain.RoleHost, "wrong")

	r := receive(t, c)
	assert.Equal(t, "Invalid token", r.Error)

	_, err := c.Receive(time.Now().Add(time.Second))
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	assert.Equal(t, 0, env.hub.Stats()[domain.RoleHost])
}

func TestServer_HandshakeAfterRejectionIsIgnored(t *testing.T) {
	env := newTestEnv(t, protocol.Policy{CloseOnAuthFailure: true})

	for i := 0; i < 20; i++ {
		c := env.dial(t, domain.RoleHost, "wrong")
		require.NoError(t, c.Handshake("host", "host123"))

		r := receive(t, c)
		assert.Equal(t, "Invalid token", r.Error)

		_, err := c.Receive(time.Now().Add(time.Second))
		assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	}

	assert.Empty(t, env.relay.registered())
	assert.Equal(t, 0, env.hub.Stats()[domain.RoleHost])
}

func TestServer_BroadcastSkipsPendingPeer(t *testing.T) {
	env := newTestEnv(t, protocol.Policy{CloseOnAuthFailure: false})

	pending := env.dial(t, domain.RoleHost, "wrong")
	r := receive(t, pending)
	assert.Equal(t, "Invalid token", r.Error)

	members := make(map[domain.Role]*client.Client)
	for _, role := range domain.Roles() {
		members[role] = env.join(t, role, 1)
	}

	controller := members[domain.RoleController]
	require.NoError(t, controller.Send(nil, "everyone"))

	for role, c := range members {
		r := receive(t, c)
		assert.Equal(t, "message", r.Type, "role %s", role)
		assert.JSONEq(t, `"everyone"`, string(r.Message), "role %s", role)
	}
	assertSilent(t, pending)
}

func TestServer_HandshakeRetry(t *testing.T) {
	env := newTestEnv(t, protocol.Policy{CloseOnAuthFailure: false})
	c := env.dial(t, "judge", "x")

	r := receive(t, c)
	assert.Equal(t, "Unknown role", r.Error)

	require.NoError(t, c.Handshake("audience", "aud123"))
	require.Eventually(t, func() bool {
		return env.hub.Stats()[domain.RoleAudience] == 1
	}, time.Second, 5*time.Millisecond)
}

func TestServer_UnregisterOnDisconnect(t *testing.T) {
	env := newTestEnv(t, protocol.Policy{CloseOnAuthFailure: true})
	host := env.join(t, domain.RoleHost, 1)

	require.NoError(t, host.Close())

	assert.Eventually(t, func() bool {
		return env.hub.Stats()[domain.RoleHost] == 0
	}, time.Second, 5*time.Millisecond)
}

func TestServer_Reassignment(t *testing.T) {
	env := newTestEnv(t, protocol.Policy{CloseOnAuthFailure: true})
	controller := env.join(t, domain.RoleController, 1)
	mover := env.join(t, domain.RoleAudience, 1)

	require.NoError(t, mover.Handshake("host", "host123"))
	require.Eventually(t, func() bool {
		stats := env.hub.Stats()
		return stats[domain.RoleHost] == 1 && stats[domain.RoleAudience] == 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, controller.Send([]string{"audience"}, "for audience"))
	require.NoError(t, controller.Send([]string{"host"}, "for host"))

	r := receive(t, mover)
	assert.JSONEq(t, `"for host"`, string(r.Message))
}

func TestServer_AuthorizationGate(t *testing.T) {
	env := newTestEnv(t, protocol.Policy{CloseOnAuthFailure: true})
	host := env.join(t, domain.RoleHost, 1)
	tv := env.join(t, domain.RoleTVScreen, 1)

	require.NoError(t, host.Send([]string{"tvscreen"}, "spoof"))

	r := receive(t, host)
	assert.Equal(t, "Only controllers can send messages", r.Error)
	assertSilent(t, tv)
}

func TestServer_MalformedInputResilience(t *testing.T) {
	env := newTestEnv(t, protocol.Policy{CloseOnAuthFailure: true})
	controller := env.join(t, domain.RoleController, 1)
	host := env.join(t, domain.RoleHost, 1)

	require.NoError(t, controller.SendRaw([]byte("this is not json")))
	r := receive(t, controller)
	assert.Equal(t, "Invalid JSON", r.Error)

	require.NoError(t, controller.Send([]string{"host"}, []any{"login", "A"}))
	r = receive(t, host)
	assert.JSONEq(t, `["login","A"]`, string(r.Message))
}

func TestServer_HealthAndStats(t *testing.T) {
	env := newTestEnv(t, protocol.Policy{CloseOnAuthFailure: true})
	env.join(t, domain.RoleHost, 1)
	env.join(t, domain.RoleHost, 2)
	env.join(t, domain.RoleAudience, 1)

	resp, err := http.Get(env.http + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(env.http + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	var stats map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 2, stats["host"])
	assert.Equal(t, 1, stats["audience"])
	assert.Equal(t, 0, stats["controller"])
	assert.Equal(t, 3, stats["clients"])
}

func TestServer_Metrics(t *testing.T) {
	env := newTestEnv(t, protocol.Policy{CloseOnAuthFailure: true})
	env.join(t, domain.RoleTVScreen, 1)

	resp, err := http.Get(env.http + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `wwtbam_registry_connections{role="tvscreen"} 1`)
	assert.Contains(t, string(body), "wwtbam_websocket_open_connections 1")
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	h := hub.New(nil)
	handler := protocol.NewHandler(h, auth.New(testTokens), protocol.Policy{}, nil)
	s := New(Config{Path: "/", ShutdownTimeout: time.Second, Conn: ws.DefaultOptions()}, h, handler, nil, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	url := "ws://" + ln.Addr().String() + "/"
	var host *client.Client
	require.Eventually(t, func() bool {
		c, err := client.Dial(context.Background(), url, "host", "host123")
		if err != nil {
			return false
		}
		host = c
		return true
	}, time.Second, 10*time.Millisecond)
	t.Cleanup(func() { host.Close() })
	require.Eventually(t, func() bool {
		return h.Stats()[domain.RoleHost] == 1
	}, time.Second, 5*time.Millisecond)

	pending, err := client.Dial(context.Background(), url, "host", "wrong")
	require.NoError(t, err)
	t.Cleanup(func() { pending.Close() })
	r, err := pending.Receive(time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "Invalid token", r.Error)

	closed := make(chan error, 2)
	for _, c := range []*client.Client{host, pending} {
		c := c
		go func() {
			_, err := c.Receive(time.Now().Add(2 * time.Second))
			closed <- err
		}()
	}

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}

	for i := 0; i < 2; i++ {
		err := <-closed
		assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	}
	assert.Equal(t, 0, h.Stats()[domain.RoleHost])
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
