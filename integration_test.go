package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap/zaptest"

	"gallery-server/locomotion"
)

// ---------- helpers ----------

type testServer struct {
	srv   *httptest.Server
	wsURL string
	hub   *Hub
}

// startTestServer spins up an httptest.Server with a Hub backed by a temp
// database. Everything is torn down through t.Cleanup.
func startTestServer(t *testing.T) *testServer {
	t.Helper()

	// Create a temp client dir with a minimal index.html
	tmpDir := t.TempDir()
	jsDir := filepath.Join(tmpDir, "js")
	require.NoError(t, os.MkdirAll(jsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte("<html>test</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(jsDir, "main.js"), []byte("// test"), 0o644))

	db := openTestDB(t)
	analytics := NewAnalytics(db)
	auth := NewAuth(db, testAdmin(t), time.Hour)
	sessions := NewSessionManager(DefaultLayout(), locomotion.DefaultParams(), 4, db, analytics, zaptest.NewLogger(t))

	hub := NewHub(sessions, auth, analytics, "http://gallery.test")
	go hub.Run()

	srv := httptest.NewServer(SetupRoutes(hub, tmpDir))
	t.Cleanup(func() {
		srv.Close()
		hub.Stop()
		analytics.Stop()
	})

	return &testServer{
		srv:   srv,
		wsURL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		hub:   hub,
	}
}

// adminRequest performs an operator API call with valid credentials.
func (ts *testServer) adminRequest(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, rd)
	require.NoError(t, err)
	req.SetBasicAuth("curator", "hunter22")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// createSession asks the operator API for a new session.
func (ts *testServer) createSession(t *testing.T) createSessionResp {
	t.Helper()
	resp := ts.adminRequest(t, http.MethodPost, "/api/sessions", createSessionReq{Name: "Tour"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out createSessionResp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// dialWS opens a WebSocket connection to the test server.
func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "dial WS")
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEnvelope reads one JSON message from the WebSocket.
func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, raw, err := conn.ReadMessage()
	require.NoError(t, err, "read WS")
	// Binary messages are msgpack-encoded rigs
	if msgType == websocket.BinaryMessage {
		var rig RigMsg
		require.NoError(t, msgpack.Unmarshal(raw, &rig))
		return Envelope{T: MsgRig, Data: rig}
	}
	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

// sendMsg sends a typed message over the WebSocket.
func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()
	raw, err := json.Marshal(Envelope{T: msgType, Data: data})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw), "write WS")
}

// decodeData re-decodes an envelope payload into out.
func decodeData(t *testing.T, env Envelope, out any) {
	t.Helper()
	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

// pair creates a session and joins it over a fresh link.
func (ts *testServer) pair(t *testing.T, binary bool) (*websocket.Conn, createSessionResp, WelcomeMsg) {
	t.Helper()
	created := ts.createSession(t)
	conn := dialWS(t, ts.wsURL)
	sendMsg(t, conn, MsgJoin, JoinMsg{SessionID: created.SessionID, Token: created.Token, Binary: binary})
	env := readEnvelope(t, conn)
	require.Equal(t, MsgWelcome, env.T)
	var welcome WelcomeMsg
	decodeData(t, env, &welcome)
	return conn, created, welcome
}

func walkFrame() FrameMsg {
	return FrameMsg{
		DT: 1.0 / 60,
		Inputs: []InputMsg{{
			Slot: 1,
			Fwd:  [3]float64{0, 0, 1},
			Axes: []float64{0, 0, 0, -1},
		}},
	}
}

// ---------- HTTP ----------

func TestHealthz(t *testing.T) {
	ts := startTestServer(t)
	resp, err := http.Get(ts.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["ok"])
}

func TestStaticRootServesIndex(t *testing.T) {
	ts := startTestServer(t)
	resp, err := http.Get(ts.srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "<html>test</html>")
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
}

func TestAdminRequiresCredentials(t *testing.T) {
	ts := startTestServer(t)

	resp, err := http.Post(ts.srv.URL+"/api/sessions", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, ts.srv.URL+"/api/sessions", nil)
	req.SetBasicAuth("curator", "wrong")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateAndListSessions(t *testing.T) {
	ts := startTestServer(t)
	created := ts.createSession(t)

	assert.True(t, ValidSessionID(created.SessionID))
	assert.NotEmpty(t, created.Token)
	assert.True(t, strings.HasPrefix(created.PairURL, "http://gallery.test/?"))
	assert.Contains(t, created.PairURL, "sid="+created.SessionID)

	resp := ts.adminRequest(t, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []SessionInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, created.SessionID, list[0].ID)
	assert.Equal(t, "Tour", list[0].Name)
	assert.False(t, list[0].Paired)
}

func TestSessionLimit(t *testing.T) {
	ts := startTestServer(t)
	for i := 0; i < 4; i++ {
		ts.createSession(t)
	}
	resp := ts.adminRequest(t, http.MethodPost, "/api/sessions", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestDeleteSession(t *testing.T) {
	ts := startTestServer(t)
	created := ts.createSession(t)

	resp := ts.adminRequest(t, http.MethodDelete, "/api/sessions/"+created.SessionID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = ts.adminRequest(t, http.MethodDelete, "/api/sessions/"+created.SessionID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPairQRCode(t *testing.T) {
	ts := startTestServer(t)
	created := ts.createSession(t)

	resp := ts.adminRequest(t, http.MethodGet, "/api/sessions/"+created.SessionID+"/pair.png", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("\x89PNG\r\n\x1a\n")))

	resp = ts.adminRequest(t, http.MethodGet, "/api/sessions/"+GenerateUUID()+"/pair.png", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = ts.adminRequest(t, http.MethodGet, "/api/sessions/not-a-session/pair.png", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnalyticsEndpoint(t *testing.T) {
	ts := startTestServer(t)

	resp := ts.adminRequest(t, http.MethodGet, "/api/analytics?days=30", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.EqualValues(t, 30, body["days"])
	assert.Contains(t, body, "sessions")

	resp = ts.adminRequest(t, http.MethodGet, "/api/analytics?days=999", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// ---------- headset link ----------

func TestMessageBeforeJoin(t *testing.T) {
	ts := startTestServer(t)
	conn := dialWS(t, ts.wsURL)

	sendMsg(t, conn, MsgFrame, walkFrame())
	env := readEnvelope(t, conn)
	require.Equal(t, MsgError, env.T)
	var e ErrorMsg
	decodeData(t, env, &e)
	assert.Equal(t, "not joined", e.Msg)
}

func TestJoinRejectsBadToken(t *testing.T) {
	ts := startTestServer(t)
	created := ts.createSession(t)
	other := ts.createSession(t)
	conn := dialWS(t, ts.wsURL)

	sendMsg(t, conn, MsgJoin, JoinMsg{SessionID: created.SessionID, Token: "garbage"})
	env := readEnvelope(t, conn)
	require.Equal(t, MsgError, env.T)

	// a token for one session does not open another
	sendMsg(t, conn, MsgJoin, JoinMsg{SessionID: created.SessionID, Token: other.Token})
	env = readEnvelope(t, conn)
	require.Equal(t, MsgError, env.T)
	var e ErrorMsg
	decodeData(t, env, &e)
	assert.Equal(t, ErrInvalidToken.Error(), e.Msg)

	sendMsg(t, conn, MsgJoin, JoinMsg{SessionID: GenerateUUID(), Token: created.Token})
	env = readEnvelope(t, conn)
	decodeData(t, env, &e)
	assert.Equal(t, ErrSessionNotFound.Error(), e.Msg)
}

func TestJoinWelcome(t *testing.T) {
	ts := startTestServer(t)
	_, created, welcome := ts.pair(t, false)

	assert.Equal(t, created.SessionID, welcome.SessionID)
	assert.Equal(t, "gallery", welcome.Room.Name)
	assert.Equal(t, [4]float64{-3.5, 3.5, -3.5, 3.5}, welcome.Room.Bounds)
	require.NotNil(t, welcome.Room.Bench)
	assert.Equal(t, [3]float64{0, 0.5, 0}, welcome.Rig.Pos)
	assert.Equal(t, "idle", welcome.Rig.Phase)

	sess, err := ts.hub.sessions.GetSession(created.SessionID)
	require.NoError(t, err)
	assert.True(t, sess.Info().Paired)
	assert.True(t, sess.Info().Running)
}

func TestFrameMovesRig(t *testing.T) {
	ts := startTestServer(t)
	conn, created, welcome := ts.pair(t, false)

	sendMsg(t, conn, MsgConnected, ConnectedMsg{Slot: 1, Hand: "right"})

	var rig RigMsg
	for i := 0; i < 30; i++ {
		sendMsg(t, conn, MsgFrame, walkFrame())
		env := readEnvelope(t, conn)
		require.Equal(t, MsgRig, env.T)
		decodeData(t, env, &rig)
	}
	moved := rig.Pos[2] - welcome.Rig.Pos[2]
	assert.Greater(t, moved*moved+(rig.Pos[0]-welcome.Rig.Pos[0])*(rig.Pos[0]-welcome.Rig.Pos[0]), 0.01,
		"rig walked along the look direction")
	assert.Equal(t, welcome.Rig.Pos[1], rig.Pos[1], "height is untouched by walking")

	sess, err := ts.hub.sessions.GetSession(created.SessionID)
	require.NoError(t, err)
	assert.EqualValues(t, 30, sess.Info().Frames)
	assert.EqualValues(t, 1, sess.Metrics.Controllers.Load())
}

func TestBinaryRig(t *testing.T) {
	ts := startTestServer(t)
	conn, _, _ := ts.pair(t, true)

	sendMsg(t, conn, MsgFrame, FrameMsg{DT: 1.0 / 60})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, msgType)

	var rig RigMsg
	require.NoError(t, msgpack.Unmarshal(raw, &rig))
	assert.Equal(t, [3]float64{0, 0.5, 0}, rig.Pos)
	assert.Equal(t, "idle", rig.Phase)
}

func TestSecondHeadsetRejected(t *testing.T) {
	ts := startTestServer(t)
	_, created, _ := ts.pair(t, false)

	other := dialWS(t, ts.wsURL)
	sendMsg(t, other, MsgJoin, JoinMsg{SessionID: created.SessionID, Token: created.Token})
	env := readEnvelope(t, other)
	require.Equal(t, MsgError, env.T)
	var e ErrorMsg
	decodeData(t, env, &e)
	assert.Equal(t, ErrAlreadyPaired.Error(), e.Msg)
}

func TestEndAndRestart(t *testing.T) {
	ts := startTestServer(t)
	conn, created, _ := ts.pair(t, false)

	for i := 0; i < 3; i++ {
		sendMsg(t, conn, MsgFrame, FrameMsg{DT: 0.05})
		readEnvelope(t, conn)
	}
	sendMsg(t, conn, MsgEnd, nil)
	env := readEnvelope(t, conn)
	require.Equal(t, MsgEnded, env.T)
	var ended EndedMsg
	decodeData(t, env, &ended)
	assert.InDelta(t, 0.15, ended.Elapsed, 1e-9)

	sess, err := ts.hub.sessions.GetSession(created.SessionID)
	require.NoError(t, err)
	assert.False(t, sess.Info().Running)

	sendMsg(t, conn, MsgStart, nil)
	env = readEnvelope(t, conn)
	require.Equal(t, MsgRig, env.T)
	assert.True(t, sess.Info().Running)
}

func TestDroppedLinkAllowsRepair(t *testing.T) {
	ts := startTestServer(t)
	conn, created, _ := ts.pair(t, false)
	sess, err := ts.hub.sessions.GetSession(created.SessionID)
	require.NoError(t, err)

	conn.Close()
	assert.Eventually(t, func() bool { return !sess.Info().Paired }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, sess.Info().Running)

	again := dialWS(t, ts.wsURL)
	sendMsg(t, again, MsgJoin, JoinMsg{SessionID: created.SessionID, Token: created.Token})
	assert.Equal(t, MsgWelcome, readEnvelope(t, again).T)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := startTestServer(t)
	conn, created, _ := ts.pair(t, false)
	sendMsg(t, conn, MsgFrame, FrameMsg{DT: 1.0 / 60})
	readEnvelope(t, conn)

	resp := ts.adminRequest(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Links    int                       `json:"links"`
		Sessions map[string]map[string]any `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.Links)
	require.Contains(t, body.Sessions, created.SessionID)
	assert.EqualValues(t, 1, body.Sessions[created.SessionID]["frames"])
}

func TestDeletePairedSessionStopsHeadset(t *testing.T) {
	ts := startTestServer(t)
	conn, created, _ := ts.pair(t, false)

	resp := ts.adminRequest(t, http.MethodDelete, "/api/sessions/"+created.SessionID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, MsgEnded, readEnvelope(t, conn).T)

	sendMsg(t, conn, MsgStart, nil)
	env := readEnvelope(t, conn)
	require.Equal(t, MsgError, env.T)
	var e ErrorMsg
	decodeData(t, env, &e)
	assert.Equal(t, ErrSessionNotFound.Error(), e.Msg)

	// the link is free to join another session
	other := ts.createSession(t)
	sendMsg(t, conn, MsgJoin, JoinMsg{SessionID: other.SessionID, Token: other.Token})
	assert.Equal(t, MsgWelcome, readEnvelope(t, conn).T)
}
