package main

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/gorilla/websocket"
)

const maxSessionNameLen = 40

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requireAdmin guards operator endpoints with HTTP basic auth.
func requireAdmin(auth *Auth, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="gallery"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		switch err := auth.CheckAdmin(user, pass, extractIP(r)); {
		case errors.Is(err, ErrRateLimited):
			http.Error(w, err.Error(), http.StatusTooManyRequests)
			return
		case err != nil:
			w.Header().Set("WWW-Authenticate", `Basic realm="gallery"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// SetupRoutes configures HTTP routes
func SetupRoutes(hub *Hub, clientDir string) *http.ServeMux {
	mux := http.NewServeMux()

	// Serve static files with no-cache so browsers always revalidate
	fs := http.FileServer(http.Dir(clientDir))
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		if r.URL.Path == "/" {
			http.ServeFile(w, r, filepath.Join(clientDir, "index.html"))
			return
		}
		fs.ServeHTTP(w, r)
	}))

	// WebSocket endpoint
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ip := extractIP(r)
		if !hub.CanAccept(ip) {
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			Log.Warnw("upgrade", "addr", ip, "err", err)
			return
		}

		hub.TrackConnect(ip)

		client := NewClient(hub, conn, ip)
		hub.register <- client

		go client.WritePump()
		go client.ReadPump()
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":       true,
			"sessions": hub.sessions.Count(),
			"links":    hub.ClientCount(),
		})
	})

	mux.HandleFunc("POST /api/sessions", requireAdmin(hub.auth, hub.handleCreateSession))
	mux.HandleFunc("GET /api/sessions", requireAdmin(hub.auth, hub.handleListSessions))
	mux.HandleFunc("DELETE /api/sessions/{id}", requireAdmin(hub.auth, hub.handleDeleteSession))
	mux.HandleFunc("GET /api/sessions/{id}/pair.png", requireAdmin(hub.auth, hub.handlePairQR))
	mux.HandleFunc("GET /api/analytics", requireAdmin(hub.auth, hub.handleAnalytics))
	mux.HandleFunc("GET /metrics", requireAdmin(hub.auth, hub.handleMetrics))

	return mux
}

type createSessionReq struct {
	Name string `json:"name"`
}

type createSessionResp struct {
	SessionID string `json:"sid"`
	Token     string `json:"token"`
	PairURL   string `json:"pair"`
}

func (h *Hub) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionReq
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
	}
	name := req.Name
	if name == "" {
		name = "Gallery visit"
	}
	if len(name) > maxSessionNameLen {
		name = name[:maxSessionNameLen]
	}

	sess, err := h.sessions.CreateSession(name)
	if errors.Is(err, ErrSessionLimit) {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		Log.Errorw("create session", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	token, err := h.auth.IssuePairingToken(sess.ID)
	if err != nil {
		Log.Errorw("issue pairing token", "sid", sess.ID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	Log.Infow("session created", "sid", sess.ID, "name", name)
	writeJSON(w, http.StatusCreated, createSessionResp{
		SessionID: sess.ID,
		Token:     token,
		PairURL:   PairURL(h.publicURL, sess.ID, token),
	})
}

func (h *Hub) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.ListSessions())
}

func (h *Hub) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.RemoveSession(r.PathValue("id")) {
		http.Error(w, ErrSessionNotFound.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Hub) handlePairQR(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !ValidSessionID(id) {
		http.Error(w, "bad session id", http.StatusBadRequest)
		return
	}
	sess, err := h.sessions.GetSession(id)
	if err != nil {
		http.Error(w, ErrSessionNotFound.Error(), http.StatusNotFound)
		return
	}
	token, err := h.auth.IssuePairingToken(sess.ID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	png, err := PairingQR(PairURL(h.publicURL, sess.ID, token), min(size, 1024))
	if err != nil {
		Log.Errorw("pair qr", "sid", sess.ID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

func (h *Hub) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 365 {
			http.Error(w, "days must be 0-365", http.StatusBadRequest)
			return
		}
		days = n
	}

	counts, err := h.analytics.EventCounts(days)
	if err != nil {
		Log.Errorw("analytics counts", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	sessions, err := h.analytics.SessionStats(days)
	if err != nil {
		Log.Errorw("analytics sessions", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	daily, err := h.analytics.DailyHistory(EvtSessionStart, days)
	if err != nil {
		Log.Errorw("analytics history", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"days":     days,
		"events":   counts,
		"sessions": sessions,
		"daily":    daily,
	})
}

func (h *Hub) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"links":    h.TotalConns(),
		"sessions": h.sessions.MetricsSnapshot(),
	})
}
