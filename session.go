package main

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"gallery-server/locomotion"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionLimit    = errors.New("too many active sessions")
	ErrAlreadyPaired   = errors.New("session already has a headset")
)

// SessionIdleTimeout is how long an unpaired session survives before the
// reaper removes it. A var so tests can shorten it.
var SessionIdleTimeout = 10 * time.Minute

// Session is one headset's locomotion context plus the bookkeeping the host
// needs around it. Sessions never share locomotion state.
type Session struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Metrics   SessionMetrics

	mu         sync.Mutex
	loco       *locomotion.Context
	room       RoomInfo
	headset    *Client
	lastActive time.Time
	closed     bool
}

// Attach pairs a headset link with the session and starts a VR session.
func (s *Session) Attach(c *Client) (WelcomeMsg, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return WelcomeMsg{}, ErrSessionNotFound
	}
	if s.headset != nil && s.headset != c {
		return WelcomeMsg{}, ErrAlreadyPaired
	}
	s.headset = c
	s.lastActive = time.Now()
	s.loco.Start()
	return WelcomeMsg{
		SessionID: s.ID,
		Room:      s.room,
		Rig:       s.rigLocked(s.loco.Current()),
	}, nil
}

// Detach drops the headset link, ending any running VR session.
func (s *Session) Detach(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.headset != c {
		return
	}
	s.loco.End()
	s.headset = nil
	s.lastActive = time.Now()
}

// Close ends the session for good and unpairs its headset, which is told the
// VR session ended. Returns false if it was already closed.
func (s *Session) Close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	elapsed := s.loco.Elapsed()
	s.loco.End()
	if c := s.headset; c != nil {
		c.SendJSON(Envelope{T: MsgEnded, Data: EndedMsg{Elapsed: elapsed}})
		s.headset = nil
	}
	return true
}

// Closed reports whether the session has been removed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Start begins a fresh VR session for the paired headset. A closed session
// stays stopped.
func (s *Session) Start() RigMsg {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.loco.Start()
	}
	return s.rigLocked(s.loco.Current())
}

// End stops the VR session and returns how long it ran.
func (s *Session) End() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	elapsed := s.loco.Elapsed()
	s.loco.End()
	return elapsed
}

// Connect forwards a controller's connection notification.
func (s *Session) Connect(slot int, hand locomotion.Handedness) locomotion.Handedness {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Metrics.Controllers.Add(1)
	return s.loco.Connect(slot, hand)
}

// Disconnect forwards a controller going away.
func (s *Session) Disconnect(slot int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loco.Disconnect(slot)
}

// Frame pushes one frame of device input, advances the locomotion loop and
// returns the rig to present.
func (s *Session) Frame(msg FrameMsg) RigMsg {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.Head != nil {
		s.loco.PushHead(msg.Head.HeadPose())
	}
	for _, in := range msg.Inputs {
		s.loco.PushInput(in.Slot, in.DeviceInput())
	}

	start := time.Now()
	f := s.loco.Update(msg.DT)
	s.Metrics.AddFrame(time.Since(start).Nanoseconds())
	s.lastActive = time.Now()
	return s.rigLocked(f)
}

func (s *Session) rigLocked(f locomotion.Frame) RigMsg {
	return NewRigMsg(f, s.loco.Phase())
}

// Info summarises the session for the operator.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	paired := s.headset != nil
	running := s.loco.Running()
	s.mu.Unlock()
	return SessionInfo{
		ID:        s.ID,
		Name:      s.Name,
		Paired:    paired,
		Running:   running,
		Frames:    s.Metrics.Frames.Load(),
		Teleports: s.Metrics.Teleports.Load(),
		Turns:     s.Metrics.Turns.Load(),
		AvgUpdate: s.Metrics.AvgUpdateMicros(),
	}
}

func (s *Session) idleSince(now time.Time) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActive), s.headset != nil
}

// sessionObserver records locomotion events for one session.
type sessionObserver struct {
	sess      *Session
	analytics *Analytics
	db        *DB
}

func (o *sessionObserver) SessionStarted(rig locomotion.RigState) {
	o.analytics.Track(EvtSessionStart, o.sess.ID, map[string]float64{
		"x": rig.Position.X(), "z": rig.Position.Z(), "yaw": rig.Yaw,
	})
}

func (o *sessionObserver) SessionEnded(rig locomotion.RigState, elapsed float64) {
	o.analytics.Track(EvtSessionEnd, o.sess.ID, map[string]float64{"elapsed": elapsed})
	if o.db == nil {
		return
	}
	if err := o.db.AddSessionTime(o.sess.ID, elapsed, time.Now()); err != nil {
		Log.Warnw("recording session time", "sid", o.sess.ID, "err", err)
	}
}

func (o *sessionObserver) Teleported(from, to mgl64.Vec3) {
	o.sess.Metrics.Teleports.Add(1)
	o.analytics.Track(EvtTeleport, o.sess.ID, map[string]float64{
		"from_x": from.X(), "from_z": from.Z(), "to_x": to.X(), "to_z": to.Z(),
		"dist": to.Sub(from).Len(),
	})
}

func (o *sessionObserver) SnapTurned(yaw float64, pos mgl64.Vec3) {
	o.sess.Metrics.Turns.Add(1)
	o.analytics.Track(EvtSnapTurn, o.sess.ID, map[string]float64{
		"yaw": yaw, "x": pos.X(), "z": pos.Z(),
	})
}

// SessionManager handles creation and lookup of sessions
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	maxSessions int
	layout      Layout
	params      locomotion.Params
	db          *DB
	analytics   *Analytics
	log         *zap.Logger
}

// NewSessionManager creates a SessionManager serving one room layout.
func NewSessionManager(layout Layout, params locomotion.Params, maxSessions int, db *DB, analytics *Analytics, log *zap.Logger) *SessionManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionManager{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
		layout:      layout,
		params:      params,
		db:          db,
		analytics:   analytics,
		log:         log,
	}
}

// CreateSession creates a new, unpaired session.
func (sm *SessionManager) CreateSession(name string) (*Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if len(sm.sessions) >= sm.maxSessions {
		return nil, ErrSessionLimit
	}

	now := time.Now()
	sess := &Session{
		ID:         GenerateUUID(),
		Name:       name,
		CreatedAt:  now,
		lastActive: now,
	}
	room := sm.layout.Room()
	obs := &sessionObserver{sess: sess, analytics: sm.analytics, db: sm.db}
	loco, err := locomotion.NewContext(room,
		locomotion.WithParams(sm.params),
		locomotion.WithLogger(sm.log.With(zap.String("sid", sess.ID))),
		locomotion.WithObserver(obs),
	)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sess.ID, err)
	}
	sess.loco = loco
	sess.room = NewRoomInfo(sm.layout.Name, room)

	if sm.db != nil {
		if err := sm.db.CreateSession(sess.ID, name, now); err != nil {
			return nil, fmt.Errorf("recording session: %w", err)
		}
	}
	sm.sessions[sess.ID] = sess
	return sess, nil
}

// GetSession returns a session by ID
func (sm *SessionManager) GetSession(id string) (*Session, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sess, ok := sm.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	}
	return sess, nil
}

// RemoveSession closes and forgets a session. A paired headset is unpaired
// and told its VR session ended.
func (sm *SessionManager) RemoveSession(id string) bool {
	sm.mu.Lock()
	sess, ok := sm.sessions[id]
	delete(sm.sessions, id)
	sm.mu.Unlock()
	if ok {
		sess.Close()
	}
	return ok
}

// Count returns the number of live sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// ListSessions returns info about all active sessions, oldest first
func (sm *SessionManager) ListSessions() []SessionInfo {
	sm.mu.RLock()
	all := make([]*Session, 0, len(sm.sessions))
	for _, sess := range sm.sessions {
		all = append(all, sess)
	}
	sm.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	list := make([]SessionInfo, 0, len(all))
	for _, sess := range all {
		list = append(list, sess.Info())
	}
	return list
}

// MetricsSnapshot returns every session's counters keyed by ID.
func (sm *SessionManager) MetricsSnapshot() map[string]map[string]any {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	out := make(map[string]map[string]any, len(sm.sessions))
	for id, sess := range sm.sessions {
		out[id] = sess.Metrics.Snapshot()
	}
	return out
}

// ReapIdle removes unpaired sessions idle for longer than SessionIdleTimeout.
func (sm *SessionManager) ReapIdle(now time.Time) int {
	sm.mu.RLock()
	var stale []string
	for id, sess := range sm.sessions {
		if idle, paired := sess.idleSince(now); !paired && idle > SessionIdleTimeout {
			stale = append(stale, id)
		}
	}
	sm.mu.RUnlock()

	for _, id := range stale {
		if sm.RemoveSession(id) {
			sm.log.Info("reaped idle session", zap.String("sid", id))
		}
	}
	return len(stale)
}

// RunReaper calls ReapIdle periodically until stop is closed.
func (sm *SessionManager) RunReaper(every time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			sm.ReapIdle(now)
		case <-stop:
			return
		}
	}
}
