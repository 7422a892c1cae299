package main

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"gallery-server/locomotion"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 16384
	sendBufSize       = 256
	maxMessagesPerSec = 150 // 120 Hz frames plus controller notifications
)

// Client is one headset link.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
	session    *Session
	binary     bool
	msgCount   int
	msgResetAt time.Time
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		remoteAddr: remoteAddr,
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				Log.Warnw("ws read", "addr", c.remoteAddr, "err", err)
			}
			break
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			if c.session != nil {
				c.session.Metrics.RateLimited.Add(1)
			}
			continue
		}

		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Check for binary marker (0xFF prefix from SendBinary)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		Log.Errorw("marshal", "err", err)
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message
// Prefixes with 0xFF marker byte so WritePump can distinguish from text
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF // binary marker
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) sendError(msg string) {
	c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: msg}})
}

// sendRig replies to a frame, as msgpack when the headset asked for binary.
func (c *Client) sendRig(rig RigMsg) {
	if !c.binary {
		c.SendJSON(Envelope{T: MsgRig, Data: rig})
		return
	}
	data, err := msgpack.Marshal(&rig)
	if err != nil {
		Log.Errorw("msgpack marshal", "err", err)
		return
	}
	c.SendBinary(data)
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		Log.Debugw("unmarshal", "addr", c.remoteAddr, "err", err)
		return
	}

	if env.T == MsgJoin {
		c.handleJoin(env.D)
		return
	}
	if c.session == nil {
		c.sendError("not joined")
		return
	}
	if c.session.Closed() {
		c.session = nil
		c.sendError(ErrSessionNotFound.Error())
		return
	}

	switch env.T {
	case MsgStart:
		c.sendRig(c.session.Start())
	case MsgConnected:
		c.handleConnected(env.D)
	case MsgDisconnected:
		c.handleDisconnected(env.D)
	case MsgFrame:
		c.handleFrame(env.D)
	case MsgEnd:
		elapsed := c.session.End()
		c.SendJSON(Envelope{T: MsgEnded, Data: EndedMsg{Elapsed: elapsed}})
	}
}

func (c *Client) handleJoin(data json.RawMessage) {
	var msg JoinMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("bad join")
		return
	}
	if c.session != nil && !c.session.Closed() {
		c.sendError("already joined")
		return
	}
	sess, err := c.hub.sessions.GetSession(msg.SessionID)
	if err != nil {
		c.sendError(ErrSessionNotFound.Error())
		return
	}
	if err := c.hub.auth.ValidatePairingToken(msg.Token, sess.ID); err != nil {
		Log.Infow("pairing rejected", "sid", sess.ID, "addr", c.remoteAddr, "err", err)
		c.sendError(ErrInvalidToken.Error())
		return
	}
	welcome, err := sess.Attach(c)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.session = sess
	c.binary = msg.Binary
	Log.Infow("headset paired", "sid", sess.ID, "addr", c.remoteAddr, "binary", msg.Binary)
	c.SendJSON(Envelope{T: MsgWelcome, Data: welcome})
}

func (c *Client) handleConnected(data json.RawMessage) {
	var msg ConnectedMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	hand := c.session.Connect(msg.Slot, locomotion.ParseHandedness(msg.Hand))
	c.hub.analytics.Track(EvtControllerLink, c.session.ID, map[string]any{
		"slot": msg.Slot, "reported": msg.Hand, "role": hand.String(),
	})
}

func (c *Client) handleDisconnected(data json.RawMessage) {
	var msg DisconnectedMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	c.session.Disconnect(msg.Slot)
}

func (c *Client) handleFrame(data json.RawMessage) {
	var msg FrameMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	c.sendRig(c.session.Frame(msg))
}
