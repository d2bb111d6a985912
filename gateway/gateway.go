// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danielhkuo/quickly-rank/auth"
	"github.com/danielhkuo/quickly-rank/middleware"
	"github.com/danielhkuo/quickly-rank/models"
)

// actionTimeout bounds the store work for one inbound event.
const actionTimeout = 10 * time.Second

// Sessions is the part of polls.Service the gateway drives.
type Sessions interface {
	RejoinPoll(ctx context.Context, pollID, participantID, name string) (*models.Poll, error)
	RemoveParticipant(ctx context.Context, pollID, participantID string) (*models.Poll, error)
	AddNomination(ctx context.Context, pollID, participantID, text string) (*models.Poll, error)
	RemoveNomination(ctx context.Context, pollID, nominationID string) (*models.Poll, error)
	StartPoll(ctx context.Context, pollID string) (*models.Poll, error)
	SubmitRankings(ctx context.Context, pollID, participantID string, rankings []string) (*models.Poll, error)
	ComputeResults(ctx context.Context, pollID string) (*models.Poll, error)
	CancelPoll(ctx context.Context, pollID string) error
}

// Authorizer verifies tokens and poll ownership. auth.Gate implements it.
type Authorizer interface {
	Authenticate(token string) (auth.Identity, error)
	AuthorizeOwner(ctx context.Context, pollID, subject string) error
}

// actionFunc runs one inbound action. A nil poll with a nil error means
// nothing observable changed and no broadcast is sent.
type actionFunc func(ctx context.Context, c *Client, payload json.RawMessage) (*models.Poll, error)

type action struct {
	ownerOnly bool
	run       actionFunc
}

// Gateway accepts live connections and turns their messages into session
// operations, broadcasting every change to the poll's room.
type Gateway struct {
	sessions Sessions
	auth     Authorizer
	hub      *Hub
	upgrader websocket.Upgrader
	actions  map[string]action

	// mu guards closed so that no handler is added to active once Close
	// has started waiting.
	mu     sync.Mutex
	closed bool
	active sync.WaitGroup
}

func New(sessions Sessions, authorizer Authorizer, hub *Hub, origins []string) *Gateway {
	g := &Gateway{
		sessions: sessions,
		auth:     authorizer,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || middleware.OriginAllowed(origins, origin)
			},
		},
	}

	g.actions = map[string]action{
		models.ActionNominate:          {run: g.nominate},
		models.ActionSubmitRankings:    {run: g.submitRankings},
		models.ActionRemoveNomination:  {ownerOnly: true, run: g.removeNomination},
		models.ActionRemoveParticipant: {ownerOnly: true, run: g.removeParticipant},
		models.ActionStartVote:         {ownerOnly: true, run: g.startVote},
		models.ActionClosePoll:         {ownerOnly: true, run: g.closePoll},
		models.ActionCancelPoll:        {ownerOnly: true, run: g.cancelPoll},
	}
	return g
}

// Close disconnects every client and waits until each connection has
// finished its disconnect cleanup.
func (g *Gateway) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	g.hub.Close()
	g.active.Wait()
}

// track registers a connection handler. It returns false once the gateway
// is closed.
func (g *Gateway) track() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return false
	}
	g.active.Add(1)
	return true
}

// ServeWS authenticates the request, upgrades it and serves the connection
// until the peer disconnects.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	if !g.track() {
		middleware.ErrorResponse(w, http.StatusServiceUnavailable, "server shutting down")
		return
	}
	defer g.active.Done()

	token := middleware.RequestToken(r)
	identity, err := g.auth.Authenticate(token)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		slog.Warn("websocket upgrade failed", "poll_id", identity.PollID, "error", err)
		return
	}

	c := newClient(conn, identity.PollID, identity.ParticipantID, identity.Name, token)
	if !g.hub.Join(c) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	go c.writePump()

	slog.Info("client connected", "poll_id", c.pollID, "participant_id", c.participantID)

	if !g.connect(c) {
		g.hub.Leave(c)
		return
	}

	c.readPump(func(data []byte) {
		g.handleMessage(c, data)
	})

	g.disconnect(c)
}

// connect restores the participant's presence and announces it. It
// returns false when the poll is gone.
func (g *Gateway) connect(c *Client) bool {
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	poll, err := g.sessions.RejoinPoll(ctx, c.pollID, c.participantID, c.name)
	if err != nil {
		slog.Warn("rejoin on connect failed", "poll_id", c.pollID, "participant_id", c.participantID, "error", err)
		g.hub.SendTo(c, models.Exception("connect", err))
		return false
	}

	g.hub.Broadcast(c.pollID, models.PollUpdated(poll))
	return true
}

// disconnect drops the client and removes its participant entry, unless
// the participant has reconnected on another socket in the meantime.
func (g *Gateway) disconnect(c *Client) {
	if g.hub.Leave(c) {
		slog.Info("client disconnected, participant still connected", "poll_id", c.pollID, "participant_id", c.participantID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	poll, err := g.sessions.RemoveParticipant(ctx, c.pollID, c.participantID)
	if err != nil {
		slog.Debug("participant removal on disconnect failed", "poll_id", c.pollID, "participant_id", c.participantID, "error", err)
		return
	}

	slog.Info("client disconnected", "poll_id", c.pollID, "participant_id", c.participantID)
	if poll != nil {
		g.hub.Broadcast(c.pollID, models.PollUpdated(poll))
	}
}

func (g *Gateway) handleMessage(c *Client, data []byte) {
	var msg models.InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		g.hub.SendTo(c, models.Exception("", models.NewBadRequestError("malformed message")))
		return
	}

	act, ok := g.actions[msg.Type]
	if !ok {
		g.hub.SendTo(c, models.Exception(msg.Type, models.NewBadRequestError("unknown action %q", msg.Type)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	if act.ownerOnly {
		if err := g.authorizeOwner(ctx, c); err != nil {
			slog.Warn("privileged action rejected", "poll_id", c.pollID, "participant_id", c.participantID, "action", msg.Type)
			g.hub.SendTo(c, models.Exception(msg.Type, err))
			return
		}
	}

	poll, err := act.run(ctx, c, msg.Payload)
	if err != nil {
		slog.Debug("action failed", "poll_id", c.pollID, "action", msg.Type, "code", models.CodeOf(err), "error", err)
		g.hub.SendTo(c, models.Exception(msg.Type, err))
		return
	}
	if poll != nil {
		g.hub.Broadcast(c.pollID, models.PollUpdated(poll))
	}
}

// authorizeOwner re-verifies the connection's token, then checks ownership
// against the stored poll.
func (g *Gateway) authorizeOwner(ctx context.Context, c *Client) error {
	identity, err := g.auth.Authenticate(c.token)
	if err != nil {
		return err
	}
	return g.auth.AuthorizeOwner(ctx, identity.PollID, identity.ParticipantID)
}

func decodePayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return models.NewBadRequestError("missing payload")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return models.NewBadRequestError("malformed payload")
	}
	return nil
}

func (g *Gateway) nominate(ctx context.Context, c *Client, payload json.RawMessage) (*models.Poll, error) {
	var p models.NominatePayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}
	return g.sessions.AddNomination(ctx, c.pollID, c.participantID, p.Text)
}

func (g *Gateway) removeNomination(ctx context.Context, c *Client, payload json.RawMessage) (*models.Poll, error) {
	var p models.IDPayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}
	return g.sessions.RemoveNomination(ctx, c.pollID, p.ID)
}

func (g *Gateway) removeParticipant(ctx context.Context, c *Client, payload json.RawMessage) (*models.Poll, error) {
	var p models.IDPayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}
	if p.ID == c.participantID {
		return nil, models.NewBadRequestError("the owner cannot remove themselves")
	}
	return g.sessions.RemoveParticipant(ctx, c.pollID, p.ID)
}

func (g *Gateway) startVote(ctx context.Context, c *Client, _ json.RawMessage) (*models.Poll, error) {
	return g.sessions.StartPoll(ctx, c.pollID)
}

func (g *Gateway) submitRankings(ctx context.Context, c *Client, payload json.RawMessage) (*models.Poll, error) {
	var p models.RankingsPayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}
	return g.sessions.SubmitRankings(ctx, c.pollID, c.participantID, p.Rankings)
}

func (g *Gateway) closePoll(ctx context.Context, c *Client, _ json.RawMessage) (*models.Poll, error) {
	return g.sessions.ComputeResults(ctx, c.pollID)
}

// cancelPoll deletes the poll and tells the room directly, since there is
// no document left to broadcast.
func (g *Gateway) cancelPoll(ctx context.Context, c *Client, _ json.RawMessage) (*models.Poll, error) {
	if err := g.sessions.CancelPoll(ctx, c.pollID); err != nil {
		return nil, err
	}
	g.hub.Broadcast(c.pollID, models.PollCancelled(c.pollID))
	return nil, nil
}
