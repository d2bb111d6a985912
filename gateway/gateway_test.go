// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danielhkuo/quickly-rank/auth"
	"github.com/danielhkuo/quickly-rank/models"
	"github.com/danielhkuo/quickly-rank/polls"
	"github.com/danielhkuo/quickly-rank/testutil"
)

type testEnv struct {
	svc    *polls.Service
	issuer *auth.TokenIssuer
	hub    *Hub
	gw     *Gateway
	server *httptest.Server
}

func setupGateway(t *testing.T) *testEnv {
	t.Helper()

	svc := polls.NewService(testutil.SetupTestStore(t), time.Hour)
	issuer, err := auth.NewTokenIssuer(testutil.TestJWTSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	hub := NewHub()
	gw := New(svc, auth.NewGate(issuer, svc), hub, []string{"*"})

	server := httptest.NewServer(http.HandlerFunc(gw.ServeWS))
	// Runs before the store is closed: every handler finishes its
	// disconnect cleanup while the database is still open.
	t.Cleanup(func() {
		gw.Close()
		server.Close()
	})

	return &testEnv{svc: svc, issuer: issuer, hub: hub, gw: gw, server: server}
}

// createPoll makes a poll owned by "owner-1" and returns it with the owner token
func (e *testEnv) createPoll(t *testing.T) (*models.Poll, string) {
	t.Helper()
	poll, err := e.svc.CreatePoll(context.Background(), "Lunch", 2, "owner-1", "Olive")
	if err != nil {
		t.Fatalf("CreatePoll() error = %v", err)
	}
	token, _ := e.issuer.Sign(poll.ID, "owner-1", "Olive")
	return poll, token
}

func (e *testEnv) join(t *testing.T, pollID, participantID, name string) string {
	t.Helper()
	if _, err := e.svc.JoinPoll(context.Background(), pollID, participantID, name); err != nil {
		t.Fatalf("JoinPoll() error = %v", err)
	}
	token, _ := e.issuer.Sign(pollID, participantID, name)
	return token
}

func (e *testEnv) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("Dial() error = %v (status %d)", err, status)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type rawEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readEvent(t *testing.T, conn *websocket.Conn) rawEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev rawEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return ev
}

// expectPoll reads the next event and requires it to be poll_updated
func expectPoll(t *testing.T, conn *websocket.Conn) *models.Poll {
	t.Helper()
	ev := readEvent(t, conn)
	if ev.Type != models.EventPollUpdated {
		t.Fatalf("expected %s, got %s: %s", models.EventPollUpdated, ev.Type, ev.Payload)
	}
	var poll models.Poll
	if err := json.Unmarshal(ev.Payload, &poll); err != nil {
		t.Fatalf("bad poll payload: %v", err)
	}
	return &poll
}

func expectException(t *testing.T, conn *websocket.Conn, code models.ErrorCode) models.ExceptionPayload {
	t.Helper()
	ev := readEvent(t, conn)
	if ev.Type != models.EventException {
		t.Fatalf("expected %s, got %s: %s", models.EventException, ev.Type, ev.Payload)
	}
	var p models.ExceptionPayload
	json.Unmarshal(ev.Payload, &p)
	if p.Type != code {
		t.Errorf("exception type = %s, want %s (%s)", p.Type, code, p.Message)
	}
	return p
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	msg := map[string]any{"type": msgType}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
}

func TestConnectRequiresToken(t *testing.T) {
	env := setupGateway(t)
	url := "ws" + strings.TrimPrefix(env.server.URL, "http")

	tests := []struct {
		name string
		url  string
	}{
		{"missing", url},
		{"invalid", url + "?token=garbage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(tt.url, nil)
			if err == nil {
				t.Fatal("expected handshake to fail")
			}
			if resp == nil || resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("expected 401, got %v", resp)
			}
		})
	}
}

func TestConnectWithBearerHeader(t *testing.T) {
	env := setupGateway(t)
	_, token := env.createPoll(t)

	url := "ws" + strings.TrimPrefix(env.server.URL, "http")
	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	poll := expectPoll(t, conn)
	if poll.Participants["owner-1"] != "Olive" {
		t.Errorf("participants = %v", poll.Participants)
	}
}

func TestConnectToCancelledPoll(t *testing.T) {
	env := setupGateway(t)
	poll, token := env.createPoll(t)
	env.svc.CancelPoll(context.Background(), poll.ID)

	conn := env.dial(t, token)
	expectException(t, conn, models.CodeNotFound)
}

func TestPollFlow(t *testing.T) {
	env := setupGateway(t)
	poll, ownerToken := env.createPoll(t)
	patToken := env.join(t, poll.ID, "user-2", "Pat")

	owner := env.dial(t, ownerToken)
	expectPoll(t, owner)

	pat := env.dial(t, patToken)
	expectPoll(t, owner)
	joined := expectPoll(t, pat)
	if len(joined.Participants) != 2 {
		t.Fatalf("participants = %v", joined.Participants)
	}

	// Anyone can nominate; both see it
	send(t, pat, models.ActionNominate, models.NominatePayload{Text: "Tacos"})
	expectPoll(t, owner)
	updated := expectPoll(t, pat)
	if len(updated.Nominations) != 1 {
		t.Fatalf("nominations = %v", updated.Nominations)
	}
	var tacos string
	for id := range updated.Nominations {
		tacos = id
	}

	send(t, owner, models.ActionNominate, models.NominatePayload{Text: "Pizza"})
	expectPoll(t, pat)
	updated = expectPoll(t, owner)
	var pizza string
	for id, n := range updated.Nominations {
		if n.Text == "Pizza" {
			pizza = id
		}
	}

	// Owner starts voting
	send(t, owner, models.ActionStartVote, nil)
	expectPoll(t, pat)
	if started := expectPoll(t, owner); !started.HasStarted {
		t.Fatal("expected poll to be started")
	}

	send(t, pat, models.ActionSubmitRankings, models.RankingsPayload{Rankings: []string{tacos, pizza}})
	expectPoll(t, owner)
	expectPoll(t, pat)

	send(t, owner, models.ActionSubmitRankings, models.RankingsPayload{Rankings: []string{tacos}})
	expectPoll(t, pat)
	expectPoll(t, owner)

	send(t, owner, models.ActionClosePoll, nil)
	expectPoll(t, pat)
	closed := expectPoll(t, owner)
	if len(closed.Results) != 2 || closed.Results[0].NominationID != tacos || closed.Results[0].Score != 2 {
		t.Errorf("results = %+v", closed.Results)
	}

	// Owner cancels; everyone is told
	send(t, owner, models.ActionCancelPoll, nil)
	for _, conn := range []*websocket.Conn{owner, pat} {
		ev := readEvent(t, conn)
		if ev.Type != models.EventPollCancelled {
			t.Errorf("expected %s, got %s", models.EventPollCancelled, ev.Type)
		}
	}

	if _, err := env.svc.GetPoll(context.Background(), poll.ID); err == nil {
		t.Error("poll should be gone after cancel")
	}
}

func TestNonOwnerPrivilegedActions(t *testing.T) {
	env := setupGateway(t)
	poll, ownerToken := env.createPoll(t)
	patToken := env.join(t, poll.ID, "user-2", "Pat")
	env.svc.AddNomination(context.Background(), poll.ID, "owner-1", "Tacos")

	owner := env.dial(t, ownerToken)
	expectPoll(t, owner)
	pat := env.dial(t, patToken)
	expectPoll(t, owner)
	expectPoll(t, pat)

	before, _ := env.svc.GetPoll(context.Background(), poll.ID)
	var tacos string
	for id := range before.Nominations {
		tacos = id
	}

	actions := []struct {
		msgType string
		payload any
	}{
		{models.ActionStartVote, nil},
		{models.ActionCancelPoll, nil},
		{models.ActionRemoveNomination, models.IDPayload{ID: tacos}},
		{models.ActionRemoveParticipant, models.IDPayload{ID: "owner-1"}},
		{models.ActionClosePoll, nil},
	}

	for _, a := range actions {
		t.Run(a.msgType, func(t *testing.T) {
			send(t, pat, a.msgType, a.payload)
			p := expectException(t, pat, models.CodeUnauthorized)
			if p.Action != a.msgType {
				t.Errorf("exception action = %s, want %s", p.Action, a.msgType)
			}
		})
	}

	after, err := env.svc.GetPoll(context.Background(), poll.ID)
	if err != nil {
		t.Fatalf("poll should still exist: %v", err)
	}
	if after.HasStarted || len(after.Nominations) != 1 || len(after.Participants) != 2 {
		t.Errorf("poll changed by unauthorized actions: %+v", after)
	}

	// Owner saw none of it: the next event is the owner's own nomination
	send(t, owner, models.ActionNominate, models.NominatePayload{Text: "Pizza"})
	if p := expectPoll(t, owner); len(p.Nominations) != 2 {
		t.Errorf("nominations = %v", p.Nominations)
	}
}

func TestActionErrorsGoToSenderOnly(t *testing.T) {
	env := setupGateway(t)
	poll, ownerToken := env.createPoll(t)
	patToken := env.join(t, poll.ID, "user-2", "Pat")

	owner := env.dial(t, ownerToken)
	expectPoll(t, owner)
	pat := env.dial(t, patToken)
	expectPoll(t, owner)
	expectPoll(t, pat)

	conn := pat
	conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
	expectException(t, conn, models.CodeBadRequest)

	send(t, conn, "dance", nil)
	expectException(t, conn, models.CodeBadRequest)

	send(t, conn, models.ActionNominate, nil)
	expectException(t, conn, models.CodeBadRequest)

	// Rankings before voting starts
	send(t, conn, models.ActionSubmitRankings, models.RankingsPayload{Rankings: []string{"x"}})
	expectException(t, conn, models.CodeBadRequest)

	// Owner cannot remove themselves
	send(t, owner, models.ActionRemoveParticipant, models.IDPayload{ID: "owner-1"})
	expectException(t, owner, models.CodeBadRequest)

	// Starting twice is a conflict
	send(t, owner, models.ActionStartVote, nil)
	expectPoll(t, owner)
	expectPoll(t, pat)
	send(t, owner, models.ActionStartVote, nil)
	expectException(t, owner, models.CodeConflict)

	// Nominating after start
	send(t, pat, models.ActionNominate, models.NominatePayload{Text: "Late"})
	expectException(t, pat, models.CodeConflict)
}

func TestOwnerRemovesParticipant(t *testing.T) {
	env := setupGateway(t)
	poll, ownerToken := env.createPoll(t)
	env.join(t, poll.ID, "user-2", "Pat")

	owner := env.dial(t, ownerToken)
	expectPoll(t, owner)

	send(t, owner, models.ActionRemoveParticipant, models.IDPayload{ID: "user-2"})
	updated := expectPoll(t, owner)
	if _, ok := updated.Participants["user-2"]; ok {
		t.Error("participant should be removed")
	}

	// Removing an absent participant changes nothing and broadcasts nothing
	send(t, owner, models.ActionRemoveParticipant, models.IDPayload{ID: "user-2"})
	send(t, owner, models.ActionNominate, models.NominatePayload{Text: "Tacos"})
	if p := expectPoll(t, owner); len(p.Nominations) != 1 {
		t.Errorf("expected nomination event next, got %+v", p)
	}
}

func TestDisconnectRemovesParticipant(t *testing.T) {
	env := setupGateway(t)
	poll, ownerToken := env.createPoll(t)
	patToken := env.join(t, poll.ID, "user-2", "Pat")

	owner := env.dial(t, ownerToken)
	expectPoll(t, owner)
	pat := env.dial(t, patToken)
	expectPoll(t, owner)
	expectPoll(t, pat)

	pat.Close()

	updated := expectPoll(t, owner)
	if _, ok := updated.Participants["user-2"]; ok {
		t.Errorf("participant should be removed on disconnect: %v", updated.Participants)
	}
	if updated.Participants["owner-1"] != "Olive" {
		t.Error("owner should remain")
	}
}

// waitForRoomSize polls until the poll's room has n connections
func (e *testEnv) waitForRoomSize(t *testing.T, pollID string, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for e.hub.RoomSize(pollID) != n {
		if time.Now().After(deadline) {
			t.Fatalf("room size = %d, want %d", e.hub.RoomSize(pollID), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestReconnectKeepsParticipant(t *testing.T) {
	env := setupGateway(t)
	poll, ownerToken := env.createPoll(t)

	older := env.dial(t, ownerToken)
	expectPoll(t, older)
	newer := env.dial(t, ownerToken)
	expectPoll(t, older)
	expectPoll(t, newer)

	older.Close()
	env.waitForRoomSize(t, poll.ID, 1)

	send(t, newer, models.ActionNominate, models.NominatePayload{Text: "Tacos"})
	for {
		p := expectPoll(t, newer)
		if _, ok := p.Participants["owner-1"]; !ok {
			t.Fatalf("owner removed while still connected: %v", p.Participants)
		}
		if len(p.Nominations) == 1 {
			break
		}
	}

	got, err := env.svc.GetPoll(context.Background(), poll.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Participants["owner-1"] != "Olive" {
		t.Errorf("participants = %v, want owner present", got.Participants)
	}
}

func TestCloseWaitsForDisconnects(t *testing.T) {
	env := setupGateway(t)
	poll, ownerToken := env.createPoll(t)
	patToken := env.join(t, poll.ID, "user-2", "Pat")

	owner := env.dial(t, ownerToken)
	expectPoll(t, owner)
	env.dial(t, patToken)
	expectPoll(t, owner)

	env.gw.Close()

	// Both disconnects have run by the time Close returns
	got, err := env.svc.GetPoll(context.Background(), poll.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Participants) != 0 {
		t.Errorf("participants after Close = %v, want none", got.Participants)
	}

	// New connections are refused
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "?token=" + ownerToken
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Dial() after Close succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Dial() after Close response = %v, want 503", resp)
	}
}
