// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package gateway serves live poll connections over websockets.

# Connecting

	GET /polls/live?token=<accessToken>

The token may also come from "Authorization: Bearer" or a "Token" header.
A bad token gets a 401 JSON error before any upgrade. After the upgrade the
client joins its poll's room, its participant entry is restored, and the
room receives poll_updated.

# Messages

Clients send {"type": ..., "payload": {...}}:

	nominate           {text}
	submit_rankings    {rankings: [id, ...]}
	remove_nomination  {id}    owner only
	remove_participant {id}    owner only
	start_vote                 owner only
	close_poll                 owner only
	cancel_poll                owner only

Owner-only actions re-verify the connection's token and check ownership
against the stored poll before anything runs.

# Events

	poll_updated   {poll}      to the room, after every change
	poll_cancelled {pollID}    to the room, after cancel_poll
	exception      {type, message, action}  to the sender only

Messages from one connection are handled in order, one at a time. A client
that disconnects is removed from the poll and the room is told.

# Keep-alive

The server pings every 15s and drops a connection that has not answered
within 60s. Slow clients miss broadcasts instead of blocking the room.
*/
package gateway
