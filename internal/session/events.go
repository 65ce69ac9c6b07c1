package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/codearena/core/internal/matchmaking"
	"github.com/codearena/core/internal/models"
	"github.com/codearena/core/internal/room"
)

const maxMessageLength = 500

// dispatch routes one inbound event to its handler and returns the ack
// payload (spec.md §6). Every branch returns exactly once, satisfying the
// "ack invoked exactly once per event" contract.
func (gw *Gateway) dispatch(c *Client, msg InboundMessage) interface{} {
	switch msg.Type {
	case "findMatch":
		return gw.findMatch(c)
	case "cancelMatchmaking":
		return gw.cancelMatchmaking(c)
	case "getMatchmakingStatus":
		return gw.getMatchmakingStatus(c)
	case "submitSolution":
		return gw.submitSolution(c, msg.Data)
	case "leaveMatch":
		return gw.leaveMatch(c, msg.Data)
	case "getRoomStatus":
		return gw.getRoomStatus(c, msg.Data)
	case "getActiveMatches":
		return gw.getActiveMatches(c)
	case "rejoinMatch":
		return gw.rejoinMatch(c, msg.Data)
	case "sendMessage":
		return gw.sendMessage(c, msg.Data)
	default:
		return map[string]interface{}{"success": false, "message": "unknown event"}
	}
}

// findMatch implements the 4.B pairing protocol.
func (gw *Gateway) findMatch(c *Client) interface{} {
	gw.matchmakingMu.Lock()
	defer gw.matchmakingMu.Unlock()

	if gw.queue.Has(c.userID) {
		return map[string]interface{}{"success": false, "message": "already queued"}
	}
	if gw.userInLiveRoom(c) {
		return map[string]interface{}{"success": false, "message": "already in an active match"}
	}

	p := &matchmaking.QueuedPlayer{
		UserID:   c.userID,
		Username: c.username,
		Rating:   c.rating,
		JoinedAt: gw.clock.Now(),
	}

	opponent := gw.queue.FindMatch(p)
	if opponent != nil {
		gw.queue.Remove(opponent.UserID)
		if t, ok := gw.deadlines[opponent.UserID]; ok {
			t.Stop()
			delete(gw.deadlines, opponent.UserID)
		}

		roomID := uuid.NewString()
		gw.hub.joinRoom(roomID, opponent.UserID)
		gw.hub.joinRoom(roomID, c.userID)

		ctx := context.Background()
		_, err := gw.rooms.Create(ctx, roomID,
			room.PlayerInfo{UserID: opponent.UserID, Username: opponent.Username, Rating: opponent.Rating},
			room.PlayerInfo{UserID: c.userID, Username: c.username, Rating: c.rating},
		)
		if err != nil {
			return map[string]interface{}{"success": false, "message": "failed to create match"}
		}

		return map[string]interface{}{"success": true, "status": "matched", "roomId": roomID}
	}

	gw.queue.Add(p)
	userID := c.userID
	gw.deadlines[userID] = gw.clock.AfterFunc(gw.cfg.MatchmakingTimeout, func() {
		gw.handleMatchmakingTimeout(userID)
	})

	c.mu.Lock()
	c.inQueue = true
	c.queuedAt = p.JoinedAt
	c.mu.Unlock()

	return map[string]interface{}{
		"success":       true,
		"status":        "searching",
		"queuePosition": gw.queue.Position(c.userID),
	}
}

func (gw *Gateway) handleMatchmakingTimeout(userID string) {
	gw.matchmakingMu.Lock()
	entry := gw.queue.Remove(userID)
	delete(gw.deadlines, userID)
	gw.matchmakingMu.Unlock()

	if entry == nil {
		return
	}
	gw.hub.sendTo(userID, "matchmakingTimeout", map[string]interface{}{"message": "no opponent found"})
}

// userInLiveRoom reports whether c is a member of at least one room that is
// still active, per findMatch's "already in a live room" precondition.
func (gw *Gateway) userInLiveRoom(c *Client) bool {
	return len(gw.rooms.ListActiveForUser(c.userID)) > 0
}

func (gw *Gateway) cancelMatchmaking(c *Client) interface{} {
	gw.matchmakingMu.Lock()
	entry := gw.queue.Remove(c.userID)
	if t, ok := gw.deadlines[c.userID]; ok {
		t.Stop()
		delete(gw.deadlines, c.userID)
	}
	gw.matchmakingMu.Unlock()

	c.mu.Lock()
	c.inQueue = false
	c.mu.Unlock()

	if entry == nil {
		return map[string]interface{}{"success": false, "message": "not in queue"}
	}
	return map[string]interface{}{"success": true, "message": "removed from queue"}
}

func (gw *Gateway) getMatchmakingStatus(c *Client) interface{} {
	inQueue := gw.queue.Has(c.userID)
	waitTime := 0.0
	if inQueue {
		c.mu.Lock()
		waitTime = gw.clock.Now().Sub(c.queuedAt).Seconds()
		c.mu.Unlock()
	}
	return map[string]interface{}{
		"success":   true,
		"inQueue":   inQueue,
		"queueSize": gw.queue.Size(),
		"waitTime":  waitTime,
	}
}

type submitSolutionRequest struct {
	RoomID   string `json:"roomId"`
	Code     string `json:"code"`
	Language string `json:"language"`
}

func (gw *Gateway) submitSolution(c *Client, data json.RawMessage) interface{} {
	var req submitSolutionRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return map[string]interface{}{"success": false, "message": "invalid request"}
	}

	score, passed, err := gw.rooms.Submit(context.Background(), req.RoomID, c.userID, req.Code, req.Language)
	if err != nil {
		return map[string]interface{}{"success": false, "message": err.Error()}
	}
	return map[string]interface{}{"success": true, "score": score, "passedTestcases": passed}
}

type roomRequest struct {
	RoomID string `json:"roomId"`
}

func (gw *Gateway) leaveMatch(c *Client, data json.RawMessage) interface{} {
	var req roomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return map[string]interface{}{"success": false, "message": "invalid request"}
	}

	if err := gw.rooms.Forfeit(context.Background(), req.RoomID, c.userID); err != nil {
		return map[string]interface{}{"success": false, "message": err.Error()}
	}
	return map[string]interface{}{"success": true, "message": "left match"}
}

func (gw *Gateway) getRoomStatus(c *Client, data json.RawMessage) interface{} {
	var req roomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return map[string]interface{}{"success": false, "message": "invalid request"}
	}

	status, problemID, users, isActive, remaining, err := gw.rooms.Status(req.RoomID)
	if err != nil {
		return map[string]interface{}{"success": false, "message": err.Error()}
	}
	return map[string]interface{}{
		"success":       true,
		"roomId":        req.RoomID,
		"problemId":     problemID,
		"roomStatus":    status,
		"users":         users,
		"isActive":      isActive,
		"remainingTime": remaining.Seconds(),
	}
}

type activeMatchSummary struct {
	RoomID           string  `json:"roomId"`
	ProblemID        string  `json:"problemId"`
	OpponentUsername string  `json:"opponentUsername"`
	RemainingTime    float64 `json:"remainingTime"`
}

func (gw *Gateway) getActiveMatches(c *Client) interface{} {
	roomIDs := gw.rooms.ListActiveForUser(c.userID)
	matches := make([]activeMatchSummary, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		_, problemID, users, _, remaining, err := gw.rooms.Status(roomID)
		if err != nil {
			continue
		}
		matches = append(matches, activeMatchSummary{
			RoomID:           roomID,
			ProblemID:        problemID,
			OpponentUsername: opponentUsername(users, c.userID),
			RemainingTime:    remaining.Seconds(),
		})
	}
	return map[string]interface{}{
		"success": true,
		"matches": matches,
	}
}

func opponentUsername(users []models.RoomUser, userID string) string {
	for _, u := range users {
		if u.UserID != userID {
			return u.Username
		}
	}
	return ""
}

func (gw *Gateway) rejoinMatch(c *Client, data json.RawMessage) interface{} {
	var req roomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return map[string]interface{}{"success": false, "message": "invalid request"}
	}

	status, users, remaining, err := gw.rooms.Rejoin(context.Background(), req.RoomID, c.userID)
	if err != nil {
		return map[string]interface{}{"success": false, "message": err.Error()}
	}

	gw.hub.joinRoom(req.RoomID, c.userID)

	return map[string]interface{}{
		"success":       true,
		"roomId":        req.RoomID,
		"roomStatus":    status,
		"users":         users,
		"remainingTime": remaining.Seconds(),
	}
}

type sendMessageRequest struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

func (gw *Gateway) sendMessage(c *Client, data json.RawMessage) interface{} {
	var req sendMessageRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return map[string]interface{}{"success": false, "message": "invalid request"}
	}

	c.mu.Lock()
	isMember := c.joinedRooms[req.RoomID]
	c.mu.Unlock()
	if !isMember {
		return map[string]interface{}{"success": false, "message": "not a member of this room"}
	}

	text := req.Message
	if len(text) > maxMessageLength {
		text = text[:maxMessageLength]
	}

	gw.hub.BroadcastToRoom(req.RoomID, "newMessage", map[string]interface{}{
		"userId":    c.userID,
		"username":  c.username,
		"message":   text,
		"timestamp": gw.clock.Now().Format(time.RFC3339),
	})

	return map[string]interface{}{"success": true}
}

// handleDisconnect implements 4.E disconnect: dequeue, and notify every
// joined room's other members without forfeiting (the 30-minute match
// timer is the implicit reconnection window).
func (gw *Gateway) handleDisconnect(c *Client) {
	gw.matchmakingMu.Lock()
	gw.queue.Remove(c.userID)
	if t, ok := gw.deadlines[c.userID]; ok {
		t.Stop()
		delete(gw.deadlines, c.userID)
	}
	gw.matchmakingMu.Unlock()

	c.mu.Lock()
	rooms := make([]string, 0, len(c.joinedRooms))
	for roomID := range c.joinedRooms {
		rooms = append(rooms, roomID)
	}
	c.mu.Unlock()

	for _, roomID := range rooms {
		gw.hub.BroadcastToRoom(roomID, "opponentDisconnected", map[string]interface{}{
			"userId":    c.userID,
			"temporary": true,
		})
	}
}
