package signal

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"relaycast/internal/core/domain"
	"relaycast/internal/core/ports"
	"relaycast/internal/infrastructure/monitoring"
	"relaycast/pkg/config"
	"relaycast/pkg/utils"
	"relaycast/pkg/validation"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origin policy is enforced by the deployment proxy
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Server is the signaling gateway: it owns the connection registry, validates
// the message schema at the boundary, and drives the directory, session,
// admission, and relay tree services.
type Server struct {
	directory ports.DirectoryService
	sessions  ports.SessionService
	admission ports.AdmissionService
	trees     ports.TreeService
	metrics   *monitoring.Collector

	clients map[domain.SocketID]*client
	// resume holds the credential issued with each socket identity. Entries
	// outlive the connection so a dropped socket can reclaim its identity.
	resume map[domain.SocketID]string
	mu     sync.RWMutex

	pingInterval time.Duration
	pongTimeout  time.Duration
	writeTimeout time.Duration
	msgLimit     rate.Limit
	msgBurst     int

	logger *zap.SugaredLogger
}

func NewServer(
	directory ports.DirectoryService,
	sessions ports.SessionService,
	admission ports.AdmissionService,
	trees ports.TreeService,
	metrics *monitoring.Collector,
	cfg *config.Config,
	logger *zap.SugaredLogger,
) *Server {
	s := &Server{
		directory:    directory,
		sessions:     sessions,
		admission:    admission,
		trees:        trees,
		metrics:      metrics,
		clients:      make(map[domain.SocketID]*client),
		resume:       make(map[domain.SocketID]string),
		pingInterval: cfg.Signal.PingInterval,
		pongTimeout:  cfg.Signal.PongTimeout,
		writeTimeout: cfg.Signal.WriteTimeout,
		logger:       logger,
	}
	if cfg.RateLimiting.Enabled {
		s.msgLimit = rate.Limit(cfg.RateLimiting.WebSocket.MessagesPerSecond)
		s.msgBurst = cfg.RateLimiting.WebSocket.Burst
	}
	return s
}

func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// a socket identity is only reclaimable with the resume token issued
	// alongside it, since the identity carries ownership and roster rights
	socketID := domain.SocketID(r.URL.Query().Get("socket_id"))
	resumeToken := r.URL.Query().Get("resume_token")
	if socketID == "" {
		socketID = domain.SocketID(utils.GenerateSocketID())
		resumeToken = utils.GenerateToken()
		s.mu.Lock()
		s.resume[socketID] = resumeToken
		s.mu.Unlock()
	} else {
		if err := validation.ValidateSocketID(string(socketID)); err != nil {
			s.logger.Warnw("rejected connection with invalid socket id", "error", err)
			return
		}
		s.mu.RLock()
		issued := s.resume[socketID]
		s.mu.RUnlock()
		if issued == "" || subtle.ConstantTimeCompare([]byte(issued), []byte(resumeToken)) != 1 {
			s.logger.Warnw("rejected connection with bad resume credentials", "socket_id", socketID)
			conn.WriteJSON(map[string]interface{}{"type": "error", "message": "invalid resume credentials"})
			return
		}
	}

	var limiter *rate.Limiter
	if s.msgLimit > 0 {
		limiter = rate.NewLimiter(s.msgLimit, s.msgBurst)
	}
	c := newClient(socketID, conn, s.writeTimeout, limiter)

	s.mu.Lock()
	if old, ok := s.clients[socketID]; ok {
		old.conn.Close()
		s.logger.Infow("closing old connection for reconnecting socket", "socket_id", socketID)
	}
	s.clients[socketID] = c
	s.mu.Unlock()

	s.metrics.RecordConnect()
	s.logger.Infow("socket connected", "socket_id", socketID)

	c.send(map[string]interface{}{
		"type":         "welcome",
		"socket_id":    socketID,
		"resume_token": resumeToken,
	})

	conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	messageChan := make(chan Message, 10)
	errorChan := make(chan error, 1)

	go func() {
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
			messageChan <- msg
		}
	}()

loop:
	for {
		select {
		case msg := <-messageChan:
			if !c.allow() {
				s.sendError(c, "rate limit exceeded")
				continue
			}
			if err := s.handleMessage(r.Context(), c, msg); err != nil {
				s.logger.Infow("error handling message", "socket_id", socketID, "type", msg.Type, "error", err)
				s.sendError(c, err.Error())
			}

		case <-pingTicker.C:
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				break loop
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Infow("error reading message", "socket_id", socketID, "error", err)
			}
			break loop
		}
	}

	s.handleDisconnect(context.Background(), c)
}

func (s *Server) handleMessage(ctx context.Context, c *client, msg Message) error {
	if msg.Type == "" {
		return fmt.Errorf("message type is required")
	}
	if IsForwardType(msg.Type) {
		return s.handleForward(c, msg)
	}

	switch msg.Type {
	case "claim-room":
		return s.handleClaimRoom(ctx, c, msg)
	case "auth-host-room":
		return s.handleAuthHostRoom(ctx, c, msg)
	case "join-room":
		return s.handleJoinRoom(ctx, c, msg)
	case "join-room-relay":
		return s.handleJoinRoomRelay(ctx, c, msg)
	case "generate-vip-code":
		return s.handleGenerateVipCode(ctx, c, msg)
	case "revoke-vip-code":
		return s.handleRevokeVipCode(ctx, c, msg)
	case "update-room-privacy":
		return s.handleUpdatePrivacy(ctx, c, msg)
	case "update-vip-required":
		return s.handleUpdateVipRequired(ctx, c, msg)
	case "promote-to-host":
		return s.handlePromote(ctx, c, msg)
	case "lock-room":
		return s.handleLockRoom(ctx, c, msg)
	case "kick-user":
		return s.handleKick(ctx, c, msg)
	case "chat":
		return s.handleChat(ctx, c, msg)
	case "set-stream-title":
		return s.handleSetTitle(ctx, c, msg)
	case "request-call":
		return s.handleRequestCall(ctx, c, true)
	case "cancel-call":
		return s.handleRequestCall(ctx, c, false)
	default:
		return fmt.Errorf("unknown message type: %s", msg.Type)
	}
}

func (s *Server) handleClaimRoom(ctx context.Context, c *client, msg Message) error {
	var payload ClaimRoomPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}
	if err := validation.ValidatePassword(payload.Password); err != nil {
		return err
	}

	_, err := s.directory.CreateRoom(ctx, domain.RoomName(payload.Name), payload.Password, domain.Privacy(payload.Privacy))
	if err != nil {
		s.ackErr(c, msg.Type, err)
		return nil
	}
	// a connection that claims a room is authenticated for it
	c.markAuthed(domain.RoomName(validation.NormalizeRoomName(payload.Name)))
	s.ackOK(c, msg.Type, nil)
	return nil
}

func (s *Server) handleAuthHostRoom(ctx context.Context, c *client, msg Message) error {
	var payload AuthHostRoomPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}

	room := domain.RoomName(validation.NormalizeRoomName(payload.Name))
	if err := s.directory.Authenticate(ctx, room, payload.Password); err != nil {
		s.ackErr(c, msg.Type, err)
		return nil
	}
	c.markAuthed(room)
	s.ackOK(c, msg.Type, nil)
	return nil
}

func (s *Server) handleJoinRoom(ctx context.Context, c *client, msg Message) error {
	var payload JoinRoomPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}
	if err := validation.ValidateDisplayName(payload.Name); err != nil {
		return err
	}

	room := domain.RoomName(validation.NormalizeRoomName(payload.Room))
	if err := validation.ValidateRoomName(string(room)); err != nil {
		return err
	}

	req := &ports.JoinRequest{
		Room:          room,
		SocketID:      c.id,
		Name:          payload.Name,
		IsViewer:      payload.IsViewer,
		VipCode:       payload.VipCode,
		VipToken:      payload.VipToken,
		Authenticated: c.isAuthed(room),
	}
	decision := s.admission.Evaluate(ctx, req)
	if !decision.Accept {
		s.metrics.RecordAdmission(domain.ReasonCode(decision.Reason))
		s.ackErr(c, msg.Type, decision.Reason)
		return nil
	}
	s.metrics.RecordAdmission("ACCEPTED")

	state := s.sessions.Join(room, c.id, payload.Name, payload.IsViewer, decision.IsVip)
	c.setRoom(room, payload.Name)
	isHost := state.OwnerID == c.id

	s.syncLiveState(ctx, room, state)

	body := map[string]interface{}{
		"is_host": isHost,
		"is_vip":  decision.IsVip,
	}
	// the host gets the gating configuration alongside the ack
	if isHost {
		if record, err := s.directory.Get(ctx, room); err == nil {
			body["vip_roster"] = record.RosterNames()
			body["vip_codes"] = record.VipCodes
		}
	}
	s.ackOK(c, msg.Type, body)

	s.broadcastRoomState(ctx, room)
	s.logger.Infow("socket joined room", "socket_id", c.id, "room", room, "is_host", isHost, "is_vip", decision.IsVip)
	return nil
}

func (s *Server) handleJoinRoomRelay(ctx context.Context, c *client, msg Message) error {
	var payload JoinRoomRelayPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}

	room, _ := c.currentRoom()
	if payload.Room != "" {
		room = domain.RoomName(validation.NormalizeRoomName(payload.Room))
	}
	if room == "" {
		return fmt.Errorf("join-room-relay: not in a room")
	}

	// the session owner anchors the tree; everyone else attaches under it
	if s.sessions.IsOwner(room, c.id) {
		s.trees.EnsureRoot(room, c.id)
		s.metrics.SetRelayNodes(string(room), s.trees.Size(room))
		s.ackOK(c, msg.Type, map[string]interface{}{"tier": 0})
		return nil
	}

	assignment, err := s.trees.Insert(room, c.id, payload.DeviceInfo)
	if err != nil {
		// the caller falls back to a direct connection to the host
		s.metrics.RecordRelayAssignment(false)
		s.ackErr(c, msg.Type, err)
		return nil
	}
	s.metrics.RecordRelayAssignment(true)
	s.metrics.SetRelayNodes(string(room), s.trees.Size(room))

	s.sendTo(c.id, map[string]interface{}{
		"type":      "parent-assigned",
		"parent_id": assignment.Parent,
		"tier":      assignment.Tier,
		"capacity":  assignment.Capacity,
	})
	s.sendTo(assignment.Parent, map[string]interface{}{
		"type":     "child-connecting",
		"child_id": c.id,
	})
	return nil
}

func (s *Server) handleGenerateVipCode(ctx context.Context, c *client, msg Message) error {
	var payload GenerateVipCodePayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}

	room := domain.RoomName(validation.NormalizeRoomName(payload.Room))
	if !s.canManage(c, room) {
		s.ackErr(c, msg.Type, domain.ErrAuthRequired)
		return nil
	}

	code, entry, err := s.directory.GenerateVipCode(ctx, room, payload.MaxUses)
	if err != nil {
		s.ackErr(c, msg.Type, err)
		return nil
	}
	s.ackOK(c, msg.Type, map[string]interface{}{
		"code":      code,
		"max_uses":  entry.MaxUses,
		"uses_left": entry.UsesLeft,
	})
	return nil
}

func (s *Server) handleRevokeVipCode(ctx context.Context, c *client, msg Message) error {
	var payload RevokeVipCodePayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}

	room := domain.RoomName(validation.NormalizeRoomName(payload.RoomName))
	if !s.canManage(c, room) {
		s.ackErr(c, msg.Type, domain.ErrAuthRequired)
		return nil
	}

	if err := s.directory.RevokeVipCode(ctx, room, payload.Code); err != nil {
		s.ackErr(c, msg.Type, err)
		return nil
	}
	s.ackOK(c, msg.Type, nil)
	return nil
}

func (s *Server) handleUpdatePrivacy(ctx context.Context, c *client, msg Message) error {
	var payload UpdatePrivacyPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}

	room := domain.RoomName(validation.NormalizeRoomName(payload.RoomName))
	if !s.canManage(c, room) {
		s.ackErr(c, msg.Type, domain.ErrAuthRequired)
		return nil
	}

	if _, err := s.directory.UpdatePrivacy(ctx, room, domain.Privacy(payload.Privacy)); err != nil {
		s.ackErr(c, msg.Type, err)
		return nil
	}
	s.ackOK(c, msg.Type, nil)
	s.broadcastRoomState(ctx, room)
	return nil
}

func (s *Server) handleUpdateVipRequired(ctx context.Context, c *client, msg Message) error {
	var payload UpdateVipRequiredPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}

	room := domain.RoomName(validation.NormalizeRoomName(payload.RoomName))
	if !s.canManage(c, room) {
		s.ackErr(c, msg.Type, domain.ErrAuthRequired)
		return nil
	}

	record, err := s.directory.UpdateVipRequired(ctx, room, payload.VipRequired)
	if err != nil {
		s.ackErr(c, msg.Type, err)
		return nil
	}
	s.ackOK(c, msg.Type, map[string]interface{}{"vip_required": record.VipRequired})
	s.broadcastRoomState(ctx, room)
	return nil
}

func (s *Server) handlePromote(ctx context.Context, c *client, msg Message) error {
	var payload TargetPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}

	room, _ := c.currentRoom()
	if room == "" {
		return fmt.Errorf("promote-to-host: not in a room")
	}
	if s.sessions.Promote(room, c.id, domain.SocketID(payload.TargetID)) != nil {
		s.broadcastRoomState(ctx, room)
	}
	return nil
}

func (s *Server) handleLockRoom(ctx context.Context, c *client, msg Message) error {
	var payload LockRoomPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}

	room, _ := c.currentRoom()
	if room == "" {
		return fmt.Errorf("lock-room: not in a room")
	}
	if s.sessions.Lock(room, c.id, payload.Locked) != nil {
		s.broadcastRoomState(ctx, room)
	}
	return nil
}

func (s *Server) handleKick(ctx context.Context, c *client, msg Message) error {
	var payload TargetPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}

	room, _ := c.currentRoom()
	if room == "" {
		return fmt.Errorf("kick-user: not in a room")
	}

	target := domain.SocketID(payload.TargetID)
	_, kicked := s.sessions.Kick(room, c.id, target)
	if !kicked {
		return nil
	}

	s.sendTo(target, map[string]interface{}{"type": "kicked", "room": room})
	s.mu.RLock()
	targetClient, ok := s.clients[target]
	s.mu.RUnlock()
	if ok {
		targetClient.conn.Close()
	}
	s.broadcastRoomState(ctx, room)
	return nil
}

func (s *Server) handleChat(ctx context.Context, c *client, msg Message) error {
	var payload ChatPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}

	room, name := c.currentRoom()
	if room == "" {
		return fmt.Errorf("chat: not in a room")
	}
	s.broadcast(room, map[string]interface{}{
		"type": "chat",
		"from": c.id,
		"name": name,
		"text": payload.Text,
	})
	return nil
}

func (s *Server) handleSetTitle(ctx context.Context, c *client, msg Message) error {
	var payload SetTitlePayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}
	if len(payload.Title) > validation.MaxTitleLength {
		return fmt.Errorf("set-stream-title: title is too long")
	}

	room, _ := c.currentRoom()
	if room == "" {
		return fmt.Errorf("set-stream-title: not in a room")
	}
	if state := s.sessions.SetTitle(room, c.id, payload.Title); state != nil {
		s.syncLiveState(ctx, room, state)
		s.broadcastRoomState(ctx, room)
	}
	return nil
}

func (s *Server) handleRequestCall(ctx context.Context, c *client, requesting bool) error {
	room, _ := c.currentRoom()
	if room == "" {
		return fmt.Errorf("request-call: not in a room")
	}
	if s.sessions.SetRequestingCall(room, c.id, requesting) != nil {
		s.broadcastRoomState(ctx, room)
	}
	return nil
}

// handleForward relays a negotiation envelope to the named target. The
// payload is decoded for addressing and schema checks only; the bytes sent
// on are the sender's, verbatim. Delivery is best effort: a dead target
// drops the payload silently.
func (s *Server) handleForward(c *client, msg Message) error {
	var payload NegotiationPayload
	if err := decodePayload(msg, &payload); err != nil {
		return err
	}
	if payload.Target == "" {
		return fmt.Errorf("%s: target is required", msg.Type)
	}

	delivered := s.sendTo(domain.SocketID(payload.Target), map[string]interface{}{
		"type":    msg.Type,
		"from":    c.id,
		"payload": msg.Payload,
	})
	if delivered {
		s.metrics.RecordForward(msg.Type)
	} else {
		s.logger.Debugw("dropped forward to dead target", "type", msg.Type, "target", payload.Target)
	}
	return nil
}

func (s *Server) handleDisconnect(ctx context.Context, c *client) {
	s.mu.Lock()
	if current, ok := s.clients[c.id]; ok && current == c {
		delete(s.clients, c.id)
	}
	s.mu.Unlock()
	s.metrics.RecordDisconnect()

	room, _ := c.currentRoom()
	if room == "" {
		s.logger.Infow("socket disconnected", "socket_id", c.id)
		return
	}

	orphans := s.trees.Remove(room, c.id)
	if len(orphans) > 0 {
		for _, result := range s.trees.ReassignOrphans(room, orphans) {
			if result.Assigned {
				s.sendTo(result.ID, map[string]interface{}{
					"type":          "parent-changed",
					"new_parent_id": result.Parent,
					"tier":          result.Tier,
				})
				s.sendTo(result.Parent, map[string]interface{}{
					"type":     "child-connecting",
					"child_id": result.ID,
				})
			} else {
				// fall back to a direct connection to the host
				s.sendTo(result.ID, map[string]interface{}{
					"type":          "parent-changed",
					"new_parent_id": "",
				})
			}
		}
	}
	s.metrics.SetRelayNodes(string(room), s.trees.Size(room))

	state, empty := s.sessions.Leave(room, c.id)
	if empty {
		s.trees.Destroy(room)
		if err := s.directory.UpdateLiveState(ctx, room, false, 0, ""); err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warnw("failed to clear live state", "room", room, "error", err)
		}
	} else if state != nil {
		s.syncLiveState(ctx, room, state)
		s.broadcastRoomState(ctx, room)
	}

	s.logger.Infow("socket disconnected", "socket_id", c.id, "room", room)
}

// canManage allows room management from the current session owner or from a
// connection that authenticated with the room password.
func (s *Server) canManage(c *client, room domain.RoomName) bool {
	return c.isAuthed(room) || s.sessions.IsOwner(room, c.id)
}

// syncLiveState mirrors session liveness into the directory record so the
// public listing stays accurate. Unclaimed rooms have no record to update.
func (s *Server) syncLiveState(ctx context.Context, room domain.RoomName, state *domain.RoomState) {
	viewers := 0
	for _, u := range state.Users {
		if u.IsViewer {
			viewers++
		}
	}
	live := state.OwnerID != ""
	if err := s.directory.UpdateLiveState(ctx, room, live, viewers, state.StreamTitle); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warnw("failed to sync live state", "room", room, "error", err)
	}
}

func (s *Server) broadcastRoomState(ctx context.Context, room domain.RoomName) {
	state, ok := s.sessions.Snapshot(room)
	if !ok {
		return
	}
	state.Privacy = domain.PrivacyPublic
	if record, err := s.directory.Get(ctx, room); err == nil {
		state.Privacy = record.Privacy
		state.VipRequired = record.VipRequired
	}

	s.broadcast(room, map[string]interface{}{
		"type":         "room-update",
		"room":         state.Room,
		"users":        state.Users,
		"owner_id":     state.OwnerID,
		"locked":       state.Locked,
		"stream_title": state.StreamTitle,
		"privacy":      state.Privacy,
		"vip_required": state.VipRequired,
	})
}

func (s *Server) broadcast(room domain.RoomName, v interface{}) {
	for _, id := range s.sessions.Members(room) {
		s.sendTo(id, v)
	}
}

func (s *Server) sendTo(id domain.SocketID, v interface{}) bool {
	s.mu.RLock()
	c, ok := s.clients[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	if err := c.send(v); err != nil {
		s.logger.Debugw("send failed", "socket_id", id, "error", err)
		return false
	}
	return true
}

func (s *Server) ackOK(c *client, msgType string, body map[string]interface{}) {
	resp := map[string]interface{}{"type": msgType + "-result", "ok": true}
	for k, v := range body {
		resp[k] = v
	}
	if err := c.send(resp); err != nil {
		s.logger.Debugw("ack failed", "socket_id", c.id, "error", err)
	}
}

func (s *Server) ackErr(c *client, msgType string, reason error) {
	resp := map[string]interface{}{
		"type":  msgType + "-result",
		"ok":    false,
		"error": domain.ReasonCode(reason),
	}
	if err := c.send(resp); err != nil {
		s.logger.Debugw("ack failed", "socket_id", c.id, "error", err)
	}
}

func (s *Server) sendError(c *client, message string) {
	c.send(map[string]interface{}{"type": "error", "message": message})
}

// IsConnected reports whether a socket has a live connection.
func (s *Server) IsConnected(id domain.SocketID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.clients[id]
	return ok
}

// ConnectionCount returns the number of live connections.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}
