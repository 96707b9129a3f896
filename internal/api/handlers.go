package api

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-messenger/internal/chat"
	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/types"
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

type CreateConversationRequest struct {
	Type           types.ConversationType `json:"type"`
	Name           string                 `json:"name,omitempty"`
	ParticipantIds []string               `json:"participant_ids"`
}

type SendMessageRequest struct {
	ConversationId string            `json:"conversation_id"`
	ReceiverId     string            `json:"receiver_id"`
	Content        string            `json:"content"`
	Type           types.MessageType `json:"type,omitempty"`
	ReplyToId      string            `json:"reply_to_id,omitempty"`
	Metadata       map[string]any    `json:"metadata,omitempty"`
}

type EditMessageRequest struct {
	MessageId string `json:"message_id"`
	Content   string `json:"content"`
}

type ToggleReactionRequest struct {
	MessageId string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type ToggleReactionResponse struct {
	Added    bool            `json:"added"`
	Reaction *types.Reaction `json:"reaction,omitempty"`
}

type MessageWithReactions struct {
	types.Message
	Reactions []types.Reaction `json:"reactions,omitempty"`
}

func (s *MessengerApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *MessengerApp) createAccount(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	newUser, err := s.db.CreateAccount(database.CreateAccountParams{
		Username:     req.Username,
		EmailAddress: req.Email,
		PasswordHash: pwdHash,
	})
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, newUser)
}

func (s *MessengerApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&lr); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if lr.Email == "" || lr.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	account, err := s.db.GetAccountByEmail(lr.Email)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if account == nil || !verifyPassword(account.PasswordHash, lr.Password) {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	token, err := s.createJwtForSession(account.Id, defaultJwtExpiration)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, LoginResponse{Token: token, User: account.User})
}

func (s *MessengerApp) session(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	account, err := s.db.GetAccountById(userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if account == nil {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, account.User)
}

func (s *MessengerApp) listConversations(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	convs, err := s.db.ListConversationsForUser(userId)
	if err != nil {
		s.log.Println("list conversations:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, convs)
}

// createConversation creates a group conversation, or returns the
// existing direct conversation for the pair (at most one per unordered
// pair of users). Every participant's live connections are joined to
// the new room and receive conversation_created.
func (s *MessengerApp) createConversation(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sid, err := s.generateShortId()
	if err != nil {
		s.log.Println("generateShortId:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var conv types.Conversation
	switch req.Type {
	case types.ConversationDirect:
		if len(req.ParticipantIds) != 1 || req.ParticipantIds[0] == userId {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		conv, err = s.db.FindOrCreateDirectConversation(sid, userId, req.ParticipantIds[0])
	case types.ConversationGroup:
		if len(req.ParticipantIds) == 0 {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		participantIds := req.ParticipantIds
		if !slices.Contains(participantIds, userId) {
			participantIds = append(participantIds, userId)
		}
		conv, err = s.db.CreateGroupConversation(database.CreateGroupConversationParams{
			ExternalId:     sid,
			Name:           req.Name,
			CreatedBy:      userId,
			ParticipantIds: participantIds,
		})
	default:
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if err != nil {
		s.log.Println("create conversation:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	for _, p := range conv.Participants {
		s.cs.NotifyNewConversation(p.Id, conv)
	}

	s.writeJson(w, http.StatusCreated, conv)
}

// markConversationRead is the REST-driven bulk read operation: every
// unread message addressed to the caller in the conversation is marked
// read in one statement, with no per-message broadcast.
func (s *MessengerApp) markConversationRead(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conversationId := r.URL.Query().Get("conversation_id")
	if conversationId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	n, err := s.svc.MarkConversationRead(conversationId, userId)
	if err != nil {
		s.logChatError("mark conversation read", err)
		errResp := fromChatError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{"marked_read": n})
}

func (s *MessengerApp) getMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conversationId := r.URL.Query().Get("conversation_id")
	if conversationId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conv, err := s.db.FindConversation(conversationId, userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if conv == nil {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	before := time.Now().UTC()
	if b := r.URL.Query().Get("before"); b != "" {
		before, err = time.Parse(time.RFC3339, b)
		if err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		limit, err = strconv.Atoi(l)
		if err != nil || limit <= 0 {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	msgs, err := s.db.ListMessages(conversationId, before, limit)
	if err != nil {
		s.log.Println("list messages:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	resp := make([]MessageWithReactions, 0, len(msgs))
	for _, msg := range msgs {
		reactions, err := s.db.ListReactions(msg.Id)
		if err != nil {
			s.log.Println("list reactions:", err)
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		resp = append(resp, MessageWithReactions{Message: msg, Reactions: reactions})
	}

	s.writeJson(w, http.StatusOK, resp)
}

// sendMessage is the REST wrapper around the same lifecycle send the
// gateway uses. The fan-out goes through the hub so connected peers see
// the message in real time, and the addressee's personal channel gets a
// notification.
func (s *MessengerApp) sendMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.svc.Send(chat.SendParams{
		ConversationId: req.ConversationId,
		SenderId:       userId,
		ReceiverId:     req.ReceiverId,
		Content:        req.Content,
		Type:           req.Type,
		ReplyToId:      req.ReplyToId,
		Metadata:       req.Metadata,
	})
	if err != nil {
		s.logChatError("send message", err)
		errResp := fromChatError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.cs.NotifyNewMessage(msg.ConversationId, msg)
	s.cs.SendNotificationToUser(msg.ReceiverId, map[string]any{
		"conversation_id": msg.ConversationId,
		"message_id":      msg.Id,
		"sender_id":       msg.SenderId,
	})

	s.writeJson(w, http.StatusCreated, msg)
}

func (s *MessengerApp) editMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req EditMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.svc.Edit(req.MessageId, userId, req.Content)
	if err != nil {
		s.logChatError("edit message", err)
		errResp := fromChatError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, msg)
}

// deleteMessage hard-removes the message; peers are not notified in
// real time and keep a stale copy until their next history fetch.
func (s *MessengerApp) deleteMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messageId := r.URL.Query().Get("id")
	if messageId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.svc.Delete(messageId, userId); err != nil {
		s.logChatError("delete message", err)
		errResp := fromChatError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *MessengerApp) toggleReaction(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req ToggleReactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	reaction, added, err := s.svc.ToggleReaction(req.MessageId, userId, req.Emoji)
	if err != nil {
		s.logChatError("toggle reaction", err)
		errResp := fromChatError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, ToggleReactionResponse{Added: added, Reaction: reaction})
}

func (s *MessengerApp) presence(w http.ResponseWriter, r *http.Request) {
	if targetId := r.URL.Query().Get("user_id"); targetId != "" {
		s.writeJson(w, http.StatusOK, map[string]any{
			"user_id": targetId,
			"online":  s.cs.IsUserOnline(targetId),
		})
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{
		"online_count": s.cs.OnlineCount(),
	})
}

// serveWs authenticates the handshake and hands the connection to the
// hub. A failed handshake is terminally rejected before any room or
// lifecycle logic runs.
func (s *MessengerApp) serveWs(w http.ResponseWriter, r *http.Request) {
	userId, claims, err := s.authenticate(r)
	if err != nil {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	account, err := s.db.GetAccountById(userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if account == nil {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := chat.NewClient(uuid.NewString(), account.User, claims, conn, s.cs, s.log)

	s.cs.RegisterClient(client)
	go client.Write()
	go client.Read()
}

func (s *MessengerApp) logChatError(op string, err error) {
	if chat.Kind(err) == chat.KindInternal {
		s.log.Printf("%s: %v", op, err)
	}
}
