package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ISL270/multi-agent-ai-realtor/internal/hermes"
)

// chatTimeout bounds a turn started from NATS.
const chatTimeout = 2 * time.Minute

// HandleChat answers a hermes.ChatMessage. A message without a session id
// starts a new session.
func (s *Service) HandleChat(data []byte) any {
	ctx, cancel := context.WithTimeout(context.Background(), chatTimeout)
	defer cancel()

	var msg hermes.ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Error("failed to parse chat message", "error", err)
		return hermes.ChatReply{Error: "invalid message: " + err.Error()}
	}

	if msg.SessionID == "" {
		st, err := s.CreateSession(ctx)
		if err != nil {
			s.logger.Error("create session failed", "error", err)
			return hermes.ChatReply{Error: err.Error()}
		}
		msg.SessionID = st.SessionID
	}

	reply, err := s.Send(ctx, msg.SessionID, msg.Text)
	if err != nil {
		s.logger.Warn("chat message failed", "session_id", msg.SessionID, "error", err)
		return hermes.ChatReply{SessionID: msg.SessionID, Error: err.Error()}
	}
	return hermes.ChatReply{
		SessionID: reply.SessionID,
		TurnID:    reply.TurnID,
		Reply:     reply.Text,
		Status:    string(reply.Status),
		View:      reply.View,
		Error:     reply.Error,
	}
}
