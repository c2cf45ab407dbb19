package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-path/internal/ai"
	"github.com/p-n-ai/pai-path/internal/help"
)

const helpSessionIdle = 10 * time.Minute

type historyMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

type helpRequest struct {
	Message             string           `json:"message" validate:"required,max=4000"`
	ConversationHistory []historyMessage `json:"conversationHistory" validate:"max=50,dive"`
	TaskID              string           `json:"taskId"`
	UserID              string           `json:"userId"`
}

type helpResponse struct {
	Response string `json:"response"`
}

func toMessages(history []historyMessage) []ai.Message {
	out := make([]ai.Message, len(history))
	for i, m := range history {
		out[i] = ai.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	if s.help == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "help assistant is not configured", Code: "unavailable"})
		return
	}
	var req helpRequest
	if !s.decode(w, r, &req) {
		return
	}

	reply, err := s.help.Ask(r.Context(), help.Request{
		Message: req.Message,
		History: toMessages(req.ConversationHistory),
		TaskID:  req.TaskID,
		UserID:  req.UserID,
	})
	if err != nil {
		status, msg := help.UserError(err)
		slog.Warn("help request failed", "status", status, "task_id", req.TaskID, "error", err)
		writeJSON(w, status, ErrorResponse{Error: msg, Code: "help_failed", Retryable: status >= http.StatusTooManyRequests})
		return
	}
	writeJSON(w, http.StatusOK, helpResponse{Response: reply})
}

// helpFrame is sent to the client over the help socket.
type helpFrame struct {
	Type    string `json:"type"` // chunk, done or error
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
	Status  int    `json:"status,omitempty"`
}

type helpSocketMessage struct {
	Message string `json:"message"`
}

// handleHelpSocket runs an interactive help session. The server keeps the
// conversation history; each client frame is one question and is answered
// with a stream of chunk frames followed by done.
func (s *Server) handleHelpSocket(w http.ResponseWriter, r *http.Request) {
	if s.help == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "help assistant is not configured", Code: "unavailable"})
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	taskID := r.URL.Query().Get("taskId")
	userID := r.URL.Query().Get("userId")
	ctx := r.Context()
	var history []ai.Message

	for {
		readCtx, cancel := context.WithTimeout(ctx, helpSessionIdle)
		var msg helpSocketMessage
		err := wsjson.Read(readCtx, conn, &msg)
		cancel()
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && !errors.Is(err, context.Canceled) {
				slog.Debug("help session ended", "task_id", taskID, "error", err)
			}
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}

		question := strings.TrimSpace(msg.Message)
		reply, err := s.streamHint(ctx, conn, help.Request{
			Message: question,
			History: history,
			TaskID:  taskID,
			UserID:  userID,
		})
		if err != nil {
			if errors.Is(err, errSocketWrite) {
				return
			}
			status, text := help.UserError(err)
			if werr := wsjson.Write(ctx, conn, helpFrame{Type: "error", Error: text, Status: status}); werr != nil {
				return
			}
			continue
		}
		history = append(history,
			ai.Message{Role: "user", Content: question},
			ai.Message{Role: "assistant", Content: reply},
		)
	}
}

var errSocketWrite = errors.New("websocket write failed")

func (s *Server) streamHint(ctx context.Context, conn *websocket.Conn, req help.Request) (string, error) {
	ch, err := s.help.Stream(ctx, req)
	if err != nil {
		return "", err
	}

	var reply strings.Builder
	for chunk := range ch {
		if chunk.Error != nil {
			return "", chunk.Error
		}
		if chunk.Content != "" {
			reply.WriteString(chunk.Content)
			if err := wsjson.Write(ctx, conn, helpFrame{Type: "chunk", Content: chunk.Content}); err != nil {
				return "", errSocketWrite
			}
		}
		if chunk.Done {
			break
		}
	}
	if err := wsjson.Write(ctx, conn, helpFrame{Type: "done"}); err != nil {
		return "", errSocketWrite
	}
	return reply.String(), nil
}
