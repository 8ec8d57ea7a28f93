package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	apperrors "loan-assistant/internal/common/errors"
	"loan-assistant/internal/common/validation"
	"loan-assistant/internal/conversation"
	"loan-assistant/internal/models"
	"loan-assistant/internal/underwriting"

	"github.com/go-chi/chi/v5"
)

var chatSchema = validation.MustCompile("chat request", `{
  "type": "object",
  "properties": {
    "thread_id": {"type": "string", "minLength": 1, "maxLength": 128},
    "message":   {"type": "string", "maxLength": 4000}
  },
  "required": ["thread_id", "message"]
}`)

const maxChatBody = 64 << 10

type chatRequest struct {
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
}

type chatResponse struct {
	Response       string           `json:"response"`
	NextStage      models.Stage     `json:"next_stage"`
	UserData       *models.Customer `json:"user_data"`
	SanctionLetter *string          `json:"sanction_letter"`
}

type uploadResponse struct {
	Status         string          `json:"status"`
	Decision       models.Decision `json:"decision"`
	BotReply       string          `json:"bot_reply"`
	SanctionLetter *string         `json:"sanction_letter"`
}

type offersResponse struct {
	underwriting.OfferTable
	Markdown string `json:"markdown"`
}

type errorBody struct {
	Error   string `json:"error"`
	Detail  string `json:"detail"`
	Details string `json:"details,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "active", "message": "System Ready"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxChatBody+1))
	if err != nil {
		s.writeError(w, apperrors.NewInvalidRequestError("unreadable body"))
		return
	}
	if len(body) > maxChatBody {
		s.writeError(w, apperrors.NewInvalidRequestError("body too large"))
		return
	}
	if err := chatSchema.ValidateBytes(body); err != nil {
		s.writeError(w, err)
		return
	}

	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, apperrors.NewInvalidRequestError(err.Error()))
		return
	}

	res, err := s.chat.ProcessTurn(r.Context(), req.ThreadID, req.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:       res.Reply,
		NextStage:      res.Stage,
		UserData:       res.Customer,
		SanctionLetter: optional(res.SanctionLetter),
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	threadID := r.URL.Query().Get("thread_id")
	if threadID == "" {
		s.writeError(w, apperrors.NewInvalidRequestError("thread_id query parameter is required"))
		return
	}

	maxBytes := int64(s.cfg.MaxUploadMB) << 20
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
				Error:  string(apperrors.ErrCodeInvalidDocument),
				Detail: fmt.Sprintf("File is larger than %d MB.", maxBytes>>20),
			})
			return
		}
		s.writeError(w, apperrors.NewInvalidDocumentError(fmt.Sprintf("missing file: %v", err)))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, apperrors.NewInvalidDocumentError(err.Error()))
		return
	}

	res, err := s.chat.ResolveUpload(r.Context(), threadID, conversation.Document{
		Name:    filepath.Base(header.Filename),
		Content: content,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	if !res.Processed {
		writeJSON(w, http.StatusOK, map[string]string{"message": res.Reply})
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		Status:         "processed",
		Decision:       res.Decision,
		BotReply:       res.Reply,
		SanctionLetter: optional(res.SanctionLetter),
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	if err := s.chat.ResetSession(r.Context(), threadID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Memory cleared for " + threadID})
}

func (s *Server) handleOffers(w http.ResponseWriter, r *http.Request) {
	amount, ok := conversation.ParseAmount(r.URL.Query().Get("amount"))
	if !ok {
		s.writeError(w, apperrors.NewInvalidRequestError("amount must be a positive number"))
		return
	}

	table := underwriting.BuildOfferTable(amount)
	writeJSON(w, http.StatusOK, offersResponse{OfferTable: table, Markdown: table.Markdown()})
}

func (s *Server) handleSanction(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name != filepath.Base(name) || !strings.HasSuffix(name, ".pdf") || strings.HasPrefix(name, ".") {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "NOT_FOUND", Detail: "No such sanction letter."})
		return
	}

	path := filepath.Join(s.sanctionDir, name)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "NOT_FOUND", Detail: "No such sanction letter."})
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}

// writeError maps a StandardError to its status. Server side failures get a
// generic notice; the details stay in the log.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	stdErr := apperrors.AsStandard(err)
	status := apperrors.HTTPStatus(stdErr.Code)

	if status >= http.StatusInternalServerError {
		s.logger.Error("request error", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
		})
		writeJSON(w, status, errorBody{
			Error:  string(stdErr.Code),
			Detail: "Something went wrong while processing your message. Please try again.",
		})
		return
	}

	writeJSON(w, status, errorBody{Error: string(stdErr.Code), Detail: stdErr.Message, Details: stdErr.Details})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
