package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/batch-extractor-bot/internal/dto"
	appErrors "github.com/noah-isme/batch-extractor-bot/pkg/errors"
	"github.com/noah-isme/batch-extractor-bot/pkg/response"
)

type chatResponder interface {
	HandleMessage(ctx context.Context, chatID, text string) ([]dto.ChatReply, error)
}

// ChatHandler accepts inbound chat messages from the transport webhook.
type ChatHandler struct {
	chat chatResponder
}

// NewChatHandler creates a new handler.
func NewChatHandler(chat chatResponder) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// PostMessage godoc
// @Summary Handle a chat message
// @Description Routes /start, /extract, index selections and search terms for one chat
// @Tags Chat
// @Accept json
// @Produce json
// @Param chatId path string true "Chat ID"
// @Param payload body dto.ChatMessageRequest true "Message"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /api/v1/chats/{chatId}/messages [post]
func (h *ChatHandler) PostMessage(c *gin.Context) {
	chatID := c.Param("chatId")
	var req dto.ChatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid message payload"))
		return
	}

	replies, err := h.chat.HandleMessage(c.Request.Context(), chatID, req.Text)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ChatMessageResponse{ChatID: chatID, Replies: replies})
}
