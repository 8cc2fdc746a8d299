package handler

import (
	"net/http"

	"carelink-chat/internal/services"
	"carelink-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	service *services.MessageService
}

func NewMessageHandler(service *services.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

// Send appends a message. A repeated client_message_id returns the stored message again.
func (h *MessageHandler) Send(c *gin.Context) {
	var req httpdto.SendMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := caller(c)
	if !ok {
		return
	}
	conversationID, ok := pathID(c, "conversation")
	if !ok {
		return
	}

	msg, err := h.service.Append(c.Request.Context(), services.SendInput{
		ConversationID:  conversationID,
		SenderID:        userID,
		Content:         req.Content,
		Attachment:      req.Attachment.ToDomain(),
		ClientMessageID: req.ClientMessageID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromMessage(msg)))
}

func (h *MessageHandler) List(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	conversationID, ok := pathID(c, "conversation")
	if !ok {
		return
	}
	limit, offset := services.NormalizePage(queryInt(c, "limit"), queryInt(c, "offset"))

	items, err := h.service.List(c.Request.Context(), conversationID, userID, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListMessagesResponse{
		Messages: httpdto.FromMessageSlice(items),
		Limit:    limit,
		Offset:   offset,
	}))
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	conversationID, ok := pathID(c, "conversation")
	if !ok {
		return
	}
	marked, err := h.service.MarkRead(c.Request.Context(), conversationID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MarkReadResponse{Marked: marked}))
}

// Delete soft-deletes one of the caller's own messages.
func (h *MessageHandler) Delete(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	messageID, ok := pathID(c, "message")
	if !ok {
		return
	}
	if err := h.service.SoftDelete(c.Request.Context(), messageID, userID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}
