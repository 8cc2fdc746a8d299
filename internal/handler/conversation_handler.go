package handler

import (
	"net/http"

	"carelink-chat/internal/services"
	"carelink-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const defaultContactsLimit = 20

type ConversationHandler struct {
	service *services.ConversationService
}

func NewConversationHandler(service *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// Create answers 201 for a new conversation and 200 when the pair already had one.
func (h *ConversationHandler) Create(c *gin.Context) {
	var req httpdto.CreateConversationRequest
	if !bindJSON(c, &req) {
		return
	}
	creatorID, ok := caller(c)
	if !ok {
		return
	}
	participantID, err := uuid.Parse(req.ParticipantID)
	if err != nil {
		badRequest(c, "invalid participant_id")
		return
	}

	conv, created, err := h.service.FindOrCreate(c.Request.Context(), creatorID, participantID, req.AppointmentID)
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, httpdto.NewSuccessResponse(httpdto.CreateConversationResponse{
		Conversation: httpdto.FromConversation(conv),
		Created:      created,
	}))
}

func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	items, err := h.service.GetUserConversations(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListConversationsResponse{
		Conversations: httpdto.FromConversationList(items),
		Total:         len(items),
	}))
}

func (h *ConversationHandler) GetByID(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	conversationID, ok := pathID(c, "conversation")
	if !ok {
		return
	}
	view, err := h.service.GetConversation(c.Request.Context(), conversationID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromConversationView(view)))
}

// Contacts lists people the caller may start a conversation with.
func (h *ConversationHandler) Contacts(c *gin.Context) {
	userID, ok := caller(c)
	if !ok {
		return
	}
	limit := queryInt(c, "limit")
	if limit <= 0 {
		limit = defaultContactsLimit
	}
	contacts, err := h.service.Contacts(c.Request.Context(), userID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ContactsResponse{Contacts: contacts}))
}
