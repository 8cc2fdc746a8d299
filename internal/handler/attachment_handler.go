package handler

import (
	"net/http"

	"carelink-chat/internal/domain/message"
	"carelink-chat/internal/services"
	"carelink-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type AttachmentHandler struct {
	service *services.AttachmentService
}

func NewAttachmentHandler(service *services.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{service: service}
}

// Presign returns a URL the client uploads the file to before referencing its key in a message.
func (h *AttachmentHandler) Presign(c *gin.Context) {
	var req httpdto.PresignAttachmentRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := caller(c)
	if !ok {
		return
	}

	res, err := h.service.CreatePresignedUpload(c.Request.Context(), services.PresignInput{
		UploaderID:  userID,
		Kind:        message.AttachmentKind(req.Kind),
		FileName:    req.FileName,
		ContentType: req.ContentType,
		FileSize:    req.FileSize,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.PresignAttachmentResponse{
		Key:       res.Key,
		UploadURL: res.UploadURL,
		FileURL:   res.FileURL,
		Headers:   res.Headers,
	}))
}
