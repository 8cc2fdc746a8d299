package httpdto

type PresignAttachmentRequest struct {
	Kind        string `json:"kind" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
	FileName    string `json:"file_name" binding:"required"`
	FileSize    int64  `json:"file_size" binding:"required"`
}

type PresignAttachmentResponse struct {
	Key       string            `json:"key"`
	UploadURL string            `json:"upload_url"`
	FileURL   string            `json:"file_url"`
	Headers   map[string]string `json:"headers,omitempty"`
}
