//go:generate go run go.uber.org/mock/mockgen -source=attachment_service.go -destination=../mocks/mock_object_store.go -package=mocks

package services

import (
	"context"
	"fmt"
	"path"
	"strings"

	"carelink-chat/internal/domain/message"
	chat_errors "carelink-chat/pkg/errors"

	"github.com/google/uuid"
)

const maxAttachmentBytes = 25 << 20

// ObjectStore is the blob storage used for attachments.
type ObjectStore interface {
	PresignPut(ctx context.Context, key, contentType string, sizeBytes int64) (string, map[string]string, error)
	FileURL(key string) string
	ObjectExists(ctx context.Context, key string) (bool, error)
}

type AttachmentService struct {
	store ObjectStore
}

func NewAttachmentService(store ObjectStore) *AttachmentService {
	return &AttachmentService{store: store}
}

type PresignInput struct {
	UploaderID  uuid.UUID
	Kind        message.AttachmentKind
	FileName    string
	ContentType string
	FileSize    int64
}

type PresignResult struct {
	Key       string
	UploadURL string
	FileURL   string
	Headers   map[string]string
}

var contentTypePrefixes = map[message.AttachmentKind][]string{
	message.AttachmentImage:    {"image/"},
	message.AttachmentAudio:    {"audio/"},
	message.AttachmentVideo:    {"video/"},
	message.AttachmentDocument: {"application/", "text/"},
}

func (s *AttachmentService) CreatePresignedUpload(ctx context.Context, in PresignInput) (PresignResult, error) {
	if in.UploaderID == uuid.Nil {
		return PresignResult{}, chat_errors.ErrUnauthenticated
	}
	if !in.Kind.Valid() {
		return PresignResult{}, fmt.Errorf("%w: unknown attachment kind %q", chat_errors.ErrInvalidInput, in.Kind)
	}
	if strings.TrimSpace(in.FileName) == "" || in.FileSize <= 0 || in.FileSize > maxAttachmentBytes {
		return PresignResult{}, fmt.Errorf("%w: file name and a size up to %d bytes are required", chat_errors.ErrInvalidInput, maxAttachmentBytes)
	}
	if !matchesKind(in.Kind, in.ContentType) {
		return PresignResult{}, fmt.Errorf("%w: content type %q does not match %s", chat_errors.ErrInvalidInput, in.ContentType, in.Kind)
	}

	key := buildObjectKey(in.UploaderID, uuid.New(), in.FileName)
	url, headers, err := s.store.PresignPut(ctx, key, in.ContentType, in.FileSize)
	if err != nil {
		return PresignResult{}, err
	}
	return PresignResult{Key: key, UploadURL: url, FileURL: s.store.FileURL(key), Headers: headers}, nil
}

// Verify checks that key belongs to ownerID and the object exists.
func (s *AttachmentService) Verify(ctx context.Context, ownerID uuid.UUID, key string) error {
	if !strings.HasPrefix(key, ownerPrefix(ownerID)) {
		return fmt.Errorf("%w: attachment does not belong to sender", chat_errors.ErrInvalidInput)
	}
	ok, err := s.store.ObjectExists(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: %v", chat_errors.ErrTransientStore, err)
	}
	if !ok {
		return fmt.Errorf("%w: attachment not uploaded", chat_errors.ErrInvalidInput)
	}
	return nil
}

func matchesKind(kind message.AttachmentKind, contentType string) bool {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	for _, prefix := range contentTypePrefixes[kind] {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

func ownerPrefix(ownerID uuid.UUID) string {
	return fmt.Sprintf("attachments/%s/", ownerID.String())
}

func buildObjectKey(ownerID, objectID uuid.UUID, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	return ownerPrefix(ownerID) + objectID.String() + ext
}
