package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectURL(t *testing.T) {
	key := "attachments/11111111-1111-4111-8111-111111111111/scan 1.png"

	assert.Equal(t,
		"https://cdn.example.com/attachments/11111111-1111-4111-8111-111111111111/scan%201.png",
		objectURL(S3Config{PublicBase: "https://cdn.example.com/", Bucket: "b"}, key))
	assert.Equal(t,
		"http://localhost:9000/chat/attachments/11111111-1111-4111-8111-111111111111/scan%201.png",
		objectURL(S3Config{Endpoint: "http://localhost:9000", Bucket: "chat"}, key))
	assert.Equal(t,
		"https://chat.s3.eu-west-1.amazonaws.com/attachments/11111111-1111-4111-8111-111111111111/scan%201.png",
		objectURL(S3Config{Bucket: "chat", Region: "eu-west-1"}, key))
	assert.Empty(t, objectURL(S3Config{Bucket: "chat"}, ""))
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(context.Background(), S3Config{Region: "us-east-1"})
	assert.Error(t, err)
	_, err = NewClient(context.Background(), S3Config{Region: "us-east-1", Bucket: "b", Endpoint: "not a url"})
	assert.Error(t, err)
}

func TestPresignPut(t *testing.T) {
	c, err := NewClient(context.Background(), S3Config{
		Region:    "us-east-1",
		Bucket:    "chat",
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "secret",
		Endpoint:  "http://localhost:9000",
	})
	require.NoError(t, err)

	u, headers, err := c.PresignPut(context.Background(), "attachments/a/b.pdf", "application/pdf", 1024)
	require.NoError(t, err)
	assert.Contains(t, u, "http://localhost:9000/chat/attachments/a/b.pdf")
	assert.Contains(t, u, "X-Amz-Signature=")
	assert.Equal(t, "application/pdf", headers["Content-Type"])
	assert.Equal(t, "1024", headers["Content-Length"])

	_, _, err = c.PresignPut(context.Background(), "", "application/pdf", 1)
	assert.Error(t, err)
}
