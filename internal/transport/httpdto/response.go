// Package httpdto holds the JSON shapes of the HTTP API. Every response is wrapped in
// Response: success carries data, failure carries a message and a stable error code.
package httpdto

type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{Success: true, Data: data}
}

func NewErrorResponse(msg, code string) Response[any] {
	return Response[any]{Error: msg, Code: code}
}
