// Package apierror holds the JSON envelope returned with every rejected
// request.
package apierror

import "net/http"

type HTTPPart struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Error struct {
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	HTTP    HTTPPart               `json:"http"`
}

func (e Error) Error() string {
	return e.Message
}

func (e Error) StatusCode() int {
	return e.HTTP.Code
}

// WithDetail returns a copy of e carrying key in its details.
func (e Error) WithDetail(key string, value interface{}) Error {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	e.Details = details
	return e
}

func NewAPIError(msg string, status int) Error {
	return Error{
		Message: msg,
		HTTP: HTTPPart{
			Code:    status,
			Message: http.StatusText(status),
		},
	}
}

func BadRequest(err error) Error {
	return NewAPIError(err.Error(), http.StatusBadRequest)
}

// TooLarge reports a body over limit bytes.
func TooLarge(limit int64) Error {
	return NewAPIError("request body too large", http.StatusRequestEntityTooLarge).
		WithDetail("limit_bytes", limit)
}
