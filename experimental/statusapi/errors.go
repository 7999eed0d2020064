package statusapi

var (
	ErrUnauthorized = newError("Unauthorized")
	ErrNotFound     = newError("Resource not found")
)

type HTTPError struct {
	Message string `json:"message"`
}

func newError(msg string) *HTTPError {
	return &HTTPError{Message: msg}
}
