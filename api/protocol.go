package api

const requestMaxSize = 64 * 1024 // 64 KiB

const headerIdempotencyKey = "Idempotency-Key"

// Machine-distinguishable error categories surfaced to clients.
const (
	codeValidation = "VALIDATION_ERROR"
	codeNoFields   = "NO_FIELDS_ERROR"
	codeNotFound   = "NOT_FOUND_OR_UNAUTHORIZED"
	codeStorage    = "STORAGE_ERROR"
	codeDuplicate  = "DUPLICATE_REQUEST"
)

// errorResponse is the body returned for every failed request.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
