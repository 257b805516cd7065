package problems

import (
	"encoding/json"
	"net/http"
)

// Problem is a terminal HTTP outcome of the request pipeline. Messages are
// deliberately generic: credential and token failures must not reveal which
// check failed.
type Problem struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

var (
	BadRequest         = Problem{Status: http.StatusBadRequest, Code: "bad_request", Message: "malformed request body"}
	InvalidCredentials = Problem{Status: http.StatusUnauthorized, Code: "invalid_credentials", Message: "invalid username or password"}
	TokenInvalid       = Problem{Status: http.StatusUnauthorized, Code: "token_invalid", Message: "invalid or expired token"}
	Unauthorized       = Problem{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "authentication required"}
	Forbidden          = Problem{Status: http.StatusForbidden, Code: "forbidden", Message: "insufficient role"}
	NotFound           = Problem{Status: http.StatusNotFound, Code: "not_found", Message: "not found"}
	TooManyAttempts    = Problem{Status: http.StatusTooManyRequests, Code: "too_many_attempts", Message: "too many failed login attempts"}
	BackendUnreachable = Problem{Status: http.StatusBadGateway, Code: "backend_unreachable", Message: "upstream unreachable"}
	BackendTimeout     = Problem{Status: http.StatusGatewayTimeout, Code: "backend_timeout", Message: "upstream timed out"}
	Internal           = Problem{Status: http.StatusInternalServerError, Code: "internal", Message: "internal error"}
)

// Write renders the problem as a JSON response.
func Write(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
