package model

// AuthFailedMessage is the single message returned for every API key
// validation failure. Unknown, revoked, and expired keys must be
// indistinguishable to the caller.
const AuthFailedMessage = "invalid or missing API key"

// ErrorResponse is the standard JSON error envelope for API endpoints that
// return structured errors. The translate endpoint itself answers in plain
// text on success and uses this envelope only for failures.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the HTTP status code and a client-safe message.
type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// TranslateRequest is the JSON body accepted by POST /api/translate. The GET
// variant carries the same three fields as query parameters.
type TranslateRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
}
