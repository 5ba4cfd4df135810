package authclient

// StatusResponse is the body returned by the session endpoints.
type StatusResponse struct {
	Status string `json:"status"`
	User   string `json:"user,omitempty"`
}

// HealthChecks reports the state of the service's dependencies.
type HealthChecks struct {
	Store string `json:"store"`
}

// HealthResponse is the body returned by the health endpoints.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// ErrorResponse mirrors the JSON error body written by the service.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}
