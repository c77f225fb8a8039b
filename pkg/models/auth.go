package models

// Credentials is the login/signup request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the engine's answer to a successful login.
type LoginResponse struct {
	Status   string `json:"status"`
	Token    string `json:"token,omitempty"`
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
}
