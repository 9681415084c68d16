package service

// TokenResponse is the body returned by every flow that issues tokens.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	Message      string `json:"message,omitempty"`
}

// MessageResponse is the body for flows that only report an outcome.
type MessageResponse struct {
	Message string `json:"message"`
}
