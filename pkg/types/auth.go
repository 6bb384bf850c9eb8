package types

// MessageResponse is the sign-in message issued by the wallet-auth hub
type MessageResponse struct {
	Message string `json:"message"`
}

// AuthRequest is a signed sign-in message
type AuthRequest struct {
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// User is the authenticated user as known to the hub
type User struct {
	ID            string   `json:"id"`
	WalletAddress string   `json:"walletAddress"`
	LinkedWallets []string `json:"linkedWallets,omitempty"`
	CreatedAt     string   `json:"createdAt"`
	UpdatedAt     string   `json:"updatedAt"`
}

// AuthResponse is returned by a successful login
type AuthResponse struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenPair represents access and refresh token pair
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshRequest represents a token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}
