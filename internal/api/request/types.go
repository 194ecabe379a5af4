package request

// KeyExchangeRequest completes a key exchange. Big integers are decimal
// strings.
type KeyExchangeRequest struct {
	Modulus     string `json:"modulus"`
	Generator   string `json:"generator"`
	PublicValue string `json:"public_value"`
}

// RegisterRequest is the request body for registering a user. Password is
// the AES ciphertext of the password, base64 encoded.
type RegisterRequest struct {
	Username string `json:"username"`
	Password []byte `json:"password"`
	Email    string `json:"email"`
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Password []byte `json:"password"`
}

// UpdateUserRequest is the request body for updating a user
type UpdateUserRequest struct {
	Email string `json:"email"`
}

// AddFriendRequest is the request body for adding a friend
type AddFriendRequest struct {
	Friend string `json:"friend"`
}

// MoveRequest is the request body for proposing or verifying a move
type MoveRequest struct {
	StartLocation string `json:"start_location"`
	EndLocation   string `json:"end_location"`
	Result        string `json:"result,omitempty"`
}
