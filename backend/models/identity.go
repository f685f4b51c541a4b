package models

// Identity is a normalized identity verified by the external identity
// provider. It carries facts only and is never persisted as-is.
type Identity struct {
	ID      string `json:"id"`      // provider subject ("sub")
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"` // avatar URL
}
