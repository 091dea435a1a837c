package model

import "time"

type User struct {
	ID                    string     `json:"id"`
	Email                 string     `json:"email"`
	FirstName             string     `json:"first_name"`
	LastName              string     `json:"last_name"`
	PasswordHash          string     `json:"-"`
	Role                  string     `json:"role"`
	RefreshToken          string     `json:"-"`
	RefreshTokenExpiresAt *time.Time `json:"-"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// AccessClaims is the validated claim set extracted from a signed access token.
type AccessClaims struct {
	Subject   string
	Email     string
	TokenID   string
	ExpiresAt time.Time
}

type Profile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}
