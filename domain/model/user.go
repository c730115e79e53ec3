package model

import (
	"time"

	"github.com/golang-jwt/jwt"
)

// User is the application account that owns events and platform connections.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UserName  string    `json:"user_name"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserClaims are the JWT claims carried by the application's own auth tokens.
type UserClaims struct {
	UserName string `json:"user_name"`
	jwt.StandardClaims
}
