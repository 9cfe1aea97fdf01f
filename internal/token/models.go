package token

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/mehmetcc/cmsgate/internal/person"
)

type Claims struct {
	UID          int64       `json:"uid"`
	Email        string      `json:"email"`
	Role         person.Role `json:"role"`
	Caps         []string    `json:"caps,omitempty"`
	SessionToken string      `json:"stk,omitempty"`
	jwt.RegisteredClaims
}
