package types

import "github.com/golang-jwt/jwt/v5"

const RoleAdmin = "admin"

// AdminClaims represents the JWT claims carried by dashboard/admin tokens
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}
