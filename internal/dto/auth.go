package dto

import "github.com/golang-jwt/jwt/v5"

// ==================== Admin Auth DTOs ====================

// AdminLoginRequest admin login body
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	TOTPCode string `json:"totp_code" binding:"required"`
}

// AdminLoginResponse admin login result
type AdminLoginResponse struct {
	Success   bool   `json:"success"`
	Token     string `json:"token,omitempty"`
	ExpiresAt int64  `json:"expires_at,omitempty"` // unix seconds
	Message   string `json:"message"`
}

// AdminJWTClaims claims carried by admin tokens
type AdminJWTClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}
