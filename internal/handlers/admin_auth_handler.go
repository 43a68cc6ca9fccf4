package handlers

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/FishIT-Mantle/fishit-sub000/internal/config"
	"github.com/FishIT-Mantle/fishit-sub000/internal/dto"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"
)

const (
	adminRole   = "admin"
	adminIssuer = "fishit-minter-admin"
)

// AdminAuthHandler admin login with password and TOTP, issuing HS256 tokens
type AdminAuthHandler struct {
	cfg       config.AdminConfig
	jwtSecret []byte
	log       *logrus.Logger
}

// NewAdminAuthHandler creates the handler. Login is refused until password,
// TOTP secret and JWT secret are all configured.
func NewAdminAuthHandler(cfg config.AdminConfig, log *logrus.Logger) *AdminAuthHandler {
	if cfg.Username == "" {
		cfg.Username = "admin"
	}
	if cfg.TokenTTLHours <= 0 {
		cfg.TokenTTLHours = 24
	}
	if cfg.Password == "" || cfg.TOTPSecret == "" || cfg.JWTSecret == "" {
		log.Warn("⚠️ Admin password, TOTP secret or JWT secret not set, admin login disabled")
	}
	return &AdminAuthHandler{
		cfg:       cfg,
		jwtSecret: []byte(cfg.JWTSecret),
		log:       log,
	}
}

func (h *AdminAuthHandler) configured() bool {
	return h.cfg.Password != "" && h.cfg.TOTPSecret != "" && len(h.jwtSecret) > 0
}

// AdminLoginHandler POST /api/admin/login
func (h *AdminAuthHandler) AdminLoginHandler(c *gin.Context) {
	if !h.configured() {
		c.JSON(http.StatusServiceUnavailable, dto.AdminLoginResponse{
			Success: false,
			Message: "Admin login is not configured",
		})
		return
	}

	var req dto.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.AdminLoginResponse{
			Success: false,
			Message: fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.cfg.Password)) == 1
	if !userOK || !passOK {
		h.log.WithFields(logrus.Fields{"username": req.Username, "client_ip": c.ClientIP()}).Warn("🚫 Admin login rejected")
		c.JSON(http.StatusUnauthorized, dto.AdminLoginResponse{
			Success: false,
			Message: "Invalid credentials",
		})
		return
	}

	if !totp.Validate(req.TOTPCode, h.cfg.TOTPSecret) {
		h.log.WithFields(logrus.Fields{"username": req.Username, "client_ip": c.ClientIP()}).Warn("🚫 Admin login rejected, bad TOTP code")
		c.JSON(http.StatusUnauthorized, dto.AdminLoginResponse{
			Success: false,
			Message: "Invalid TOTP code",
		})
		return
	}

	token, expiresAt, err := h.GenerateAdminJWTToken(req.Username)
	if err != nil {
		h.log.WithError(err).Error("❌ Failed to sign admin token")
		c.JSON(http.StatusInternalServerError, dto.AdminLoginResponse{
			Success: false,
			Message: "Failed to generate token",
		})
		return
	}

	h.log.WithField("username", req.Username).Info("🔐 Admin logged in")
	c.JSON(http.StatusOK, dto.AdminLoginResponse{
		Success:   true,
		Token:     token,
		ExpiresAt: expiresAt.Unix(),
		Message:   "Login successful",
	})
}

// GenerateAdminJWTToken signs an admin token valid for the configured TTL
func (h *AdminAuthHandler) GenerateAdminJWTToken(username string) (string, time.Time, error) {
	if len(h.jwtSecret) == 0 {
		return "", time.Time{}, errors.New("admin JWT secret not configured")
	}

	now := time.Now()
	expiresAt := now.Add(h.cfg.TokenTTL())
	claims := dto.AdminJWTClaims{
		Username: username,
		Role:     adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    adminIssuer,
			Subject:   username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(h.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateAdminJWTToken parses and verifies an admin token
func (h *AdminAuthHandler) ValidateAdminJWTToken(tokenString string) (*dto.AdminJWTClaims, error) {
	if len(h.jwtSecret) == 0 {
		return nil, errors.New("admin JWT secret not configured")
	}

	token, err := jwt.ParseWithClaims(tokenString, &dto.AdminJWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return h.jwtSecret, nil
	}, jwt.WithIssuer(adminIssuer))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*dto.AdminJWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// GenerateTOTPSecret creates a TOTP key for the admin account
func GenerateTOTPSecret(accountName string) (*otp.Key, error) {
	if accountName == "" {
		accountName = "admin"
	}
	return totp.Generate(totp.GenerateOpts{
		Issuer:      "FishIT Minter",
		AccountName: accountName,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
}
