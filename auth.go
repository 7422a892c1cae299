package main

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	pairingAudience  = "headset"
	loginRateWindow  = 60 * time.Second
	maxLoginAttempts = 10
)

var (
	ErrInvalidToken = errors.New("invalid pairing token")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("too many login attempts, try again later")
)

// Auth issues the pairing tokens that bind a headset to a session and checks
// operator credentials.
type Auth struct {
	jwtSecret []byte
	expiry    time.Duration

	adminUser string
	adminHash []byte

	// Failed credential checks per IP
	rateMu  sync.Mutex
	rateMap map[string]*rateEntry
}

type rateEntry struct {
	Count   int
	ResetAt time.Time
}

// NewAuth creates a new Auth handler
func NewAuth(db *DB, admin AdminConfig, expiry time.Duration) *Auth {
	return &Auth{
		jwtSecret: loadOrCreateSecret(db),
		expiry:    expiry,
		adminUser: admin.User,
		adminHash: []byte(admin.PassHash),
		rateMap:   make(map[string]*rateEntry),
	}
}

// loadOrCreateSecret loads the JWT secret from the database, or generates
// and persists a new one if none exists.
func loadOrCreateSecret(db *DB) []byte {
	if db != nil {
		if h := db.GetSetting("jwt_secret"); h != "" {
			if b, err := hex.DecodeString(h); err == nil && len(b) == 32 {
				return b
			}
		}
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic("failed to generate JWT secret: " + err.Error())
	}
	if db != nil {
		if err := db.SetSetting("jwt_secret", hex.EncodeToString(secret)); err != nil {
			Log.Warnw("could not persist JWT secret", "err", err)
		}
	}
	return secret
}

// AdminEnabled reports whether an operator password is configured.
func (a *Auth) AdminEnabled() bool {
	return len(a.adminHash) > 0
}

// CheckAdmin verifies operator credentials.
func (a *Auth) CheckAdmin(user, password, ip string) error {
	if !a.checkRate(ip) {
		return ErrRateLimited
	}
	if !a.AdminEnabled() {
		return ErrUnauthorized
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.adminUser)) == 1
	if bcrypt.CompareHashAndPassword(a.adminHash, []byte(password)) != nil || !userOK {
		a.noteFailure(ip)
		return ErrUnauthorized
	}
	return nil
}

// IssuePairingToken signs a token that lets one headset join sessionID.
func (a *Auth) IssuePairingToken(sessionID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		Audience:  jwt.ClaimStrings{pairingAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

// ValidatePairingToken checks that tokenStr was issued for sessionID.
func (a *Auth) ValidatePairingToken(tokenStr, sessionID string) error {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		return a.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithAudience(pairingAudience))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject != sessionID {
		return fmt.Errorf("%w: issued for another session", ErrInvalidToken)
	}
	return nil
}

// checkRate reports whether ip may still attempt to authenticate.
func (a *Auth) checkRate(ip string) bool {
	a.rateMu.Lock()
	defer a.rateMu.Unlock()

	entry, ok := a.rateMap[ip]
	if !ok || time.Now().After(entry.ResetAt) {
		delete(a.rateMap, ip)
		return true
	}
	return entry.Count < maxLoginAttempts
}

func (a *Auth) noteFailure(ip string) {
	a.rateMu.Lock()
	defer a.rateMu.Unlock()

	now := time.Now()
	entry, ok := a.rateMap[ip]
	if !ok || now.After(entry.ResetAt) {
		a.rateMap[ip] = &rateEntry{Count: 1, ResetAt: now.Add(loginRateWindow)}
		return
	}
	entry.Count++
}
