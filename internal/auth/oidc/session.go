// internal/auth/oidc/session.go
package oidc

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// defaultSessionLifetime applies when the provider does not report a refresh token lifetime
const defaultSessionLifetime = 30 * time.Minute

// SessionData holds the user's session information
type SessionData struct {
	Subject            string    `json:"subject"`
	Email              string    `json:"email,omitempty"`
	Name               string    `json:"name,omitempty"`
	AccessToken        string    `json:"access_token"`
	RefreshToken       string    `json:"refresh_token"`
	Expiry             time.Time `json:"expiry"`
	RefreshTokenExpiry time.Time `json:"refresh_token_expiry"`
}

// sessionCodec seals session data into an AES-GCM encrypted cookie value
type sessionCodec struct {
	cookieName string
	aead       cipher.AEAD
}

func newSessionCodec(cookieName, secret string) (*sessionCodec, error) {
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &sessionCodec{cookieName: cookieName, aead: aead}, nil
}

func (c *sessionCodec) seal(data SessionData) (string, error) {
	plaintext, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session data: %w", err)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	return base64.URLEncoding.EncodeToString(c.aead.Seal(nonce, nonce, plaintext, nil)), nil
}

func (c *sessionCodec) open(value string) (*SessionData, error) {
	encrypted, err := base64.URLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode session cookie: %w", err)
	}

	nonceSize := c.aead.NonceSize()
	if len(encrypted) < nonceSize {
		return nil, fmt.Errorf("encrypted data too short")
	}

	plaintext, err := c.aead.Open(nil, encrypted[:nonceSize], encrypted[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session data: %w", err)
	}

	var data SessionData
	if err := json.Unmarshal(plaintext, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}
	return &data, nil
}

// read returns the session carried by the request, if any
func (c *sessionCodec) read(r *http.Request) (*SessionData, error) {
	cookie, err := r.Cookie(c.cookieName)
	if err != nil {
		return nil, err
	}
	return c.open(cookie.Value)
}

// write stores the session in a cookie living as long as the refresh token
func (c *sessionCodec) write(w http.ResponseWriter, data SessionData) error {
	maxAge := int(defaultSessionLifetime.Seconds())
	if !data.RefreshTokenExpiry.IsZero() {
		maxAge = int(time.Until(data.RefreshTokenExpiry).Seconds())
	}
	if maxAge <= 0 {
		return fmt.Errorf("invalid cookie expiration time")
	}

	encoded, err := c.seal(data)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     c.cookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
	return nil
}

func (c *sessionCodec) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
	})
}

// refreshExpiry reads refresh_expires_in from the token response; ok is false when absent or malformed
func refreshExpiry(token *oauth2.Token, now time.Time) (time.Time, bool) {
	raw := token.Extra("refresh_expires_in")
	if raw == nil {
		return time.Time{}, false
	}
	seconds, err := strconv.Atoi(fmt.Sprintf("%v", raw))
	if err != nil {
		return time.Time{}, false
	}
	return now.Add(time.Duration(seconds) * time.Second), true
}
