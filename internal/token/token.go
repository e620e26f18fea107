// Package token handles the enrollment token.
package token

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	// SecureType is the token type used to enroll with the cloud service.
	SecureType = "token-secure"
	// IngestType is the token type used to enroll with an on-prem cluster.
	IngestType = "token"

	DefaultFilePath = "/tmp/token.tok"
)

var (
	ErrEmptyToken = errors.New("enrollment token missing")
)

func Validate(token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrEmptyToken
	}

	return nil
}

// Type returns the token type the telemetry agent expects for the deployment.
func Type(cloud bool) string {
	if cloud {
		return SecureType
	}
	return IngestType
}

// Expiry returns the expiry time found in the token claims.
// The token is not verified: it is opaque to the device and only the service can check it.
// false is returned if the token is not a jwt or has no expiry.
func Expiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}

	_, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(token), &claims)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}

	return claims.ExpiresAt.Time, true
}

// WriteFile writes the token to path. The file is readable only by its owner.
func WriteFile(path, token string) error {
	if err := os.WriteFile(path, []byte(token), 0600); err != nil {
		return fmt.Errorf("cannot write token file '%w'", err)
	}

	return nil
}
