package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is what a verified token says about its bearer.
type Identity struct {
	UserID string
	Role   string
}

func (i Identity) IsAdmin() bool { return i.Role == "admin" }

// Verifier checks access tokens issued by the user service, signed
// either with a shared HMAC secret or an RSA key pair.
type Verifier struct {
	alg    string
	secret []byte
	pub    *rsa.PublicKey
}

func NewHSVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("jwt: empty hs secret")
	}
	return &Verifier{alg: "HS256", secret: []byte(secret)}, nil
}

func NewRSVerifier(pubPath string) (*Verifier, error) {
	b, err := os.ReadFile(pubPath)
	if err != nil {
		return nil, err
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, err
	}
	return &Verifier{alg: "RS256", pub: pub}, nil
}

// NewVerifier picks the key type from alg.
func NewVerifier(alg, secret, pubPath string) (*Verifier, error) {
	switch strings.ToUpper(alg) {
	case "HS256":
		return NewHSVerifier(secret)
	case "RS256":
		return NewRSVerifier(pubPath)
	default:
		return nil, fmt.Errorf("jwt: unsupported alg %q", alg)
	}
}

func (v *Verifier) key(t *jwt.Token) (interface{}, error) {
	switch t.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if v.secret != nil {
			return v.secret, nil
		}
	case *jwt.SigningMethodRSA:
		if v.pub != nil {
			return v.pub, nil
		}
	}
	return nil, errors.New("unexpected signing method")
}

// Verify validates the signature and expiry and extracts the identity.
func (v *Verifier) Verify(token string) (Identity, error) {
	t, err := jwt.Parse(token, v.key, jwt.WithValidMethods([]string{v.alg}))
	if err != nil {
		return Identity{}, err
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok || !t.Valid {
		return Identity{}, errors.New("invalid claims")
	}
	id := Identity{}
	for _, k := range []string{"id", "user_id", "user_uuid", "sub"} {
		if s, ok := claims[k].(string); ok && s != "" {
			id.UserID = s
			break
		}
	}
	if id.UserID == "" {
		return Identity{}, errors.New("user id not found in token")
	}
	id.Role, _ = claims["role"].(string)
	return id, nil
}

// BearerToken pulls the token out of an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header empty")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}
