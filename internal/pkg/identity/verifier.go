// Package identity verifies identity-provider (Clerk) session tokens via
// JWKS and resolves the caller's profile.
package identity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/qs3c/nextaction_server/config"
	"github.com/qs3c/nextaction_server/internal/model/dto"
	"github.com/qs3c/nextaction_server/internal/pkg/httpx"
)

const defaultLeeway = 30 * time.Second

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrMissingIssuer    = errors.New("identity issuer must be set")
	ErrMissingSecretKey = errors.New("identity secret key is not configured")
)

// Claims contains the verified token details we care about.
type Claims struct {
	Subject   string
	Issuer    string
	Email     string
	Name      string
	ExpiresAt time.Time
	Raw       map[string]any
}

// Verifier validates session tokens against the provider's JWKS and looks up
// user profiles through the provider's backend API.
type Verifier struct {
	issuer     string
	keyfunc    jwt.Keyfunc
	parser     *jwt.Parser
	apiBaseURL string
	secretKey  string
	httpClient *http.Client
}

// NewVerifier builds a verifier backed by a refreshing JWKS cache.
func NewVerifier(cfg *config.AuthConfig) (*Verifier, error) {
	issuer := resolveIssuer(cfg)
	if issuer == "" {
		return nil, ErrMissingIssuer
	}
	jwksURL := strings.TrimSpace(cfg.JWKSURL)
	if jwksURL == "" {
		jwksURL = issuer + "/.well-known/jwks.json"
	}

	keyProvider, err := keyfunc.NewDefault([]string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to init JWKS keyfunc: %w", err)
	}

	return NewVerifierWithKeyfunc(cfg, keyProvider.Keyfunc)
}

// NewVerifierWithKeyfunc builds a verifier with a caller-supplied key source.
func NewVerifierWithKeyfunc(cfg *config.AuthConfig, kf jwt.Keyfunc) (*Verifier, error) {
	issuer := resolveIssuer(cfg)
	if issuer == "" {
		return nil, ErrMissingIssuer
	}

	parser := jwt.NewParser(
		jwt.WithIssuer(issuer),
		jwt.WithLeeway(defaultLeeway),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Name, jwt.SigningMethodRS384.Name, jwt.SigningMethodRS512.Name}),
	)

	apiBaseURL := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if apiBaseURL == "" {
		apiBaseURL = "https://api.clerk.com"
	}

	return &Verifier{
		issuer:     issuer,
		keyfunc:    kf,
		parser:     parser,
		apiBaseURL: apiBaseURL,
		secretKey:  strings.TrimSpace(cfg.SecretKey),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Verify parses and validates a token, returning extracted claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	token, err := v.parser.Parse(tokenString, v.keyfunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims", ErrInvalidToken)
	}

	claims := &Claims{
		Subject: readString(mapClaims, "sub"),
		Issuer:  readString(mapClaims, "iss"),
		Email:   readString(mapClaims, "email"),
		Name:    readString(mapClaims, "name"),
		Raw:     mapClaims,
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	return claims, nil
}

// Authenticate verifies the token and returns the profile carried by its
// claims. Email may be empty; callers complete it with FetchProfile.
func (v *Verifier) Authenticate(ctx context.Context, tokenString string) (*dto.Profile, error) {
	claims, err := v.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	return &dto.Profile{
		ExternalID: claims.Subject,
		Email:      claims.Email,
		Name:       claims.Name,
	}, nil
}

// CanFetchProfile reports whether backend API lookups are configured.
func (v *Verifier) CanFetchProfile() bool {
	return v.secretKey != ""
}

type apiUser struct {
	ID                    string `json:"id"`
	FirstName             string `json:"first_name"`
	LastName              string `json:"last_name"`
	PrimaryEmailAddressID string `json:"primary_email_address_id"`
	EmailAddresses        []struct {
		ID           string `json:"id"`
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
}

// FetchProfile loads a user from the provider's backend API.
func (v *Verifier) FetchProfile(ctx context.Context, externalID string) (*dto.Profile, error) {
	if v.secretKey == "" {
		return nil, ErrMissingSecretKey
	}
	endpoint := v.apiBaseURL + "/v1/users/" + url.PathEscape(externalID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+v.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return nil, &httpx.HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var u apiUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}

	profile := &dto.Profile{
		ExternalID: externalID,
		Name:       strings.TrimSpace(u.FirstName + " " + u.LastName),
	}
	for _, e := range u.EmailAddresses {
		if e.ID == u.PrimaryEmailAddressID || profile.Email == "" {
			profile.Email = e.EmailAddress
		}
	}
	return profile, nil
}

// IssuerFromPublishableKey decodes the frontend API host embedded in a
// publishable key ("pk_test_<base64(host$)>").
func IssuerFromPublishableKey(key string) string {
	key = strings.TrimSpace(key)
	parts := strings.SplitN(key, "_", 3)
	if len(parts) != 3 || parts[0] != "pk" {
		return ""
	}
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(parts[2], "="))
	if err != nil {
		return ""
	}
	host := strings.TrimSuffix(string(raw), "$")
	if host == "" {
		return ""
	}
	return "https://" + host
}

func resolveIssuer(cfg *config.AuthConfig) string {
	issuer := strings.TrimRight(strings.TrimSpace(cfg.Issuer), "/")
	if issuer == "" {
		issuer = IssuerFromPublishableKey(cfg.PublishableKey)
	}
	return issuer
}

func readString(claims jwt.MapClaims, key string) string {
	if s, ok := claims[key].(string); ok {
		return s
	}
	return ""
}

// ExtractBearerToken returns the token of an "Authorization: Bearer" header.
func ExtractBearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
