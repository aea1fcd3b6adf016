package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"paper-vault/models"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ProviderIdentity ist die verifizierte Identität aus dem externen
// OAuth-Gateway. E-Mail ist Pflicht, Name und Avatar sind optional.
type ProviderIdentity struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// Claims sind die Session-Daten im JWT. Sie sind ein Cache über dem
// User-Datensatz und werden bei jedem Request gegen die Datenbank
// aufgefrischt; autoritativ ist immer die persistierte Rolle.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
	Role  string `json:"role"`
}

// SessionService bildet Identitäten auf User-Datensätze ab und stellt
// Session-Tokens aus.
type SessionService struct {
	Users  UserRepository
	Secret []byte
	TTL    time.Duration
	Log    *zap.Logger
}

func NewSessionService(users UserRepository, secret []byte, ttl time.Duration, log *zap.Logger) *SessionService {
	return &SessionService{Users: users, Secret: secret, TTL: ttl, Log: log}
}

// ResolveSignIn löst eine Provider-Identität gegen die users-Tabelle auf.
// Beim ersten Sign-in wird der Datensatz mit Rolle "user" angelegt,
// danach werden nur fehlende Namen/Avatare ergänzt. Jeder
// Persistenz-Fehler lehnt den Sign-in komplett ab: keine Session ohne
// auflösbaren Datensatz.
func (s *SessionService) ResolveSignIn(ctx context.Context, identity ProviderIdentity) (*models.User, error) {
	if strings.TrimSpace(identity.Email) == "" {
		return nil, ErrAuthRequired
	}

	user, err := s.Users.ByEmail(ctx, identity.Email)
	if errors.Is(err, ErrNotFound) {
		name := identity.Name
		if name == "" {
			name = FirstNameFallback(identity.Email)
		}
		user = &models.User{
			Email: identity.Email,
			Name:  name,
			Role:  models.RoleUser,
			Image: identity.Image,
		}
		if err := s.Users.Create(ctx, user); err != nil {
			s.Log.Error("Failed to create user on first sign-in", zap.String("email", identity.Email), zap.Error(err))
			return nil, err
		}
		return user, nil
	}
	if err != nil {
		s.Log.Error("User lookup failed during sign-in", zap.String("email", identity.Email), zap.Error(err))
		return nil, err
	}

	// Namen nur ergänzen, wenn er fehlt oder nur aus der E-Mail abgeleitet
	// war; Avatar nur, wenn noch keiner gesetzt ist.
	changed := false
	if identity.Name != "" && (user.Name == "" || user.Name == localPart(user.Email)) {
		user.Name = identity.Name
		changed = true
	}
	if user.Image == "" && identity.Image != "" {
		user.Image = identity.Image
		changed = true
	}
	if changed {
		if err := s.Users.Save(ctx, user); err != nil {
			s.Log.Error("Failed to backfill user on sign-in", zap.String("email", identity.Email), zap.Error(err))
			return nil, err
		}
	}
	return user, nil
}

// IssueToken stellt ein HS256-signiertes Session-Token für den User aus.
func (s *SessionService) IssueToken(user *models.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.TTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "paper-vault",
		},
		Email: user.Email,
		Name:  user.Name,
		Image: user.Image,
		Role:  user.Role,
	})
	return token.SignedString(s.Secret)
}

// ParseToken validiert ein Session-Token und gibt dessen Claims zurück.
func (s *SessionService) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Email == "" {
		return nil, ErrAuthRequired
	}
	return claims, nil
}

// Refresh überschreibt Rolle/Name/Avatar der Claims mit dem aktuellen
// Datenbank-Stand. Lesefehler werden geloggt und die alten Werte
// behalten: Verfügbarkeit vor Aktualität, aber ein Fehler kann niemals
// eine höhere Rolle verleihen.
func (s *SessionService) Refresh(ctx context.Context, claims *Claims) {
	user, err := s.Users.ByEmail(ctx, claims.Email)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.Log.Warn("Session refresh failed, keeping previous claims", zap.String("email", claims.Email), zap.Error(err))
		}
		return
	}
	claims.Role = user.Role
	if user.Name != "" {
		claims.Name = user.Name
	}
	if user.Image != "" {
		claims.Image = user.Image
	}
}

// FirstName leitet den anzuzeigenden Vornamen ab: erstes Token des
// Namens, sonst Local-Part der E-Mail, sonst "User".
func FirstName(name, email string) string {
	if name != "" {
		if first := strings.Fields(name); len(first) > 0 {
			return first[0]
		}
	}
	if lp := localPart(email); lp != "" {
		return lp
	}
	return "User"
}

// FirstNameFallback ist der Default-Name für neue User ohne
// Provider-Namen.
func FirstNameFallback(email string) string {
	if lp := localPart(email); lp != "" {
		return lp
	}
	return "User"
}

func localPart(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return ""
}
