package kernel

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/opentcs-go/kernel/internal/kernelerr"
)

// User is one kernel account: a name, a bcrypt password hash, and the set
// of permission strings gating operations on the caller's behalf.
type User struct {
	Name         string
	PasswordHash string
	Permissions  []string
}

// Claims is the JWT payload issued on successful authentication.
type Claims struct {
	Username string `json:"sub"`
	jwt.RegisteredClaims
}

// CreateUser registers a new account with an initial password and
// permission set. Fails UserExists if the name is already taken.
func (s *Supervisor) CreateUser(name, password string, permissions []string) error {
	if err := s.checkMode("createUser", opAdmin); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return kernelerr.IllegalArgument("user name must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[name]; ok {
		return kernelerr.UserExists(name)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return kernelerr.IllegalArgument("password could not be hashed")
	}
	s.users[name] = &User{
		Name:         name,
		PasswordHash: string(hash),
		Permissions:  append([]string(nil), permissions...),
	}
	return nil
}

// SetUserPassword replaces name's password. Fails UserUnknown if no such
// account exists.
func (s *Supervisor) SetUserPassword(name, password string) error {
	if err := s.checkMode("setUserPassword", opAdmin); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[name]
	if !ok {
		return kernelerr.UserUnknown(name)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return kernelerr.IllegalArgument("password could not be hashed")
	}
	u.PasswordHash = string(hash)
	return nil
}

// SetUserPermissions replaces name's permission set.
func (s *Supervisor) SetUserPermissions(name string, permissions []string) error {
	if err := s.checkMode("setUserPermissions", opAdmin); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[name]
	if !ok {
		return kernelerr.UserUnknown(name)
	}
	u.Permissions = append([]string(nil), permissions...)
	return nil
}

// GetUserPermissions returns name's current permission set.
func (s *Supervisor) GetUserPermissions(name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[name]
	if !ok {
		return nil, kernelerr.UserUnknown(name)
	}
	return append([]string(nil), u.Permissions...), nil
}

// RemoveUser deletes name's account.
func (s *Supervisor) RemoveUser(name string) error {
	if err := s.checkMode("removeUser", opAdmin); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[name]; !ok {
		return kernelerr.UserUnknown(name)
	}
	delete(s.users, name)
	return nil
}

// RequirePermission fails Credentials if name's account lacks permission.
func (s *Supervisor) RequirePermission(name, permission string) error {
	perms, err := s.GetUserPermissions(name)
	if err != nil {
		return err
	}
	for _, p := range perms {
		if p == permission {
			return nil
		}
	}
	return kernelerr.Credentials("caller lacks permission " + permission)
}

// Authenticate verifies name/password and, on success, issues a signed JWT
// valid for ttl.
func (s *Supervisor) Authenticate(name, password string, ttl time.Duration) (string, error) {
	s.mu.RLock()
	u, ok := s.users[name]
	s.mu.RUnlock()
	if !ok {
		return "", kernelerr.Credentials("invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", kernelerr.Credentials("invalid credentials")
	}
	if len(s.jwtSecret) == 0 {
		return "", kernelerr.Credentials("jwt secret not configured")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	claims := Claims{
		Username: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   name,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken parses and verifies a JWT issued by Authenticate, returning
// its claims.
func (s *Supervisor) ValidateToken(tokenString string) (*Claims, error) {
	if len(s.jwtSecret) == 0 {
		return nil, kernelerr.Credentials("jwt secret not configured")
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, kernelerr.Credentials("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, kernelerr.Credentials("invalid token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, kernelerr.Credentials("invalid token")
	}
	return claims, nil
}
