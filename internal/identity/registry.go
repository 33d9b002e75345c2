// Package identity is the local identity provider: a registry of users with
// bcrypt-hashed passwords and a session file recording who is signed in.
// The task store only ever sees the opaque owner id it hands out.
package identity

import (
	"errors"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

const (
	usersFileName   = "users.yaml"
	sessionFileName = "session.yaml"

	// MinPasswordLength is the shortest accepted password, in characters.
	MinPasswordLength = 6
	// MaxPasswordBytes is bcrypt's input limit.
	MaxPasswordBytes = 72
)

var (
	ErrInvalidEmail       = errors.New("please enter a valid email")
	ErrNameRequired       = errors.New("name is required")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Identity is what the rest of the program knows about the signed-in user.
type Identity struct {
	OwnerID string
	Email   string
	Name    string
	Active  bool
}

// Provider supplies the current identity.
type Provider interface {
	Current() Identity
}

// User is a registered account.
type User struct {
	ID           string     `yaml:"id"`
	Email        string     `yaml:"email"`
	Name         string     `yaml:"name"`
	PasswordHash string     `yaml:"password_hash"`
	CreatedAt    time.Time  `yaml:"created_at"`
	LastLoginAt  *time.Time `yaml:"last_login_at,omitempty"`
}

type usersFile struct {
	Users []User `yaml:"users"`
}

type session struct {
	UserID     string    `yaml:"user_id"`
	Email      string    `yaml:"email"`
	Name       string    `yaml:"name"`
	SignedInAt time.Time `yaml:"signed_in_at"`
}

// SignupRequest carries the signup form.
type SignupRequest struct {
	Email           string
	Name            string
	Password        string
	ConfirmPassword string
}

// Registry stores users and the session under a directory.
type Registry struct {
	dir  string
	cost int
	now  func() time.Time
}

// NewRegistry creates a registry rooted at dir with bcrypt's default cost.
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir, cost: bcrypt.DefaultCost, now: time.Now}
}

// WithCost returns a copy of r that hashes with the given bcrypt cost.
func (r *Registry) WithCost(cost int) *Registry {
	c := *r
	c.cost = cost
	return &c
}

func (r *Registry) usersPath() string   { return filepath.Join(r.dir, usersFileName) }
func (r *Registry) sessionPath() string { return filepath.Join(r.dir, sessionFileName) }

// normalizeEmail trims and lowercases email and rejects anything that is not
// a bare address.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func validateSignup(req SignupRequest) (string, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(req.Name) == "" {
		return "", ErrNameRequired
	}
	if req.Password != req.ConfirmPassword {
		return "", ErrPasswordMismatch
	}
	if len([]rune(req.Password)) < MinPasswordLength {
		return "", ErrWeakPassword
	}
	if len(req.Password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	return email, nil
}

// Signup registers a new user and signs them in.
func (r *Registry) Signup(req SignupRequest) (User, error) {
	email, err := validateSignup(req)
	if err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), r.cost)
	if err != nil {
		return User{}, fmt.Errorf("hashing password: %w", err)
	}

	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
		CreatedAt:    r.now().UTC(),
	}
	err = r.updateUsers(func(f *usersFile) error {
		if slices.ContainsFunc(f.Users, func(u User) bool { return u.Email == email }) {
			return ErrEmailTaken
		}
		f.Users = append(f.Users, user)
		return nil
	})
	if err != nil {
		return User{}, err
	}

	if err := r.writeSession(user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Login verifies the credentials, records the login time and starts a
// session. Unknown emails and wrong passwords fail the same way.
func (r *Registry) Login(email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user User
	err := r.updateUsers(func(f *usersFile) error {
		i := slices.IndexFunc(f.Users, func(u User) bool { return u.Email == email })
		if i < 0 {
			return ErrInvalidCredentials
		}
		if bcrypt.CompareHashAndPassword([]byte(f.Users[i].PasswordHash), []byte(password)) != nil {
			return ErrInvalidCredentials
		}
		now := r.now().UTC()
		f.Users[i].LastLoginAt = &now
		user = f.Users[i]
		return nil
	})
	if err != nil {
		return User{}, err
	}

	if err := r.writeSession(user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Logout ends the session. Logging out while signed out is not an error.
func (r *Registry) Logout() error {
	if err := os.Remove(r.sessionPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing session: %w", err)
	}
	return nil
}

// Current returns the signed-in identity, or an inactive one when nobody is
// signed in or the session no longer matches a registered user.
func (r *Registry) Current() Identity {
	data, err := os.ReadFile(r.sessionPath())
	if err != nil {
		return Identity{}
	}
	var s session
	if err := yaml.Unmarshal(data, &s); err != nil || s.UserID == "" {
		return Identity{}
	}

	f, err := r.readUsers()
	if err != nil || !slices.ContainsFunc(f.Users, func(u User) bool { return u.ID == s.UserID }) {
		return Identity{}
	}
	return Identity{OwnerID: s.UserID, Email: s.Email, Name: s.Name, Active: true}
}

// Users returns every registered user.
func (r *Registry) Users() ([]User, error) {
	f, err := r.readUsers()
	if err != nil {
		return nil, err
	}
	return f.Users, nil
}

func (r *Registry) readUsers() (usersFile, error) {
	var f usersFile
	data, err := os.ReadFile(r.usersPath())
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return f, fmt.Errorf("reading users: %w", err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parsing users: %w", err)
	}
	return f, nil
}

// updateUsers runs fn on the users file under an exclusive lock and writes
// the result back when fn succeeds.
func (r *Registry) updateUsers(fn func(*usersFile) error) error {
	if err := os.MkdirAll(r.dir, 0o750); err != nil {
		return fmt.Errorf("creating identity directory: %w", err)
	}
	return withFileLock(r.usersPath()+".lock", func() error {
		f, err := r.readUsers()
		if err != nil {
			return err
		}
		if err := fn(&f); err != nil {
			return err
		}
		return writeYAML(r.usersPath(), f)
	})
}

func (r *Registry) writeSession(u User) error {
	return writeYAML(r.sessionPath(), session{
		UserID:     u.ID,
		Email:      u.Email,
		Name:       u.Name,
		SignedInAt: r.now().UTC(),
	})
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshalling %s: %w", filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}
