package lockbox

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const defaultPasswordCost = bcrypt.DefaultCost

// WithPasswordCost sets the bcrypt cost used for new accounts.
// Costs outside bcrypt's range fall back to the default.
func (s *FileService) WithPasswordCost(cost int) *FileService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = defaultPasswordCost
	}
	s.passwordCost = cost
	return s
}

// Register creates a new account.
func (s *FileService) Register(username, password string) error {
	if username == "" || password == "" {
		return fmt.Errorf("%w: username and password are required", ErrInvalidCredentials)
	}

	existing, err := s.store.FindUser(username)
	if err != nil {
		return fmt.Errorf("checking for existing user: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ErrUserExists, username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.passwordCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		Username:  username,
		Secret:    string(hash),
		CreatedAt: s.clock.Now(),
	}
	if err := s.store.CreateUser(user); err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	s.recordEvent(EventRegister, fmt.Sprintf("User '%s' registered", username), username)
	s.logger.Info("user registered", "user", username)
	return nil
}

// Login checks a username/password pair. The session itself is issued by
// the caller.
func (s *FileService) Login(username, password string) (*User, error) {
	user, err := s.store.FindUser(username)
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if _, err := bcrypt.Cost([]byte(user.Secret)); err != nil {
		// Accounts imported from a users.json written before passwords were
		// hashed hold the plaintext password.
		if user.Secret == "" || subtle.ConstantTimeCompare([]byte(user.Secret), []byte(password)) != 1 {
			return nil, ErrInvalidCredentials
		}
		s.upgradeSecret(user, password)
	} else if err := bcrypt.CompareHashAndPassword([]byte(user.Secret), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}

	s.recordEvent(EventLogin, fmt.Sprintf("User '%s' logged in", username), username)
	return user, nil
}

// upgradeSecret replaces a plaintext secret with its bcrypt hash. Failure
// leaves the plaintext in place and is retried on the next login.
func (s *FileService) upgradeSecret(user *User, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.passwordCost)
	if err == nil {
		err = s.store.UpdateUserSecret(user.Username, string(hash))
	}
	if err != nil {
		s.logger.Warn("could not hash legacy password", "user", user.Username, "error", err)
		return
	}
	user.Secret = string(hash)
	s.logger.Info("hashed legacy password", "user", user.Username)
}

// Logout records the end of the actor's session.
func (s *FileService) Logout(actor string) {
	s.recordEvent(EventLogout, fmt.Sprintf("User '%s' logged out", actor), actor)
}
