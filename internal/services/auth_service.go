package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"vestra/internal/models"
	"vestra/internal/repositories"
	"vestra/pkg/events"
	"vestra/pkg/mailer"

	"golang.org/x/crypto/bcrypt"
)

const (
	// codeExpiry is the validity window of a confirmation code, measured
	// lazily from its creation timestamp at verification time.
	codeExpiry = 5 * time.Minute
	// sessionTTL is the fixed validity window of a login session.
	sessionTTL = 30 * 24 * time.Hour
	// sessionTokenBytes of randomness per token, hex-encoded on the wire.
	sessionTokenBytes = 32
)

// AuthService implements the registration, confirmation, and login
// workflow. Registration never creates a user row directly; it parks the
// account data in the pending store until the emailed code comes back.
type AuthService struct {
	userRepo    repositories.UserRepository
	codeRepo    repositories.ConfirmationCodeRepository
	sessionRepo repositories.SessionRepository
	pending     repositories.PendingStore
	mail        mailer.Mailer
	publisher   events.Publisher // nil when no broker is configured
	bcryptCost  int
}

// NewAuthService creates a new AuthService. publisher may be nil.
func NewAuthService(
	userRepo repositories.UserRepository,
	codeRepo repositories.ConfirmationCodeRepository,
	sessionRepo repositories.SessionRepository,
	pending repositories.PendingStore,
	mail mailer.Mailer,
	publisher events.Publisher,
	bcryptCost int,
) *AuthService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		userRepo:    userRepo,
		codeRepo:    codeRepo,
		sessionRepo: sessionRepo,
		pending:     pending,
		mail:        mail,
		publisher:   publisher,
		bcryptCost:  bcryptCost,
	}
}

// NormalizeEmail lowercases and trims an address. Every read and write in
// the workflow goes through this, so two spellings of one address always
// land on the same rows and map keys.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register starts a registration: rejects taken emails, issues a fresh
// 6-digit code (replacing any earlier one), emails it, and only after the
// email goes out records the pending registration. A failed send deletes
// the just-inserted code so no confirmable state exists without a
// deliverable code.
func (s *AuthService) Register(name, email, password string) error {
	email = NormalizeEmail(email)

	if _, err := s.userRepo.GetByEmail(email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("failed to check existing user: %w", err)
	}

	code, err := generateConfirmationCode()
	if err != nil {
		return fmt.Errorf("failed to generate confirmation code: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	// Persist the code before sending: a delivery retry from the caller's
	// side still finds a valid code waiting.
	if _, err := s.codeRepo.Replace(email, code); err != nil {
		return fmt.Errorf("failed to store confirmation code: %w", err)
	}

	if err := s.mail.SendConfirmationCode(email, code); err != nil {
		log.Printf("Failed to send confirmation email to %s: %v", email, err)
		if cleanupErr := s.codeRepo.DeleteAllForEmail(email); cleanupErr != nil {
			log.Printf("Failed to clean up confirmation codes for %s: %v", email, cleanupErr)
		}
		return ErrEmailDelivery
	}

	// Only a delivered code earns a promotable pending record.
	s.pending.Put(models.PendingRegistration{
		Name:     name,
		Email:    email,
		Password: string(hashedPassword),
	})

	s.publish(events.KeyRegistered, map[string]interface{}{"email": email})
	return nil
}

// Confirm verifies an emailed code and promotes the matching pending
// registration into a durable user. The database unique index on email is
// what actually decides a race between two confirmations; the existence
// pre-check only shortcuts the common case.
func (s *AuthService) Confirm(email, code string) (*models.User, error) {
	email = NormalizeEmail(email)

	stored, err := s.codeRepo.FindLatest(email, code)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("failed to look up confirmation code: %w", err)
	}

	if time.Since(stored.CreatedAt) > codeExpiry {
		if err := s.codeRepo.Delete(stored.ID); err != nil {
			log.Printf("Failed to delete expired code for %s: %v", email, err)
		}
		return nil, ErrCodeExpired
	}

	pendingData, ok := s.pending.Get(email)
	if !ok {
		return nil, ErrPendingNotFound
	}

	// Re-check right before creating: registration may have completed
	// through another request since the code was issued.
	if _, err := s.userRepo.GetByEmail(email); err == nil {
		if delErr := s.codeRepo.Delete(stored.ID); delErr != nil {
			log.Printf("Failed to delete confirmation code for %s: %v", email, delErr)
		}
		s.pending.Delete(email)
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	user := &models.User{
		Name:     pendingData.Name,
		Email:    email,
		Password: pendingData.Password,
	}
	if err := s.codeRepo.PromotePending(stored, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateEmail) {
			// Lost the race: someone else created the account between the
			// check and the insert.
			s.pending.Delete(email)
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.pending.Delete(email)

	s.publish(events.KeyConfirmed, map[string]interface{}{"user_id": user.ID, "email": email})
	return user, nil
}

// Login verifies credentials and mints an opaque session token valid for
// 30 days. Unknown email and wrong password produce the same error;
// disabled accounts get their own.
func (s *AuthService) Login(email, password string) (*models.User, string, error) {
	email = NormalizeEmail(email)

	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if user.DeletedAt.Valid {
		return nil, "", ErrAccountDisabled
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := generateSessionToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate session token: %w", err)
	}

	session := &models.Session{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: time.Now().Add(sessionTTL),
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	s.publish(events.KeyLogin, map[string]interface{}{"user_id": user.ID, "email": email})
	return user, token, nil
}

// ValidateSession resolves a bearer token to its live user. Expired
// session rows are deleted on the way out, the lazy counterpart of the
// 30-day window set at login.
func (s *AuthService) ValidateSession(token string) (*models.User, error) {
	session, err := s.sessionRepo.GetByToken(token)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}

	if session.Expired(time.Now()) {
		if err := s.sessionRepo.DeleteByToken(token); err != nil {
			log.Printf("Failed to delete expired session: %v", err)
		}
		return nil, ErrInvalidSession
	}

	user, err := s.userRepo.GetByID(session.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// User deleted or disabled since the session was issued.
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}
	return user, nil
}

// Logout discards the session behind the token.
func (s *AuthService) Logout(token string) error {
	return s.sessionRepo.DeleteByToken(token)
}

// publish emits an auth event when a broker is wired. Failures are logged
// and swallowed; the workflow never depends on the broker.
func (s *AuthService) publish(key string, payload map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(key, payload); err != nil {
		log.Printf("Warning: failed to publish %s event: %v", key, err)
	}
}

// generateConfirmationCode returns a uniformly random 6-digit decimal
// string, leading zeros preserved.
func generateConfirmationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// generateSessionToken returns a fresh opaque bearer token: 32 random
// bytes, hex-encoded, carrying nothing derived from the user.
func generateSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
