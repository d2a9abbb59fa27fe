/*
Package user contains the relay's account directory.

Accounts live in memory for the life of the process. Passwords are stored as bcrypt hashes
and usernames are unique.
*/
package user

import (
	"regexp"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"swiftchat/internal/pkg/errs"
	"swiftchat/internal/pkg/logx"
	"swiftchat/internal/pkg/randx"
)

var usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_]{3,32}$`)

const (
	minPasswordLen = 6
	maxPasswordLen = 72 // bcrypt ignores bytes past 72
)

// User represents a registered account.
type User struct {
	// ID is the unique identifier assigned at registration; it becomes the token subject.
	ID string `json:"id"`

	// Username is the login name and the display name in rooms.
	Username string `json:"username"`

	// CreatedAt records the registration time.
	CreatedAt time.Time `json:"created_at"`

	passwordHash []byte
}

// Directory is a concurrency-safe in-memory account store.
type Directory struct {
	mu     sync.RWMutex
	byName map[string]*User
	byID   map[string]*User
	cost   int
}

// NewDirectory creates an empty Directory. A zero cost selects bcrypt.DefaultCost.
func NewDirectory(cost int) *Directory {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Directory{
		byName: make(map[string]*User),
		byID:   make(map[string]*User),
		cost:   cost,
	}
}

// Register creates a new account.
func (d *Directory) Register(username, password string) (User, *errs.CustomError) {
	if !usernameRegex.MatchString(username) {
		return User{}, errs.NewError(errs.ErrInvalidUsername)
	}

	passwordLen := utf8.RuneCountInString(password)
	if passwordLen < minPasswordLen || len(password) > maxPasswordLen {
		return User{}, errs.NewError(errs.ErrInvalidPassword)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		logx.Error(err, "failed to hash password", "username", username)
		return User{}, errs.NewError(errs.ErrUnknown, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, taken := d.byName[username]; taken {
		logx.Warn("registration conflict: username already exists", "username", username)
		return User{}, errs.NewError(errs.ErrUserAlreadyExists)
	}

	u := &User{
		ID:           randx.UserID(),
		Username:     username,
		CreatedAt:    time.Now(),
		passwordHash: hash,
	}
	d.byName[username] = u
	d.byID[u.ID] = u

	return *u, nil
}

// Authenticate checks a username and password pair.
func (d *Directory) Authenticate(username, password string) (User, *errs.CustomError) {
	d.mu.RLock()
	u, ok := d.byName[username]
	d.mu.RUnlock()

	if !ok {
		logx.Warn("login: unknown username", "username", username)
		return User{}, errs.NewError(errs.ErrInvalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)); err != nil {
		logx.Warn("login: password mismatch", "username", username)
		return User{}, errs.NewError(errs.ErrInvalidCredentials)
	}

	return *u, nil
}

// Get looks an account up by id.
func (d *Directory) Get(id string) (User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.byID[id]
	if !ok {
		return User{}, false
	}
	return *u, true
}
