package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/civicpulse/hub/internal/api/dto"
)

// RoleKind discriminates the caller roles.
type RoleKind string

const (
	RoleAnonymous  RoleKind = ""
	RoleUser       RoleKind = "USER"
	RoleAdmin      RoleKind = "ADMIN"
	RoleDepartment RoleKind = "DEPARTMENT"
)

// Role is the single tagged role value. DepartmentID is set only for RoleDepartment.
type Role struct {
	Kind         RoleKind
	DepartmentID int64
}

func Anonymous() Role              { return Role{} }
func UserRole() Role               { return Role{Kind: RoleUser} }
func AdminRole() Role              { return Role{Kind: RoleAdmin} }
func DepartmentRole(id int64) Role { return Role{Kind: RoleDepartment, DepartmentID: id} }
func (r Role) IsAnonymous() bool   { return r.Kind == RoleAnonymous }

func (r Role) String() string {
	switch r.Kind {
	case RoleAnonymous:
		return "Anonymous"
	case RoleDepartment:
		return fmt.Sprintf("Department(%d)", r.DepartmentID)
	}
	return string(r.Kind)
}

// Session is the persisted login state. The zero value is the anonymous session.
type Session struct {
	Kind         RoleKind  `json:"role,omitempty"`
	UserID       int64     `json:"userId,omitempty"`
	DepartmentID int64     `json:"departmentId,omitempty"`
	Email        string    `json:"email,omitempty"`
	Token        string    `json:"token,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt,omitempty"`
}

// Role derives the caller role from the stored fields. A record that is
// inconsistent (a department session without its id, an unknown kind) is anonymous.
func (s Session) Role() Role {
	switch s.Kind {
	case RoleUser:
		if s.UserID > 0 {
			return UserRole()
		}
	case RoleAdmin:
		return AdminRole()
	case RoleDepartment:
		if s.DepartmentID > 0 {
			return DepartmentRole(s.DepartmentID)
		}
	}
	return Anonymous()
}

// Expired reports whether the token has passed its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Flags is the legacy flag view (isLoggedIn, isAdmin, userId, userEmail, dept_id).
type Flags struct {
	IsLoggedIn bool   `json:"isLoggedIn"`
	IsAdmin    bool   `json:"isAdmin"`
	UserID     string `json:"userId,omitempty"`
	UserEmail  string `json:"userEmail,omitempty"`
	DeptID     string `json:"dept_id,omitempty"`
}

// Flags renders the session in the legacy flag shape.
func (s Session) Flags() Flags {
	role := s.Role()
	if role.IsAnonymous() {
		return Flags{}
	}
	f := Flags{IsLoggedIn: true, IsAdmin: role.Kind == RoleAdmin, UserEmail: s.Email}
	if role.Kind == RoleUser {
		f.UserID = strconv.FormatInt(s.UserID, 10)
	}
	if role.Kind == RoleDepartment {
		f.DeptID = strconv.FormatInt(role.DepartmentID, 10)
	}
	return f
}

var ErrInvalidSession = errors.New("invalid session")

// SessionFromAuth converts a login response into a session. A citizen response
// without a structured userId falls back to the legacy "UserID:<n>" message.
func SessionFromAuth(resp dto.AuthResponse) (Session, error) {
	s := Session{
		Kind:      RoleKind(resp.Role),
		Email:     resp.Email,
		Token:     resp.Token,
		ExpiresAt: resp.ExpiresAt,
	}
	switch s.Kind {
	case RoleUser:
		s.UserID = resp.UserID
		if s.UserID == 0 {
			id, err := ParseLegacyUserID(resp.Message)
			if err != nil {
				return Session{}, err
			}
			s.UserID = id
		}
	case RoleDepartment:
		s.DepartmentID = resp.DepartmentID
	case RoleAdmin:
	default:
		return Session{}, fmt.Errorf("%w: unknown role %q", ErrInvalidSession, resp.Role)
	}
	if s.Role().IsAnonymous() {
		return Session{}, fmt.Errorf("%w: missing identity for %s", ErrInvalidSession, s.Kind)
	}
	return s, nil
}

// SessionStore persists one session document. Save and Clear replace the whole
// document; a partially written session is never observable.
type SessionStore interface {
	Load() (Session, error)
	Save(Session) error
	Clear() error
}

// MemoryStore keeps the session in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	session Session
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load() (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session, nil
}

func (m *MemoryStore) Save(s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s
	return nil
}

func (m *MemoryStore) Clear() error {
	return m.Save(Session{})
}

// FileStore keeps the session as a JSON file, written to a temp file and renamed
// into place.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore { return &FileStore{path: path} }

func (f *FileStore) Load() (Session, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

func (f *FileStore) Save(s Session) error {
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("create temp session: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	return nil
}

func (f *FileStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Sessions is the session/role store. Role is always derived from the stored
// document; nothing is cached beside it.
type Sessions struct {
	mu    sync.Mutex
	store SessionStore
}

func NewSessions(store SessionStore) *Sessions {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Sessions{store: store}
}

// Login replaces the stored session with s.
func (s *Sessions) Login(session Session) error {
	if session.Role().IsAnonymous() {
		return fmt.Errorf("%w: login requires an identity", ErrInvalidSession)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Save(session)
}

// Logout clears every stored field.
func (s *Sessions) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Clear()
}

// Current returns the stored session; an unreadable store reads as anonymous.
func (s *Sessions) Current() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.store.Load()
	if err != nil {
		return Session{}
	}
	return session
}

// CurrentRole derives the role from the stored session.
func (s *Sessions) CurrentRole() Role {
	return s.Current().Role()
}
