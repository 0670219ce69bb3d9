// Package auth is the identity collaborator: it keeps server-side sessions
// keyed by an opaque cookie and manages username/password accounts in the
// users collection.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hanpama/contentgraph/internal/docstore"
	"github.com/hanpama/contentgraph/internal/model"
)

// sessionKey holds the user id inside the session.
const sessionKey = "userId"

// Options configures the session cookie and password hashing.
type Options struct {
	CookieName string
	Lifetime   time.Duration
	Secure     bool
	SameSite   http.SameSite
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Manager owns sessions and accounts.
type Manager struct {
	sessions *scs.SessionManager
	store    docstore.Store
	cost     int
	now      func() time.Time
	logger   *zap.Logger

	// serializes the username check and insert of registrations
	registerMu sync.Mutex
}

// NewManager returns a Manager storing accounts in store. Sessions are kept
// in memory.
func NewManager(store docstore.Store, opts Options, logger *zap.Logger) *Manager {
	sm := scs.New()
	if opts.CookieName != "" {
		sm.Cookie.Name = opts.CookieName
	}
	if opts.Lifetime > 0 {
		sm.Lifetime = opts.Lifetime
	}
	sm.Cookie.Secure = opts.Secure
	if opts.SameSite != 0 {
		sm.Cookie.SameSite = opts.SameSite
	}
	sm.Cookie.HttpOnly = true
	sm.Cookie.Path = "/"

	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions: sm,
		store:    store,
		cost:     cost,
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		logger:   logger,
	}
}

type loadedKey struct{}

// Attach loads the session for every request passing through next and
// commits it on the way out.
func (m *Manager) Attach(next http.Handler) http.Handler {
	return m.sessions.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), loadedKey{}, true)
		next.ServeHTTP(w, r.WithContext(ctx))
	}))
}

// Identity reports the user id bound to the request's session. Requests that
// did not pass through Attach have no identity.
func (m *Manager) Identity(r *http.Request) (string, bool) {
	if loaded, _ := r.Context().Value(loadedKey{}).(bool); !loaded {
		return "", false
	}
	id := m.sessions.GetString(r.Context(), sessionKey)
	return id, id != ""
}

// Mount registers the account endpoints on mux.
func (m *Manager) Mount(mux *http.ServeMux) {
	mux.HandleFunc("/auth/register", m.Register)
	mux.HandleFunc("/auth/login", m.Login)
	mux.HandleFunc("/auth/logout", m.Logout)
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

const minPasswordLen = 8

func (c credentials) validate() error {
	if !usernamePattern.MatchString(c.Username) {
		return errors.New("username must be 3 to 32 letters, digits, '.', '_' or '-'")
	}
	if len(c.Password) < minPasswordLen {
		return errors.Errorf("password must be at least %d characters", minPasswordLen)
	}
	if len(c.Password) > 72 {
		return errors.New("password must be at most 72 bytes")
	}
	return nil
}

// Register creates an account and logs it in.
func (m *Manager) Register(w http.ResponseWriter, r *http.Request) {
	creds, ok := m.decode(w, r)
	if !ok {
		return
	}
	if err := creds.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), m.cost)
	if err != nil {
		m.internal(w, "hash password", err)
		return
	}

	m.registerMu.Lock()
	existing, err := m.findByUsername(r.Context(), creds.Username)
	if err != nil {
		m.registerMu.Unlock()
		m.internal(w, "lookup username", err)
		return
	}
	if existing != nil {
		m.registerMu.Unlock()
		writeError(w, http.StatusConflict, "username already taken")
		return
	}
	id, err := m.store.InsertOne(r.Context(), docstore.Users, docstore.Document{
		model.FieldUsername:   creds.Username,
		model.FieldPassword:   string(hash),
		docstore.KeyCreatedAt: m.now(),
	})
	m.registerMu.Unlock()
	if err != nil {
		m.internal(w, "insert user", err)
		return
	}

	if err := m.login(r.Context(), id); err != nil {
		m.internal(w, "start session", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": account{ID: id, Username: creds.Username}})
}

// Login checks credentials and binds the account to a fresh session token.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request) {
	creds, ok := m.decode(w, r)
	if !ok {
		return
	}
	user, err := m.findByUsername(r.Context(), creds.Username)
	if err != nil {
		m.internal(w, "lookup username", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	hash, _ := user.String(model.FieldPassword)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(creds.Password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			m.logger.Warn("compare password", zap.String("user", user.ID()), zap.Error(err))
		}
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err := m.login(r.Context(), user.ID()); err != nil {
		m.internal(w, "start session", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": account{ID: user.ID(), Username: creds.Username}})
}

// Logout destroys the session.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := m.sessions.Destroy(r.Context()); err != nil {
		m.internal(w, "destroy session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (m *Manager) login(ctx context.Context, userID string) error {
	if err := m.sessions.RenewToken(ctx); err != nil {
		return errors.Wrap(err, "renew session token")
	}
	m.sessions.Put(ctx, sessionKey, userID)
	return nil
}

func (m *Manager) findByUsername(ctx context.Context, username string) (docstore.Document, error) {
	docs, err := m.store.Find(ctx, docstore.Users, docstore.Filter{model.FieldUsername: username}, docstore.Sort{})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

const maxCredentialBytes = 4 << 10

func (m *Manager) decode(w http.ResponseWriter, r *http.Request) (credentials, bool) {
	var creds credentials
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return creds, false
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCredentialBytes)).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return creds, false
	}
	return creds, true
}

func (m *Manager) internal(w http.ResponseWriter, op string, err error) {
	m.logger.Error("auth request failed", zap.String("op", op), zap.Error(err))
	if errors.Is(err, docstore.ErrUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
