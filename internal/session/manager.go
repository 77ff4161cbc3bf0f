package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/vidinsight/client/internal/apiclient"
	"github.com/vidinsight/client/internal/logging"
	"github.com/vidinsight/client/internal/models"
	"github.com/vidinsight/client/internal/storage"
)

var (
	// ErrMissingCredentials indicates an empty email or password.
	ErrMissingCredentials = errors.New("email and password are required")
	// ErrNotAuthenticated indicates an operation that needs a token ran without one.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrSessionChanged indicates a response that arrived after the session it
	// was requested for was logged out or replaced. The response is dropped.
	ErrSessionChanged = errors.New("session changed during request")
)

const (
	loginFailed   = "Login failed"
	signupFailed  = "Signup failed"
	profileFailed = "Failed to fetch profile"
)

// API is the subset of the backend client the session needs.
type API interface {
	Login(ctx context.Context, creds apiclient.Credentials) (models.AuthResult, error)
	Signup(ctx context.Context, creds apiclient.Credentials) (models.AuthResult, error)
	Profile(ctx context.Context) (models.User, error)
}

// State is a snapshot of the session.
type State struct {
	User            *models.User
	Token           string
	IsAuthenticated bool
	IsLoading       bool
	Error           string
}

// Manager owns the authenticated session: the token, the loaded user and the
// last credential error. It is safe for concurrent use.
type Manager struct {
	api     API
	store   storage.Store
	cookies CookieSink

	mu           sync.RWMutex
	state        State
	cleared      bool
	bootstrapped bool
	// generation advances whenever the token is installed or cleared.
	generation uint64

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int

	group singleflight.Group
}

// NewManager constructs a Manager. A nil cookie sink discards cookies.
func NewManager(api API, store storage.Store, cookies CookieSink) *Manager {
	if api == nil {
		panic("session: api must not be nil")
	}
	if store == nil {
		panic("session: storage must not be nil")
	}
	if cookies == nil {
		cookies = nopSink{}
	}
	return &Manager{
		api:     api,
		store:   store,
		cookies: cookies,
		subs:    make(map[int]func(State)),
	}
}

// State returns the current snapshot.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot()
}

// Token returns the bearer token, satisfying apiclient.TokenSource.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Token
}

// Subscribe registers fn to receive a snapshot after every mutation. The
// returned function removes the subscription.
func (m *Manager) Subscribe(fn func(State)) func() {
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

// Login exchanges credentials for a token and loads the user.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	return m.authenticate(ctx, "session.login", loginFailed, email, password, m.api.Login)
}

// Signup creates an account and signs in with it.
func (m *Manager) Signup(ctx context.Context, email, password string) error {
	return m.authenticate(ctx, "session.signup", signupFailed, email, password, m.api.Signup)
}

func (m *Manager) authenticate(
	ctx context.Context,
	span, fallback, email, password string,
	call func(context.Context, apiclient.Credentials) (models.AuthResult, error),
) (err error) {
	ctx, sp := logging.StartSpan(ctx, span)
	defer func() {
		sp.Fail(err)
		sp.End()
	}()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		m.update(func(s *State) { s.Error = ErrMissingCredentials.Error() })
		return ErrMissingCredentials
	}

	m.update(func(s *State) {
		s.IsLoading = true
		s.Error = ""
	})

	result, err := call(ctx, apiclient.Credentials{Email: email, Password: password})
	if err != nil {
		msg := apiclient.Message(err, fallback)
		m.update(func(s *State) {
			s.IsLoading = false
			s.Error = msg
		})
		return fmt.Errorf("%s: %w", strings.ToLower(fallback), err)
	}
	if result.Token == "" {
		m.update(func(s *State) {
			s.IsLoading = false
			s.Error = fallback
		})
		return fmt.Errorf("%s: empty token in response", strings.ToLower(fallback))
	}

	if err := m.persist(ctx, result.Token); err != nil {
		m.update(func(s *State) {
			s.IsLoading = false
			s.Error = fallback
		})
		return err
	}

	user := result.User
	m.update(func(s *State) {
		m.generation++
		s.IsLoading = false
		s.User = &user
		s.Token = result.Token
		s.IsAuthenticated = true
		s.Error = ""
	})
	logging.FromContext(ctx).Info("session established", slog.String("user_id", user.ID.String()))
	return nil
}

// FetchProfile refreshes the user from the profile endpoint. The token is
// never modified here. A response that arrives after Logout, or after another
// token was installed, is dropped with ErrSessionChanged.
func (m *Manager) FetchProfile(ctx context.Context) error {
	m.mu.RLock()
	token, gen := m.state.Token, m.generation
	m.mu.RUnlock()
	if token == "" {
		return ErrNotAuthenticated
	}
	return m.fetchProfile(ctx, gen)
}

func (m *Manager) fetchProfile(ctx context.Context, gen uint64) (err error) {
	ctx, sp := logging.StartSpan(ctx, "session.fetch_profile")
	defer func() {
		sp.Fail(err)
		sp.End()
	}()

	if !m.updateIf(gen, func(s *State) {
		s.IsLoading = true
		s.Error = ""
	}) {
		return ErrSessionChanged
	}

	user, err := m.api.Profile(ctx)
	if err != nil {
		msg := apiclient.Message(err, profileFailed)
		if !m.updateIf(gen, func(s *State) {
			s.IsLoading = false
			s.Error = msg
		}) {
			return ErrSessionChanged
		}
		return fmt.Errorf("fetch profile: %w", err)
	}

	if !m.updateIf(gen, func(s *State) {
		s.IsLoading = false
		s.User = &user
		s.IsAuthenticated = true
		s.Error = ""
	}) {
		logging.FromContext(ctx).Info("dropping profile for a cleared session")
		return ErrSessionChanged
	}
	return nil
}

// SetOAuthSession installs a session obtained from the OAuth redirect flow.
// user may be nil when the profile has not been fetched yet.
func (m *Manager) SetOAuthSession(ctx context.Context, user *models.User, token string) error {
	if token == "" {
		return ErrNotAuthenticated
	}
	if err := m.persist(ctx, token); err != nil {
		return err
	}
	m.update(func(s *State) {
		m.generation++
		if user != nil {
			u := *user
			s.User = &u
		}
		s.Token = token
		s.IsAuthenticated = true
		s.Error = ""
	})
	return nil
}

// Logout forgets the token everywhere and resets the session. Calling it
// again on a cleared session does nothing.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.RLock()
	done := m.cleared && m.state.Token == "" && m.state.User == nil
	m.mu.RUnlock()
	if done {
		return nil
	}

	if err := m.store.Delete(ctx, TokenKey); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	m.cookies.SetCookie(ClearCookie())

	m.update(func(s *State) {
		m.generation++
		*s = State{}
	})
	m.mu.Lock()
	m.cleared = true
	m.mu.Unlock()

	logging.FromContext(ctx).Info("session cleared")
	return nil
}

// SetCredits records a balance fetched elsewhere on the loaded user.
func (m *Manager) SetCredits(credits int) {
	m.mu.RLock()
	loaded := m.state.User != nil && m.state.User.Credits != credits
	m.mu.RUnlock()
	if !loaded {
		return
	}
	m.update(func(s *State) {
		if s.User != nil {
			u := *s.User
			u.Credits = credits
			s.User = &u
		}
	})
}

// ClearError drops the last credential error.
func (m *Manager) ClearError() {
	m.update(func(s *State) { s.Error = "" })
}

// Bootstrap rehydrates the token from storage and, when a token exists but no
// user is loaded, fetches the profile. Only the first call does any work;
// concurrent callers share it.
func (m *Manager) Bootstrap(ctx context.Context) error {
	_, err, _ := m.group.Do("bootstrap", func() (any, error) {
		m.mu.RLock()
		done := m.bootstrapped
		m.mu.RUnlock()
		if done {
			return nil, nil
		}

		err := m.bootstrap(ctx)

		m.mu.Lock()
		m.bootstrapped = true
		m.mu.Unlock()
		return nil, err
	})
	return err
}

func (m *Manager) bootstrap(ctx context.Context) error {
	m.mu.RLock()
	gen := m.generation
	m.mu.RUnlock()

	token, err := m.store.Get(ctx, TokenKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("load token: %w", err)
	}
	if token == "" {
		return nil
	}

	var needsProfile bool
	if !m.updateIf(gen, func(s *State) {
		if s.Token == "" {
			s.Token = token
		}
		needsProfile = !s.IsAuthenticated && s.User == nil
	}) {
		return nil
	}

	if !needsProfile {
		return nil
	}
	return m.fetchProfile(ctx, gen)
}

func (m *Manager) persist(ctx context.Context, token string) error {
	if err := m.store.Set(ctx, TokenKey, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	m.cookies.SetCookie(AuthCookie(token))
	m.mu.Lock()
	m.cleared = false
	m.mu.Unlock()
	return nil
}

func (m *Manager) update(fn func(*State)) {
	m.mu.Lock()
	fn(&m.state)
	snap := m.snapshot()
	m.mu.Unlock()
	m.notify(snap)
}

// updateIf applies fn only while the session is still at generation gen.
func (m *Manager) updateIf(gen uint64, fn func(*State)) bool {
	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		return false
	}
	fn(&m.state)
	snap := m.snapshot()
	m.mu.Unlock()
	m.notify(snap)
	return true
}

func (m *Manager) notify(snap State) {
	m.subMu.Lock()
	subs := make([]func(State), 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.subMu.Unlock()

	for _, sub := range subs {
		sub(snap)
	}
}

func (m *Manager) snapshot() State {
	snap := m.state
	if m.state.User != nil {
		u := *m.state.User
		snap.User = &u
	}
	return snap
}
