package offline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mannypuntos/internal/dto"
	"mannypuntos/internal/model"
)

// Session identifies who the client acts for. It is passed explicitly to
// whatever needs it; nothing reads a current user from storage implicitly.
type Session struct {
	ClienteID uuid.UUID `json:"cliente_id"`
	Telefono  string    `json:"telefono"`
	Rol       string    `json:"rol"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Session) EsAdmin() bool { return s != nil && s.Rol == model.RolAdmin }

// Valid reports whether the token is still usable at now.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.Token != "" && now.Before(s.ExpiresAt)
}

// NewSession builds a session from a login answer.
func NewSession(resp *dto.LoginResponse, now time.Time) (*Session, error) {
	id, err := uuid.Parse(resp.Cliente.ID)
	if err != nil {
		return nil, err
	}
	return &Session{
		ClienteID: id,
		Telefono:  resp.Cliente.Telefono,
		Rol:       resp.Cliente.Rol,
		Token:     resp.AccessToken,
		ExpiresAt: now.Add(time.Duration(resp.ExpiresIn) * time.Second),
	}, nil
}

type SessionStore struct{ store *Store }

func NewSessionStore(store *Store) *SessionStore { return &SessionStore{store: store} }

// Load returns nil when no usable session is stored.
func (s *SessionStore) Load(ctx context.Context) (*Session, error) {
	var sess Session
	ok, err := s.store.GetJSON(ctx, KeySession, &sess)
	if err != nil || !ok {
		return nil, err
	}
	return &sess, nil
}

func (s *SessionStore) Save(ctx context.Context, sess *Session) error {
	return s.store.PutJSON(ctx, KeySession, sess)
}

func (s *SessionStore) Clear(ctx context.Context) error {
	return s.store.Delete(ctx, KeySession)
}

// Profile is the last known client profile, shown while offline.
type Profile struct {
	dto.ClienteResponse
	FetchedAt time.Time `json:"fetched_at"`
}

type ProfileCache struct{ store *Store }

func NewProfileCache(store *Store) *ProfileCache { return &ProfileCache{store: store} }

// Load returns the cached profile; ok is false when absent or corrupt.
func (p *ProfileCache) Load(ctx context.Context) (*Profile, bool, error) {
	var prof Profile
	ok, err := p.store.GetJSON(ctx, KeyPerfil, &prof)
	if err != nil || !ok {
		return nil, false, err
	}
	return &prof, true, nil
}

func (p *ProfileCache) Save(ctx context.Context, c dto.ClienteResponse, now time.Time) error {
	return p.store.PutJSON(ctx, KeyPerfil, Profile{ClienteResponse: c, FetchedAt: now})
}
