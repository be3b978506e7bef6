/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package pictures

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrStaleEpoch = errors.New("session was replaced")
	ErrNotTurn    = errors.New("not this team's turn")
)

// Command is a transition on a Session.
type Command func(Session) (Session, error)

// Start returns the Session.Start command.
func Start() Command {
	return Session.Start
}

// Finish returns the Session.Finish command.
func Finish() Command {
	return Session.Finish
}

// CloseCard returns the Session.CloseCard command.
func CloseCard() Command {
	return Session.CloseCard
}

// OpenCard returns a command opening card id.
func OpenCard(id int) Command {
	return func(s Session) (Session, error) {
		return s.OpenCard(id)
	}
}

// SubmitCorrect returns a command scoring a correct guess on card id.
func SubmitCorrect(id int) Command {
	return func(s Session) (Session, error) {
		return s.SubmitCorrect(id)
	}
}

// SubmitWrong returns a command scoring a wrong guess on card id.
func SubmitWrong(id int) Command {
	return func(s Session) (Session, error) {
		return s.SubmitWrong(id)
	}
}

// RevealAndClose returns a command revealing card id.
func RevealAndClose(id int) Command {
	return func(s Session) (Session, error) {
		return s.RevealAndClose(id)
	}
}

// AsTeam runs cmd only while t is the active team.
func AsTeam(t Team, cmd Command) Command {
	return func(s Session) (Session, error) {
		if s.ActiveTeam != t {
			return s, ErrNotTurn
		}
		return cmd(s)
	}
}

// Manager owns the live session of one game. It loads the session from its
// Store when created and saves it after every successful command.
type Manager struct {
	mu      sync.Mutex
	key     string
	dataset Dataset
	session Session
	epoch   string
	store   Store
	log     zerolog.Logger
}

type ManagerOption func(*Manager)

func WithLogger(l zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = l
	}
}

// NewManager resumes the game stored under key, or starts a fresh one.
// Store read failures are logged and treated as an empty store.
func NewManager(ctx context.Context, key string, d Dataset, store Store, opts ...ManagerOption) (*Manager, Outcome) {
	m := &Manager{
		key:     key,
		dataset: d,
		epoch:   uuid.NewString(),
		store:   store,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}

	data, err := store.Load(ctx, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		m.log.Warn().Err(err).Str("game", key).Msg("load failed, starting fresh")
		data = nil
	}

	var outcome Outcome
	m.session, outcome = Resume(data, d)

	m.log.Debug().
		Str("game", key).
		Str("outcome", outcome.String()).
		Int("cards", len(m.session.Cards)).
		Msg("session loaded")

	return m, outcome
}

// Key returns the game id.
func (m *Manager) Key() string {
	return m.key
}

// Epoch identifies the current session instance.
func (m *Manager) Epoch() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.epoch
}

func (m *Manager) Dataset() Dataset {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.dataset
}

// Snapshot returns a copy of the current session and its epoch.
func (m *Manager) Snapshot() (Session, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.session.Clone(), m.epoch
}

// Apply runs cmd against the session if epoch still names it. An empty
// epoch always applies. On success the new session is saved; a save error
// is returned alongside the committed session.
func (m *Manager) Apply(ctx context.Context, epoch string, cmd Command) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if epoch != "" && epoch != m.epoch {
		return m.session.Clone(), ErrStaleEpoch
	}

	next, err := cmd(m.session)
	if err != nil {
		return m.session.Clone(), err
	}
	m.session = next

	return m.session.Clone(), m.saveLocked(ctx)
}

// Reset discards the stored record and starts over from the dataset.
func (m *Manager) Reset(ctx context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.resetLocked(ctx)
}

// Replace adopts a new dataset. When its fingerprint differs from the
// current one the session is reset; otherwise nothing changes.
func (m *Manager) Replace(ctx context.Context, d Dataset) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d.Fingerprint == m.dataset.Fingerprint {
		return false, nil
	}

	m.dataset = d
	_, err := m.resetLocked(ctx)
	return true, err
}

func (m *Manager) resetLocked(ctx context.Context) (Session, error) {
	m.epoch = uuid.NewString()
	m.session = NewSession(m.dataset)

	if err := m.store.Delete(ctx, m.key); err != nil {
		m.log.Warn().Err(err).Str("game", m.key).Msg("delete failed")
	}

	return m.session.Clone(), m.saveLocked(ctx)
}

func (m *Manager) saveLocked(ctx context.Context) error {
	data, err := EncodeRecord(m.dataset, m.session)
	if err != nil {
		return err
	}

	if err := m.store.Save(ctx, m.key, data); err != nil {
		m.log.Error().Err(err).Str("game", m.key).Msg("save failed")
		return fmt.Errorf("save game %s: %w", m.key, err)
	}

	return nil
}
