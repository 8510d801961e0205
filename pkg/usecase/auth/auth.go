package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kristal/pkg/model"
	"github.com/m-mizutani/kristal/pkg/repository"
	"github.com/m-mizutani/kristal/pkg/utils/logging"
)

// Placeholder credentials. This gate only hides the chat view; it is not a
// security boundary.
const (
	fixedEmail    = "admin@kristal.ai"
	fixedPassword = "Krist@l123!"
)

// State is the persisted projection of the gate
type State struct {
	IsAuthenticated bool        `json:"isAuthenticated"`
	User            *model.User `json:"user"`
}

// Gate holds the local authentication flag and persists it on every change
type Gate struct {
	repo repository.Repository

	mu    sync.Mutex
	state State
}

// Load restores the gate from repo. A missing or unreadable projection yields
// a logged-out gate.
func Load(ctx context.Context, repo repository.Repository) (*Gate, error) {
	g := &Gate{repo: repo}

	data, err := repo.Get(ctx, repository.NamespaceAuth)
	if errors.Is(err, repository.ErrNotFound) {
		return g, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load auth state")
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		logging.From(ctx).Warn("discarding corrupted auth state", "error", err)
		return g, nil
	}
	if state.IsAuthenticated && state.User == nil {
		state.IsAuthenticated = false
	}
	g.state = state

	return g, nil
}

// Login succeeds iff email matches case-insensitively and password matches
// exactly. On failure the state is left unchanged.
func (g *Gate) Login(ctx context.Context, email, password string) (bool, error) {
	if !strings.EqualFold(email, fixedEmail) || password != fixedPassword {
		logging.From(ctx).Info("login rejected", "email", email)
		return false, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = State{
		IsAuthenticated: true,
		User:            &model.User{Email: email},
	}
	if err := g.persist(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// Logout clears the authenticated flag and user unconditionally and removes
// the stored projection.
func (g *Gate) Logout(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = State{}
	if err := g.repo.Delete(ctx, repository.NamespaceAuth); err != nil {
		return goerr.Wrap(err, "failed to delete auth state")
	}
	return nil
}

// State returns a copy of the current state
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.state
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Authenticated reports whether a user is logged in
func (g *Gate) Authenticated() bool {
	return g.State().IsAuthenticated
}

func (g *Gate) persist(ctx context.Context) error {
	data, err := json.Marshal(g.state)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal auth state")
	}
	if err := g.repo.Put(ctx, repository.NamespaceAuth, data); err != nil {
		return goerr.Wrap(err, "failed to save auth state")
	}
	return nil
}
