// Package memory is an in-process identity directory for development and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"boxoffice/internal/identity"
	id "boxoffice/pkg/domain"
	"boxoffice/pkg/email"
	"boxoffice/pkg/platform/sentinel"
)

// Identity is a directory entry as stored here.
type Identity struct {
	ID           id.AccountID
	Email        string
	DisplayName  string
	PasswordHash []byte
	Enabled      bool
	Roles        []identity.Role
}

// Directory keeps identities in memory. Passwords are bcrypt hashed so a
// dump of the map never holds plaintext.
type Directory struct {
	mu         sync.RWMutex
	identities map[id.AccountID]*Identity
	byEmail    map[string]id.AccountID
	cost       int
}

type Option func(*Directory)

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(d *Directory) {
		d.cost = cost
	}
}

func New(opts ...Option) *Directory {
	d := &Directory{
		identities: make(map[id.AccountID]*Identity),
		byEmail:    make(map[string]id.AccountID),
		cost:       bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Directory) CreateIdentity(_ context.Context, addr, password, displayName string) (id.AccountID, error) {
	addr = email.Normalize(addr)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return id.AccountID{}, fmt.Errorf("hash password: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, taken := d.byEmail[addr]; taken {
		return id.AccountID{}, fmt.Errorf("identity %s: %w", addr, sentinel.ErrAlreadyUsed)
	}
	accountID := id.AccountID(uuid.New())
	d.identities[accountID] = &Identity{
		ID:           accountID,
		Email:        addr,
		DisplayName:  displayName,
		PasswordHash: hash,
		Enabled:      true,
	}
	d.byEmail[addr] = accountID
	return accountID, nil
}

func (d *Directory) DeleteIdentity(_ context.Context, accountID id.AccountID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ident, ok := d.identities[accountID]
	if !ok {
		return nil
	}
	delete(d.byEmail, ident.Email)
	delete(d.identities, accountID)
	return nil
}

func (d *Directory) AssignRole(_ context.Context, accountID id.AccountID, role identity.Role) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ident, ok := d.identities[accountID]
	if !ok {
		return fmt.Errorf("identity %s: %w", accountID, sentinel.ErrNotFound)
	}
	if !slices.Contains(ident.Roles, role) {
		ident.Roles = append(ident.Roles, role)
	}
	return nil
}

func (d *Directory) RevokeRole(_ context.Context, accountID id.AccountID, role identity.Role) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ident, ok := d.identities[accountID]
	if !ok {
		return fmt.Errorf("identity %s: %w", accountID, sentinel.ErrNotFound)
	}
	ident.Roles = slices.DeleteFunc(ident.Roles, func(r identity.Role) bool { return r == role })
	return nil
}

func (d *Directory) GetRoles(_ context.Context, accountID id.AccountID) ([]identity.Role, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ident, ok := d.identities[accountID]
	if !ok {
		return nil, fmt.Errorf("identity %s: %w", accountID, sentinel.ErrNotFound)
	}
	roles := slices.Clone(ident.Roles)
	slices.Sort(roles)
	return roles, nil
}

func (d *Directory) HasRole(ctx context.Context, accountID id.AccountID, role identity.Role) (bool, error) {
	roles, err := d.GetRoles(ctx, accountID)
	if err != nil {
		return false, err
	}
	return slices.Contains(roles, role), nil
}

func (d *Directory) FindIDByEmail(_ context.Context, addr string) (id.AccountID, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	accountID, ok := d.byEmail[email.Normalize(addr)]
	return accountID, ok, nil
}

func (d *Directory) SetEnabled(_ context.Context, accountID id.AccountID, enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ident, ok := d.identities[accountID]
	if !ok {
		return fmt.Errorf("identity %s: %w", accountID, sentinel.ErrNotFound)
	}
	ident.Enabled = enabled
	return nil
}

// CheckPassword reports whether password matches the stored hash of an
// enabled identity.
func (d *Directory) CheckPassword(addr, password string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	accountID, ok := d.byEmail[email.Normalize(addr)]
	if !ok {
		return false
	}
	ident := d.identities[accountID]
	if !ident.Enabled {
		return false
	}
	return bcrypt.CompareHashAndPassword(ident.PasswordHash, []byte(password)) == nil
}

// Identities returns a snapshot of every entry.
func (d *Directory) Identities() []Identity {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Identity, 0, len(d.identities))
	for _, ident := range d.identities {
		cp := *ident
		cp.Roles = slices.Clone(ident.Roles)
		out = append(out, cp)
	}
	return out
}

// Get returns one entry.
func (d *Directory) Get(accountID id.AccountID) (Identity, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ident, ok := d.identities[accountID]
	if !ok {
		return Identity{}, false
	}
	cp := *ident
	cp.Roles = slices.Clone(ident.Roles)
	return cp, true
}

var _ identity.Directory = (*Directory)(nil)
