package data

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"social-auth-service/internal/biz"
)

// MemoryAccountRepo is an in-memory account store used in tests. It keeps
// attribute maps verbatim and enforces the same uniqueness the SQL stores
// do: email, plus every attribute whose name ends in "_id".
type MemoryAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*biz.Account
	tokens   []biz.AccessToken
	now      func() time.Time
}

func NewMemoryAccountRepo() *MemoryAccountRepo {
	return &MemoryAccountRepo{
		accounts: make(map[string]*biz.Account),
		now:      time.Now,
	}
}

func (r *MemoryAccountRepo) FindByProviderID(ctx context.Context, idAttr, externalID string) (*biz.Account, error) {
	if externalID == "" {
		return nil, biz.ErrAccountNotFound
	}
	return r.findByAttr(idAttr, externalID)
}

func (r *MemoryAccountRepo) FindByEmail(ctx context.Context, email string) (*biz.Account, error) {
	if email == "" {
		return nil, biz.ErrAccountNotFound
	}
	return r.findByAttr("email", email)
}

func (r *MemoryAccountRepo) findByAttr(attr, value string) (*biz.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if s, _ := a.Attrs[attr].(string); s == value {
			return cloneAccount(a), nil
		}
	}
	return nil, biz.ErrAccountNotFound
}

func (r *MemoryAccountRepo) Create(ctx context.Context, attrs map[string]any) (*biz.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		for key, val := range attrs {
			if key != "email" && !strings.HasSuffix(key, "_id") {
				continue
			}
			s, ok := val.(string)
			if !ok || s == "" {
				continue
			}
			if have, _ := existing.Attrs[key].(string); have == s {
				return nil, biz.ErrDuplicateAccount
			}
		}
	}

	now := r.now()
	account := &biz.Account{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Attrs:     cloneAttrs(attrs),
	}
	account.Email, _ = attrs["email"].(string)
	r.accounts[account.ID] = account
	return cloneAccount(account), nil
}

func (r *MemoryAccountRepo) Update(ctx context.Context, id string, attrs map[string]any) (*biz.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, biz.ErrAccountNotFound
	}
	for key, val := range attrs {
		account.Attrs[key] = val
	}
	account.Email, _ = account.Attrs["email"].(string)
	account.UpdatedAt = r.now()
	return cloneAccount(account), nil
}

func (r *MemoryAccountRepo) CreateAccessToken(ctx context.Context, t biz.AccessToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = append(r.tokens, t)
	return nil
}

// AccessTokens returns the persisted tokens, for assertions.
func (r *MemoryAccountRepo) AccessTokens() []biz.AccessToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]biz.AccessToken, len(r.tokens))
	copy(out, r.tokens)
	return out
}

// Len returns the number of stored accounts.
func (r *MemoryAccountRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accounts)
}

func cloneAttrs(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

func cloneAccount(a *biz.Account) *biz.Account {
	return &biz.Account{
		ID:        a.ID,
		Email:     a.Email,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
		Attrs:     cloneAttrs(a.Attrs),
	}
}

var _ biz.AccountRepo = (*MemoryAccountRepo)(nil)
var _ biz.AccessTokenRepo = (*MemoryAccountRepo)(nil)
