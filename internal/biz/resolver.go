package biz

import (
	"context"
	"errors"
	"fmt"
)

// Resolver maps a verified external identity onto exactly one account:
// either an existing one (refreshed in place) or a newly created one.
type Resolver struct {
	repo   AccountRepo
	mapper *Mapper
}

func NewResolver(repo AccountRepo, mapper *Mapper) *Resolver {
	return &Resolver{repo: repo, mapper: mapper}
}

// Resolve finds or creates the account for an identity. Lookup checks the
// provider-scoped external id first and the email second, so an account
// already linked to this provider wins over an email-only match. extra
// carries human-submitted attributes consumed from the pending store; on
// the create path they override both the mapped payload and the configured
// defaults.
//
// A uniqueness violation on create means another callback created the
// account between our lookup and our insert. That is handled by retrying
// as a lookup and taking the update path, never by retrying the insert.
func (r *Resolver) Resolve(ctx context.Context, identity *ExternalIdentity, provider string, extra map[string]string) (*Account, error) {
	account, err := r.lookup(ctx, identity, provider)
	if err == nil {
		return r.refresh(ctx, account, identity, provider)
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	attrs := r.mapper.Prepare(identity, provider)
	for key, val := range r.mapper.ProcessedDefaults() {
		attrs[key] = val
	}
	overlay := make(map[string]any, len(extra))
	for key, val := range extra {
		overlay[key] = val
	}
	r.mapper.ApplyRenames(overlay)
	for key, val := range overlay {
		attrs[key] = val
	}

	created, err := r.repo.Create(ctx, attrs)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, ErrDuplicateAccount) {
		return nil, fmt.Errorf("create account: %w", err)
	}

	account, lerr := r.lookup(ctx, identity, provider)
	if lerr != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return r.refresh(ctx, account, identity, provider)
}

func (r *Resolver) lookup(ctx context.Context, identity *ExternalIdentity, provider string) (*Account, error) {
	account, err := r.repo.FindByProviderID(ctx, r.mapper.ProviderIDAttr(provider), identity.ExternalID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}
	if identity.Email == "" {
		return nil, ErrAccountNotFound
	}
	return r.repo.FindByEmail(ctx, identity.Email)
}

func (r *Resolver) refresh(ctx context.Context, account *Account, identity *ExternalIdentity, provider string) (*Account, error) {
	updated, err := r.repo.Update(ctx, account.ID, r.mapper.Refresh(identity, provider))
	if err != nil {
		return nil, fmt.Errorf("refresh account %s: %w", account.ID, err)
	}
	return updated, nil
}
