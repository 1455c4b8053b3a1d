package biz

import (
	"context"
)

// FlowState is one stage of the callback state machine. The flow only moves
// forward; any stage can jump to StateFailed and no stage is retried.
type FlowState string

const (
	StateAwaitingCode FlowState = "AWAITING_CODE"
	StateExchanging   FlowState = "EXCHANGING"
	StateResolving    FlowState = "RESOLVING"
	StateIssuing      FlowState = "ISSUING"
	StateComplete     FlowState = "COMPLETE"
	StateFailed       FlowState = "FAILED"
)

// CallbackResult is the single terminal outcome of a completed callback.
type CallbackResult struct {
	State      FlowState
	Credential *Credential
	Account    *AccountSummary
}

// CallbackFlow orchestrates one provider callback end to end: code
// exchange, pending-field consumption, account resolution, and credential
// issuance. It holds no per-request state; every Handle call is
// independent.
type CallbackFlow struct {
	pending  PendingStore
	resolver *Resolver
	issuer   TokenIssuer
	mapper   *Mapper
}

func NewCallbackFlow(pending PendingStore, resolver *Resolver, issuer TokenIssuer, mapper *Mapper) *CallbackFlow {
	return &CallbackFlow{pending: pending, resolver: resolver, issuer: issuer, mapper: mapper}
}

// Handle runs the state machine for one callback. It returns either a
// COMPLETE result or a *FlowError, never both, and never retries a stage.
// sessionKey may be empty when the caller has no session; pending fields
// are then simply absent.
func (f *CallbackFlow) Handle(ctx context.Context, exchanger Exchanger, provider, code, sessionKey string) (*CallbackResult, error) {
	// AWAITING_CODE
	if code == "" {
		return nil, NewValidationError("authorization code is required")
	}

	// EXCHANGING
	identity, err := exchanger.Exchange(ctx, code)
	if err != nil {
		return nil, NewExchangeError(err)
	}

	// RESOLVING
	var extra map[string]string
	if sessionKey != "" {
		extra, err = f.pending.Take(ctx, sessionKey)
		if err != nil {
			return nil, NewPersistenceError(err)
		}
	}
	account, err := f.resolver.Resolve(ctx, identity, provider, extra)
	if err != nil {
		if fe, ok := AsFlowError(err); ok {
			return nil, fe
		}
		return nil, NewPersistenceError(err)
	}

	// ISSUING
	credential, err := f.issuer.Issue(ctx, account, provider)
	if err != nil {
		if fe, ok := AsFlowError(err); ok {
			return nil, fe
		}
		return nil, NewConfigurationError(err)
	}

	return &CallbackResult{
		State:      StateComplete,
		Credential: credential,
		Account:    f.summary(account, provider),
	}, nil
}

func (f *CallbackFlow) summary(account *Account, provider string) *AccountSummary {
	return &AccountSummary{
		ID:        account.ID,
		Name:      f.mapper.DisplayName(account),
		Email:     account.Email,
		Avatar:    f.mapper.Avatar(account),
		Provider:  provider,
		CreatedAt: account.CreatedAt,
	}
}
