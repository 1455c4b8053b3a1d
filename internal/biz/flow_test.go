package biz_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"social-auth-service/internal/biz"
	"social-auth-service/internal/data"
)

type fakeExchanger struct {
	identity *biz.ExternalIdentity
	err      error
}

func (f *fakeExchanger) Exchange(ctx context.Context, code string) (*biz.ExternalIdentity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

type fakeIssuer struct {
	err error
}

func (f *fakeIssuer) Issue(ctx context.Context, account *biz.Account, provider string) (*biz.Credential, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &biz.Credential{Token: "issued-" + account.ID, TokenType: "Bearer"}, nil
}

func newFlow(t *testing.T, exchErr, issueErr error) (*biz.CallbackFlow, *data.MemoryPendingStore, *fakeExchanger) {
	t.Helper()
	repo := data.NewMemoryAccountRepo()
	mapper := fixedMapper(googleUsers())
	pending := data.NewMemoryPendingStore(time.Minute)
	t.Cleanup(func() { pending.Close() })

	flow := biz.NewCallbackFlow(pending, biz.NewResolver(repo, mapper), &fakeIssuer{err: issueErr}, mapper)
	return flow, pending, &fakeExchanger{identity: sampleIdentity(), err: exchErr}
}

func TestHandleCompletesWithCredentialAndSummary(t *testing.T) {
	flow, _, exchanger := newFlow(t, nil, nil)

	result, err := flow.Handle(context.Background(), exchanger, "google", "code-1", "")
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if result.State != biz.StateComplete {
		t.Errorf("state = %s, want COMPLETE", result.State)
	}
	if result.Credential == nil || result.Credential.Token == "" {
		t.Fatal("no credential issued")
	}
	if result.Account.Name != "Jane Q Public" || result.Account.Email != "jane@example.com" {
		t.Errorf("summary = %+v", result.Account)
	}
	if result.Account.Provider != "google" {
		t.Errorf("provider = %q", result.Account.Provider)
	}
}

func TestHandleMissingCodeIsValidation(t *testing.T) {
	flow, _, exchanger := newFlow(t, nil, nil)

	_, err := flow.Handle(context.Background(), exchanger, "google", "", "")
	fe, ok := biz.AsFlowError(err)
	if !ok || fe.Kind != biz.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHandleExchangeFailure(t *testing.T) {
	flow, _, exchanger := newFlow(t, errors.New("provider unreachable"), nil)

	_, err := flow.Handle(context.Background(), exchanger, "google", "code-1", "")
	fe, ok := biz.AsFlowError(err)
	if !ok || fe.Kind != biz.KindExchange {
		t.Fatalf("expected exchange error, got %v", err)
	}
}

func TestHandleIssuerFailure(t *testing.T) {
	flow, _, exchanger := newFlow(t, nil, errors.New("signer broken"))

	_, err := flow.Handle(context.Background(), exchanger, "google", "code-1", "")
	fe, ok := biz.AsFlowError(err)
	if !ok || fe.Kind != biz.KindConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestHandleConsumesPendingFieldsOnce(t *testing.T) {
	flow, pending, exchanger := newFlow(t, nil, nil)
	ctx := context.Background()

	if err := pending.Stash(ctx, "sess-1", map[string]string{"role": "manager"}); err != nil {
		t.Fatalf("Stash failed: %v", err)
	}

	if _, err := flow.Handle(ctx, exchanger, "google", "code-1", "sess-1"); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	// Same session key, different user: the stash must already be gone.
	second := &fakeExchanger{identity: &biz.ExternalIdentity{
		Provider:    "google",
		ExternalID:  "g-2",
		Email:       "other@example.com",
		DisplayName: "Other User",
		AccessToken: "at-9",
	}}
	res2, err := flow.Handle(ctx, second, "google", "code-2", "sess-1")
	if err != nil {
		t.Fatalf("second Handle failed: %v", err)
	}
	if res2.Account.Email != "other@example.com" {
		t.Fatalf("unexpected account %+v", res2.Account)
	}

	got, err := pending.Take(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("pending entry survived consumption: %v", got)
	}
}
