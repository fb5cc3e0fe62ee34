package service

import (
	"context"
	"errors"
	"sync"

	"github.com/stripe/stripe-go/v81"

	"github.com/qs3c/nextaction_server/internal/model/dto"
	"github.com/qs3c/nextaction_server/internal/pkg/billing"
	"github.com/qs3c/nextaction_server/internal/pkg/llm"
)

type scriptedReply struct {
	content string
	err     error
}

// fakeLLM 按顺序返回预设的回复，并记录每次调用的消息
type fakeLLM struct {
	mu      sync.Mutex
	replies []scriptedReply
	calls   [][]llm.Message
}

func newFakeLLM(replies ...scriptedReply) *fakeLLM {
	return &fakeLLM{replies: replies}
}

func (f *fakeLLM) CompleteJSON(ctx context.Context, messages []llm.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	snapshot := make([]llm.Message, len(messages))
	copy(snapshot, messages)
	f.calls = append(f.calls, snapshot)

	if len(f.replies) == 0 {
		return "", errors.New("fake llm: no scripted reply")
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r.content, r.err
}

func (f *fakeLLM) Model() string { return "fake-model" }

// fakeProvider 记录调用的支付服务替身
type fakeProvider struct {
	checkoutParams  []billing.CheckoutParams
	portalCustomers []string
	customersByMail map[string]string
	emailsByID      map[string]string
	emailErr        error
	constructErr    error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		customersByMail: map[string]string{},
		emailsByID:      map[string]string{},
	}
}

func (f *fakeProvider) CreateCheckoutSession(ctx context.Context, p billing.CheckoutParams) (string, error) {
	f.checkoutParams = append(f.checkoutParams, p)
	return "https://checkout.test/session", nil
}

func (f *fakeProvider) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	f.portalCustomers = append(f.portalCustomers, customerID)
	return "https://portal.test/" + customerID, nil
}

func (f *fakeProvider) FindCustomerIDByEmail(ctx context.Context, email string) (string, error) {
	return f.customersByMail[email], nil
}

func (f *fakeProvider) GetCustomerEmail(ctx context.Context, customerID string) (string, error) {
	if f.emailErr != nil {
		return "", f.emailErr
	}
	return f.emailsByID[customerID], nil
}

func (f *fakeProvider) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if f.constructErr != nil {
		return stripe.Event{}, f.constructErr
	}
	return stripe.Event{ID: "evt_parsed", Type: stripe.EventTypeCustomerSubscriptionUpdated}, nil
}

// fakeFetcher 返回固定资料，并记录查询次数
type fakeFetcher struct {
	mu      sync.Mutex
	profile *dto.Profile
	err     error
	calls   int
}

func (f *fakeFetcher) FetchProfile(ctx context.Context, externalID string) (*dto.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p := *f.profile
	p.ExternalID = externalID
	return &p, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
