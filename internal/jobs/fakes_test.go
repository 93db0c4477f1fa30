package jobs

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/JasonHongGG/TravelPlanner/internal/domain"
)

var sampleTrip = json.RawMessage(`{"title":"Kyoto in autumn","days":[{"day":1}]}`)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeProvider counts calls and optionally blocks until release is closed.
type fakeProvider struct {
	mu      sync.Mutex
	calls   int
	tokens  []string
	result  json.RawMessage
	err     error
	panicV  any
	release chan struct{}
	entered chan struct{}
	onCall  func()
}

func (p *fakeProvider) GenerateTrip(ctx context.Context, input domain.TripInput, userID, authToken string) (json.RawMessage, error) {
	p.mu.Lock()
	p.calls++
	p.tokens = append(p.tokens, authToken)
	p.mu.Unlock()

	if p.entered != nil {
		p.entered <- struct{}{}
	}
	if p.onCall != nil {
		p.onCall()
	}
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.panicV != nil {
		panic(p.panicV)
	}
	if p.err != nil {
		return nil, p.err
	}
	if p.result != nil {
		return p.result, nil
	}
	return sampleTrip, nil
}

func (p *fakeProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// fakeLedger records every attempt and applies each idempotency key once.
type fakeLedger struct {
	mu       sync.Mutex
	attempts []domain.Charge
	applied  map[string]int
	err      error
	onCharge func()
}

func (l *fakeLedger) Charge(_ context.Context, charge domain.Charge) error {
	if l.onCharge != nil {
		l.onCharge()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = append(l.attempts, charge)
	if l.err != nil {
		return l.err
	}
	if l.applied == nil {
		l.applied = make(map[string]int)
	}
	if _, dup := l.applied[charge.IdempotencyKey]; !dup {
		l.applied[charge.IdempotencyKey] = charge.Amount
	}
	return nil
}

func (l *fakeLedger) Attempts() []domain.Charge {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Charge(nil), l.attempts...)
}

func (l *fakeLedger) Applied() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.applied)
}

type flatPricer int

func (p flatPricer) Cost(domain.Action, domain.PriceParams) int { return int(p) }

// memorySnapshots is an in-memory JobSnapshotRepository.
type memorySnapshots struct {
	mu    sync.Mutex
	jobs  []domain.GenerationJob
	saves int
	err   error
}

func (m *memorySnapshots) Load(context.Context) ([]domain.GenerationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.GenerationJob, 0, len(m.jobs))
	for i := range m.jobs {
		out = append(out, *m.jobs[i].Clone())
	}
	return out, nil
}

func (m *memorySnapshots) Save(_ context.Context, jobs []domain.GenerationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.err != nil {
		return m.err
	}
	m.jobs = jobs
	return nil
}

func (m *memorySnapshots) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
