package registrations

import (
	"context"
	"sort"
	"sync"

	"github.com/Togather-Foundation/campus-events/internal/domain/events"
)

type fakeUser struct {
	FullName string
	Email    string
}

type fakeState struct {
	events map[string]events.Event
	users  map[string]fakeUser
	regs   []Registration
}

func (st *fakeState) clone() *fakeState {
	out := &fakeState{
		events: make(map[string]events.Event, len(st.events)),
		users:  st.users,
		regs:   append([]Registration(nil), st.regs...),
	}
	for k, v := range st.events {
		out.events[k] = v
	}
	return out
}

// fakeStore keeps everything in memory and gives WithTx snapshot semantics:
// the callback works on a copy that replaces the live state only when it
// returns nil.
type fakeStore struct {
	mu    sync.Mutex
	state *fakeState

	createErr      error
	listForUserErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{state: &fakeState{
		events: map[string]events.Event{},
		users:  map[string]fakeUser{},
	}}
}

func (f *fakeStore) putEvent(e events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.events[e.ID] = e
}

func (f *fakeStore) putRegistration(reg Registration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.regs = append(f.state.regs, reg)
}

func (f *fakeStore) registrations() []Registration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Registration(nil), f.state.regs...)
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	working := f.state.clone()
	if err := fn(ctx, &fakeTx{store: f, st: working}); err != nil {
		return err
	}
	f.state = working
	return nil
}

func (f *fakeStore) view() *fakeTx {
	return &fakeTx{store: f, st: f.state}
}

func (f *fakeStore) GetEvent(ctx context.Context, id string) (*events.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view().GetEvent(ctx, id)
}

func (f *fakeStore) Get(ctx context.Context, userID, eventID string) (*Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view().Get(ctx, userID, eventID)
}

func (f *fakeStore) Count(ctx context.Context, eventID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view().Count(ctx, eventID)
}

func (f *fakeStore) Create(ctx context.Context, reg Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view().Create(ctx, reg)
}

func (f *fakeStore) ListForUser(ctx context.Context, userID string) ([]UserRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listForUserErr != nil {
		return nil, f.listForUserErr
	}
	return f.view().ListForUser(ctx, userID)
}

func (f *fakeStore) ListForEvent(ctx context.Context, eventID string) ([]Attendee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view().ListForEvent(ctx, eventID)
}

type fakeTx struct {
	store *fakeStore
	st    *fakeState
}

func (t *fakeTx) GetEvent(_ context.Context, id string) (*events.Event, error) {
	e, ok := t.st.events[id]
	if !ok {
		return nil, events.ErrNotFound
	}
	return &e, nil
}

func (t *fakeTx) Get(_ context.Context, userID, eventID string) (*Registration, error) {
	for _, reg := range t.st.regs {
		if reg.UserID == userID && reg.EventID == eventID {
			r := reg
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (t *fakeTx) Count(_ context.Context, eventID string) (int, error) {
	n := 0
	for _, reg := range t.st.regs {
		if reg.EventID == eventID {
			n++
		}
	}
	return n, nil
}

func (t *fakeTx) Create(_ context.Context, reg Registration) error {
	if t.store.createErr != nil {
		return t.store.createErr
	}
	for _, existing := range t.st.regs {
		if existing.UserID == reg.UserID && existing.EventID == reg.EventID {
			return ErrDuplicate
		}
	}
	t.st.regs = append(t.st.regs, reg)
	return nil
}

func (t *fakeTx) ListForUser(_ context.Context, userID string) ([]UserRegistration, error) {
	var out []UserRegistration
	for _, reg := range t.st.regs {
		if reg.UserID != userID {
			continue
		}
		e := t.st.events[reg.EventID]
		out = append(out, UserRegistration{
			Registration:  reg,
			EventTitle:    e.Title,
			EventDateTime: e.DateTime,
			EventStatus:   e.Status,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventDateTime.Before(out[j].EventDateTime) })
	return out, nil
}

func (t *fakeTx) ListForEvent(_ context.Context, eventID string) ([]Attendee, error) {
	var out []Attendee
	for _, reg := range t.st.regs {
		if reg.EventID != eventID {
			continue
		}
		u := t.st.users[reg.UserID]
		out = append(out, Attendee{Registration: reg, FullName: u.FullName, Email: u.Email})
	}
	return out, nil
}
