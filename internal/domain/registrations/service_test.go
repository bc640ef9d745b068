package registrations

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Togather-Foundation/campus-events/internal/domain/events"
	"github.com/Togather-Foundation/campus-events/internal/metrics"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 4, 14, 15, 0, 0, 0, time.UTC)

func newTestService(store Store, opts ...Option) *Service {
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewService(store, zerolog.Nop(), opts...)
}

func openEvent(title string, start time.Time, capacity int) events.Event {
	return events.Event{
		ID:       uuid.NewString(),
		Title:    title,
		Location: "Auditorium",
		DateTime: start,
		Capacity: capacity,
		Status:   events.StatusUpcoming,
	}
}

func requireRejection(t *testing.T, err error, kind Kind, message string) {
	t.Helper()
	var rejection *RejectionError
	require.True(t, errors.As(err, &rejection), "expected *RejectionError, got %v", err)
	require.Equal(t, kind, rejection.Kind)
	require.Equal(t, message, rejection.Message)
}

func TestRegister_Admits(t *testing.T) {
	store := newFakeStore()
	event := openEvent("Robotics Expo", testNow.Add(24*time.Hour), 10)
	store.putEvent(event)
	userID := uuid.NewString()

	admission, err := newTestService(store).Register(context.Background(), event.ID, userID)
	require.NoError(t, err)
	require.Equal(t, userID, admission.UserID)
	require.Equal(t, event.ID, admission.EventID)
	require.True(t, testNow.Equal(admission.RegistrationDate))
	require.Empty(t, admission.ConflictWarning)

	minted, err := ulid.ParseStrict(admission.ID)
	require.NoError(t, err)
	require.True(t, testNow.Equal(ulid.Time(minted.Time())))

	regs := store.registrations()
	require.Len(t, regs, 1)
	require.Equal(t, admission.Registration, regs[0])
}

func TestRegister_ApprovedStatusAdmits(t *testing.T) {
	store := newFakeStore()
	event := openEvent("Debate", testNow.Add(time.Hour), 5)
	event.Status = events.StatusApproved
	store.putEvent(event)

	_, err := newTestService(store).Register(context.Background(), event.ID, uuid.NewString())
	require.NoError(t, err)
}

func TestRegister_EventNotFound(t *testing.T) {
	store := newFakeStore()
	_, err := newTestService(store).Register(context.Background(), uuid.NewString(), uuid.NewString())
	requireRejection(t, err, KindNotFound, "Event not found")
	require.Empty(t, store.registrations())
}

func TestRegister_StatusGate(t *testing.T) {
	tests := []struct {
		status  events.Status
		message string
	}{
		{events.StatusCancelled, "Event has been cancelled"},
		{events.StatusCompleted, "Event has already completed"},
		{events.StatusPending, "Event is not approved for registration"},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			store := newFakeStore()
			event := openEvent("Gala", testNow.Add(time.Hour), 10)
			event.Status = tt.status
			store.putEvent(event)

			_, err := newTestService(store).Register(context.Background(), event.ID, uuid.NewString())
			requireRejection(t, err, KindInvalidState, tt.message)
			require.Empty(t, store.registrations())
		})
	}
}

func TestRegister_StatusGateRunsBeforeTemporalGate(t *testing.T) {
	store := newFakeStore()
	event := openEvent("Old gala", testNow.Add(-time.Hour), 10)
	event.Status = events.StatusCancelled
	store.putEvent(event)

	_, err := newTestService(store).Register(context.Background(), event.ID, uuid.NewString())
	requireRejection(t, err, KindInvalidState, "Event has been cancelled")
}

func TestRegister_Expired(t *testing.T) {
	store := newFakeStore()
	// Not yet reconciled: still upcoming although it started a minute ago.
	event := openEvent("Seminar", testNow.Add(-time.Minute), 10)
	store.putEvent(event)

	_, err := newTestService(store).Register(context.Background(), event.ID, uuid.NewString())
	requireRejection(t, err, KindExpired, "Expired: event has already ended")
	require.Empty(t, store.registrations())
}

func TestRegister_StartingExactlyNowIsNotExpired(t *testing.T) {
	store := newFakeStore()
	event := openEvent("Seminar", testNow, 10)
	store.putEvent(event)

	_, err := newTestService(store).Register(context.Background(), event.ID, uuid.NewString())
	require.NoError(t, err)
}

func TestRegister_AlreadyRegistered(t *testing.T) {
	store := newFakeStore()
	event := openEvent("Career fair", testNow.Add(time.Hour), 10)
	store.putEvent(event)
	userID := uuid.NewString()
	svc := newTestService(store)

	_, err := svc.Register(context.Background(), event.ID, userID)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), event.ID, userID)
	requireRejection(t, err, KindAlreadyRegistered, "Already registered for this event")
	require.Len(t, store.registrations(), 1)
}

func TestRegister_DuplicateFromStoreMapsToAlreadyRegistered(t *testing.T) {
	store := newFakeStore()
	event := openEvent("Career fair", testNow.Add(time.Hour), 10)
	store.putEvent(event)
	store.createErr = ErrDuplicate

	_, err := newTestService(store).Register(context.Background(), event.ID, uuid.NewString())
	requireRejection(t, err, KindAlreadyRegistered, "Already registered for this event")
	require.Empty(t, store.registrations())
}

func TestRegister_CapacityReached(t *testing.T) {
	store := newFakeStore()
	event := openEvent("Workshop", testNow.Add(time.Hour), 2)
	store.putEvent(event)
	svc := newTestService(store)

	for i := 0; i < 2; i++ {
		_, err := svc.Register(context.Background(), event.ID, uuid.NewString())
		require.NoError(t, err)
	}
	_, err := svc.Register(context.Background(), event.ID, uuid.NewString())
	requireRejection(t, err, KindCapacityReached, "Capacity Reached: event is full")
	require.Len(t, store.registrations(), 2)
}

func TestRegister_ZeroCapacity(t *testing.T) {
	store := newFakeStore()
	event := openEvent("Closed door", testNow.Add(time.Hour), 0)
	store.putEvent(event)

	_, err := newTestService(store).Register(context.Background(), event.ID, uuid.NewString())
	requireRejection(t, err, KindCapacityReached, "Capacity Reached: event is full")
}

func TestRegister_CapacityShrunkBelowCount(t *testing.T) {
	store := newFakeStore()
	event := openEvent("Workshop", testNow.Add(time.Hour), 1)
	store.putEvent(event)
	for i := 0; i < 3; i++ {
		store.putRegistration(Registration{ID: uuid.NewString(), UserID: uuid.NewString(), EventID: event.ID, RegistrationDate: testNow})
	}

	_, err := newTestService(store).Register(context.Background(), event.ID, uuid.NewString())
	requireRejection(t, err, KindCapacityReached, "Capacity Reached: event is full")
	require.Len(t, store.registrations(), 3, "existing registrations are kept")
}

func TestRegister_StoreFailureIsNotARejection(t *testing.T) {
	store := newFakeStore()
	event := openEvent("Workshop", testNow.Add(time.Hour), 10)
	store.putEvent(event)
	boom := errors.New("connection reset")
	store.createErr = boom

	_, err := newTestService(store).Register(context.Background(), event.ID, uuid.NewString())
	require.ErrorIs(t, err, boom)
	var rejection *RejectionError
	require.False(t, errors.As(err, &rejection))
	require.Empty(t, store.registrations())
}

func TestRegister_UnknownUserIsNotARejection(t *testing.T) {
	store := newFakeStore()
	event := openEvent("Workshop", testNow.Add(time.Hour), 10)
	store.putEvent(event)
	store.createErr = ErrUnknownUser
	before := testutil.ToFloat64(metrics.RegistrationAttempts.WithLabelValues("unknown_user"))

	_, err := newTestService(store).Register(context.Background(), event.ID, uuid.NewString())
	require.ErrorIs(t, err, ErrUnknownUser)
	var rejection *RejectionError
	require.False(t, errors.As(err, &rejection))
	require.Empty(t, store.registrations())
	require.Equal(t, before+1, testutil.ToFloat64(metrics.RegistrationAttempts.WithLabelValues("unknown_user")))
}

func TestRegister_EventDeletedBeforeInsert(t *testing.T) {
	store := newFakeStore()
	event := openEvent("Workshop", testNow.Add(time.Hour), 10)
	store.putEvent(event)
	store.createErr = events.ErrNotFound

	_, err := newTestService(store).Register(context.Background(), event.ID, uuid.NewString())
	requireRejection(t, err, KindNotFound, "Event not found")
}

func TestRegister_ConflictWarning(t *testing.T) {
	store := newFakeStore()
	userID := uuid.NewString()
	target := openEvent("Hackathon", testNow.Add(48*time.Hour), 10)
	near := openEvent("AI Talk", target.DateTime.Add(-90*time.Minute), 10)
	nearer := openEvent("Chess Club", target.DateTime.Add(30*time.Minute), 10)
	far := openEvent("Film Night", target.DateTime.Add(3*time.Hour), 10)
	for _, e := range []events.Event{target, near, nearer, far} {
		store.putEvent(e)
	}
	for _, e := range []events.Event{near, nearer, far} {
		store.putRegistration(Registration{ID: uuid.NewString(), UserID: userID, EventID: e.ID, RegistrationDate: testNow})
	}

	admission, err := newTestService(store).Register(context.Background(), target.ID, userID)
	require.NoError(t, err)
	require.Equal(t,
		`Potential time conflict with "Chess Club" at `+nearer.DateTime.Format(time.RFC3339),
		admission.ConflictWarning)
}

func TestRegister_ConflictWindowBoundary(t *testing.T) {
	store := newFakeStore()
	userID := uuid.NewString()
	target := openEvent("Hackathon", testNow.Add(48*time.Hour), 10)
	exactlyWindow := openEvent("Boundary", target.DateTime.Add(DefaultConflictWindow), 10)
	store.putEvent(target)
	store.putEvent(exactlyWindow)
	store.putRegistration(Registration{ID: uuid.NewString(), UserID: userID, EventID: exactlyWindow.ID, RegistrationDate: testNow})

	admission, err := newTestService(store).Register(context.Background(), target.ID, userID)
	require.NoError(t, err)
	require.Empty(t, admission.ConflictWarning)
}

func TestRegister_ConflictIgnoresCancelledEvents(t *testing.T) {
	store := newFakeStore()
	userID := uuid.NewString()
	target := openEvent("Hackathon", testNow.Add(48*time.Hour), 10)
	cancelled := openEvent("Cancelled talk", target.DateTime, 10)
	cancelled.Status = events.StatusCancelled
	store.putEvent(target)
	store.putEvent(cancelled)
	store.putRegistration(Registration{ID: uuid.NewString(), UserID: userID, EventID: cancelled.ID, RegistrationDate: testNow})

	admission, err := newTestService(store).Register(context.Background(), target.ID, userID)
	require.NoError(t, err)
	require.Empty(t, admission.ConflictWarning)
}

func TestRegister_CustomConflictWindow(t *testing.T) {
	store := newFakeStore()
	userID := uuid.NewString()
	target := openEvent("Hackathon", testNow.Add(48*time.Hour), 10)
	other := openEvent("Lecture", target.DateTime.Add(3*time.Hour), 10)
	store.putEvent(target)
	store.putEvent(other)
	store.putRegistration(Registration{ID: uuid.NewString(), UserID: userID, EventID: other.ID, RegistrationDate: testNow})

	admission, err := newTestService(store, WithConflictWindow(4*time.Hour)).Register(context.Background(), target.ID, userID)
	require.NoError(t, err)
	require.Contains(t, admission.ConflictWarning, `"Lecture"`)
}

func TestRegister_ConflictLookupFailureKeepsAdmission(t *testing.T) {
	store := newFakeStore()
	target := openEvent("Hackathon", testNow.Add(48*time.Hour), 10)
	store.putEvent(target)
	store.listForUserErr = errors.New("timeout")

	admission, err := newTestService(store).Register(context.Background(), target.ID, uuid.NewString())
	require.NoError(t, err)
	require.Empty(t, admission.ConflictWarning)
	require.Len(t, store.registrations(), 1)
}

func TestRegister_CountsOutcomes(t *testing.T) {
	store := newFakeStore()
	event := openEvent("Metrics", testNow.Add(time.Hour), 10)
	store.putEvent(event)
	svc := newTestService(store)

	admitted := testutil.ToFloat64(metrics.RegistrationAttempts.WithLabelValues("admitted"))
	notFound := testutil.ToFloat64(metrics.RegistrationAttempts.WithLabelValues(string(KindNotFound)))

	_, err := svc.Register(context.Background(), event.ID, uuid.NewString())
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), uuid.NewString(), uuid.NewString())
	require.Error(t, err)

	require.Equal(t, admitted+1, testutil.ToFloat64(metrics.RegistrationAttempts.WithLabelValues("admitted")))
	require.Equal(t, notFound+1, testutil.ToFloat64(metrics.RegistrationAttempts.WithLabelValues(string(KindNotFound))))
}

func TestForUserAndAttendees(t *testing.T) {
	store := newFakeStore()
	userID := uuid.NewString()
	store.state.users[userID] = fakeUser{FullName: "Ada Lovelace", Email: "ada@example.edu"}
	event := openEvent("Math Circle", testNow.Add(time.Hour), 10)
	store.putEvent(event)
	svc := newTestService(store)

	_, err := svc.Register(context.Background(), event.ID, userID)
	require.NoError(t, err)

	mine, err := svc.ForUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "Math Circle", mine[0].EventTitle)

	attendees, err := svc.Attendees(context.Background(), event.ID)
	require.NoError(t, err)
	require.Len(t, attendees, 1)
	require.Equal(t, "ada@example.edu", attendees[0].Email)

	_, err = svc.Attendees(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, events.ErrNotFound)
}
