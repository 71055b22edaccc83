package repository

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"be-guichet/internal/domain"
	apperrors "be-guichet/pkg/errors"
)

// memState is the committed state of a MemoryStore. A committed state is
// never mutated: transactions work on a clone and swap it in on success.
type memState struct {
	events       map[string]domain.Event
	activities   map[string]domain.Activity
	participants map[string]domain.Participant
	emails       map[string]string
	enrollments  map[string]domain.Enrollment
	admissions   map[string]domain.AdmissionRecord
	audit        []domain.AuditEntry
}

func newMemState() *memState {
	return &memState{
		events:       make(map[string]domain.Event),
		activities:   make(map[string]domain.Activity),
		participants: make(map[string]domain.Participant),
		emails:       make(map[string]string),
		enrollments:  make(map[string]domain.Enrollment),
		admissions:   make(map[string]domain.AdmissionRecord),
	}
}

func (s *memState) clone() *memState {
	out := &memState{
		events:       make(map[string]domain.Event, len(s.events)),
		activities:   make(map[string]domain.Activity, len(s.activities)),
		participants: make(map[string]domain.Participant, len(s.participants)),
		emails:       make(map[string]string, len(s.emails)),
		enrollments:  make(map[string]domain.Enrollment, len(s.enrollments)),
		admissions:   make(map[string]domain.AdmissionRecord, len(s.admissions)),
		audit:        make([]domain.AuditEntry, len(s.audit)),
	}
	for k, v := range s.events {
		out.events[k] = v
	}
	for k, v := range s.activities {
		out.activities[k] = v.Clone()
	}
	for k, v := range s.participants {
		out.participants[k] = v
	}
	for k, v := range s.emails {
		out.emails[k] = v
	}
	for k, v := range s.enrollments {
		out.enrollments[k] = v
	}
	for k, v := range s.admissions {
		out.admissions[k] = v
	}
	copy(out.audit, s.audit)
	return out
}

func enrollmentKey(participantID, activityID string) string {
	return participantID + "|" + activityID
}

func admissionKey(participantID, eventID, activityID string) string {
	return participantID + "|" + eventID + "|" + activityID
}

// MemoryStore is an in-process Store. Writers are serialised by a single
// exclusive lock with a bounded wait; readers see the last committed state.
type MemoryStore struct {
	state       atomic.Pointer[memState]
	sem         chan struct{}
	lockTimeout time.Duration
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(lockTimeout time.Duration) *MemoryStore {
	if lockTimeout <= 0 {
		lockTimeout = 2 * time.Second
	}
	s := &MemoryStore{
		sem:         make(chan struct{}, 1),
		lockTimeout: lockTimeout,
	}
	s.state.Store(newMemState())
	return s
}

// WithinTx runs fn against a private copy of the state and commits it
// only when fn succeeds.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return apperrors.NewUnavailableError("store is busy, retry later", ctx.Err())
	case <-timer.C:
		return apperrors.NewUnavailableError("store is busy, retry later", fmt.Errorf("lock wait exceeded %s", s.lockTimeout))
	}
	defer func() { <-s.sem }()

	working := s.state.Load().clone()
	if err := fn(ctx, &memView{state: working}); err != nil {
		return err
	}
	s.state.Store(working)
	return nil
}

// autoCommit runs a single write as its own transaction
func (s *MemoryStore) autoCommit(ctx context.Context, fn func(v *memView) error) error {
	return s.WithinTx(ctx, func(_ context.Context, tx Tx) error {
		return fn(tx.(*memView))
	})
}

func (s *MemoryStore) snapshot() *memView {
	return &memView{state: s.state.Load()}
}

// Health always succeeds for the in-memory store
func (s *MemoryStore) Health(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op; the state lives as long as the store value
func (s *MemoryStore) Close() {}

func (s *MemoryStore) Catalog() CatalogRepository          { return memCatalog{s} }
func (s *MemoryStore) Participants() ParticipantRepository { return memParticipants{s} }
func (s *MemoryStore) Enrollments() EnrollmentRepository   { return memEnrollments{s} }
func (s *MemoryStore) Admissions() AdmissionRepository     { return memAdmissions{s} }
func (s *MemoryStore) Audit() AuditRepository              { return memAudit{s} }

// memView implements every repository over one state. Inside WithinTx the
// state is the private working copy.
type memView struct {
	state *memState
}

func (v *memView) Catalog() CatalogRepository          { return v }
func (v *memView) Participants() ParticipantRepository { return memParticipantView{v} }
func (v *memView) Enrollments() EnrollmentRepository   { return memEnrollmentView{v} }
func (v *memView) Admissions() AdmissionRepository     { return memAdmissionView{v} }
func (v *memView) Audit() AuditRepository              { return memAuditView{v} }

// Catalog

func (v *memView) CreateEvent(_ context.Context, event *domain.Event) error {
	if _, ok := v.state.events[event.ID]; ok {
		return ErrDuplicate
	}
	v.state.events[event.ID] = *event
	return nil
}

func (v *memView) GetEvent(_ context.Context, id string) (*domain.Event, error) {
	e, ok := v.state.events[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (v *memView) CreateActivity(_ context.Context, activity *domain.Activity) error {
	if _, ok := v.state.activities[activity.ID]; ok {
		return ErrDuplicate
	}
	v.state.activities[activity.ID] = activity.Clone()
	return nil
}

func (v *memView) GetActivity(_ context.Context, id string) (*domain.Activity, error) {
	a, ok := v.state.activities[id]
	if !ok {
		return nil, nil
	}
	out := a.Clone()
	return &out, nil
}

func (v *memView) ListActivities(_ context.Context, eventID string) ([]domain.Activity, error) {
	out := make([]domain.Activity, 0)
	for _, a := range v.state.activities {
		if a.EventID == eventID {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (v *memView) SetTierReserved(_ context.Context, activityID, tier string, reserved int) error {
	a, ok := v.state.activities[activityID]
	if !ok {
		return fmt.Errorf("activity %s not found", activityID)
	}
	a = a.Clone()
	t, ok := a.Tier(tier)
	if !ok {
		return fmt.Errorf("tier %s not found on activity %s", tier, activityID)
	}
	t.Reserved = reserved
	v.state.activities[activityID] = a
	return nil
}

// Participants

type memParticipantView struct{ v *memView }

func (p memParticipantView) Create(_ context.Context, participant *domain.Participant) error {
	if _, ok := p.v.state.participants[participant.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := p.v.state.emails[participant.Email]; ok {
		return ErrDuplicate
	}
	p.v.state.participants[participant.ID] = *participant
	p.v.state.emails[participant.Email] = participant.ID
	return nil
}

func (p memParticipantView) GetByID(_ context.Context, id string) (*domain.Participant, error) {
	out, ok := p.v.state.participants[id]
	if !ok {
		return nil, nil
	}
	return &out, nil
}

func (p memParticipantView) GetByEmail(ctx context.Context, email string) (*domain.Participant, error) {
	id, ok := p.v.state.emails[email]
	if !ok {
		return nil, nil
	}
	return p.GetByID(ctx, id)
}

func (p memParticipantView) Update(_ context.Context, participant *domain.Participant) error {
	old, ok := p.v.state.participants[participant.ID]
	if !ok {
		return fmt.Errorf("participant %s not found", participant.ID)
	}
	if old.Email != participant.Email {
		if owner, taken := p.v.state.emails[participant.Email]; taken && owner != participant.ID {
			return ErrDuplicate
		}
		delete(p.v.state.emails, old.Email)
		p.v.state.emails[participant.Email] = participant.ID
	}
	p.v.state.participants[participant.ID] = *participant
	return nil
}

// Enrollments

type memEnrollmentView struct{ v *memView }

func (e memEnrollmentView) Get(_ context.Context, participantID, activityID string) (*domain.Enrollment, error) {
	out, ok := e.v.state.enrollments[enrollmentKey(participantID, activityID)]
	if !ok {
		return nil, nil
	}
	return &out, nil
}

func (e memEnrollmentView) ListByParticipant(_ context.Context, participantID string) ([]domain.Enrollment, error) {
	out := make([]domain.Enrollment, 0)
	for _, en := range e.v.state.enrollments {
		if en.ParticipantID == participantID {
			out = append(out, en)
		}
	}
	sortEnrollments(out)
	return out, nil
}

func (e memEnrollmentView) ListByBatch(_ context.Context, batchID string) ([]domain.Enrollment, error) {
	out := make([]domain.Enrollment, 0)
	for _, en := range e.v.state.enrollments {
		if en.BatchID == batchID {
			out = append(out, en)
		}
	}
	sortEnrollments(out)
	return out, nil
}

func (e memEnrollmentView) Save(_ context.Context, enrollment *domain.Enrollment) error {
	e.v.state.enrollments[enrollmentKey(enrollment.ParticipantID, enrollment.ActivityID)] = *enrollment
	return nil
}

func sortEnrollments(list []domain.Enrollment) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].EnrolledAt.Equal(list[j].EnrolledAt) {
			return list[i].EnrolledAt.Before(list[j].EnrolledAt)
		}
		return list[i].ActivityID < list[j].ActivityID
	})
}

// Admissions

type memAdmissionView struct{ v *memView }

func (a memAdmissionView) Get(_ context.Context, participantID, eventID, activityID string) (*domain.AdmissionRecord, error) {
	out, ok := a.v.state.admissions[admissionKey(participantID, eventID, activityID)]
	if !ok {
		return nil, nil
	}
	return &out, nil
}

func (a memAdmissionView) ListByParticipant(_ context.Context, participantID, eventID string) ([]domain.AdmissionRecord, error) {
	out := make([]domain.AdmissionRecord, 0)
	for _, r := range a.v.state.admissions {
		if r.ParticipantID == participantID && r.EventID == eventID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActivityID < out[j].ActivityID })
	return out, nil
}

func (a memAdmissionView) InsertIfAbsent(_ context.Context, record *domain.AdmissionRecord) (*domain.AdmissionRecord, bool, error) {
	key := admissionKey(record.ParticipantID, record.EventID, record.ActivityID)
	if existing, ok := a.v.state.admissions[key]; ok {
		return &existing, false, nil
	}
	a.v.state.admissions[key] = *record
	stored := *record
	return &stored, true, nil
}

// Audit

type memAuditView struct{ v *memView }

func (a memAuditView) Append(_ context.Context, entry *domain.AuditEntry) error {
	a.v.state.audit = append(a.v.state.audit, *entry)
	return nil
}

func (a memAuditView) List(_ context.Context, kind domain.AuditKind, limit int) ([]domain.AuditEntry, error) {
	out := make([]domain.AuditEntry, 0)
	for i := len(a.v.state.audit) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		if kind == "" || a.v.state.audit[i].Kind == kind {
			out = append(out, a.v.state.audit[i])
		}
	}
	return out, nil
}

// Store-level repositories: reads use the committed snapshot, writes
// commit immediately.

type memCatalog struct{ s *MemoryStore }

func (c memCatalog) CreateEvent(ctx context.Context, event *domain.Event) error {
	return c.s.autoCommit(ctx, func(v *memView) error { return v.CreateEvent(ctx, event) })
}

func (c memCatalog) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	return c.s.snapshot().GetEvent(ctx, id)
}

func (c memCatalog) CreateActivity(ctx context.Context, activity *domain.Activity) error {
	return c.s.autoCommit(ctx, func(v *memView) error { return v.CreateActivity(ctx, activity) })
}

func (c memCatalog) GetActivity(ctx context.Context, id string) (*domain.Activity, error) {
	return c.s.snapshot().GetActivity(ctx, id)
}

func (c memCatalog) ListActivities(ctx context.Context, eventID string) ([]domain.Activity, error) {
	return c.s.snapshot().ListActivities(ctx, eventID)
}

func (c memCatalog) SetTierReserved(ctx context.Context, activityID, tier string, reserved int) error {
	return c.s.autoCommit(ctx, func(v *memView) error { return v.SetTierReserved(ctx, activityID, tier, reserved) })
}

type memParticipants struct{ s *MemoryStore }

func (p memParticipants) Create(ctx context.Context, participant *domain.Participant) error {
	return p.s.autoCommit(ctx, func(v *memView) error { return v.Participants().Create(ctx, participant) })
}

func (p memParticipants) GetByID(ctx context.Context, id string) (*domain.Participant, error) {
	return p.s.snapshot().Participants().GetByID(ctx, id)
}

func (p memParticipants) GetByEmail(ctx context.Context, email string) (*domain.Participant, error) {
	return p.s.snapshot().Participants().GetByEmail(ctx, email)
}

func (p memParticipants) Update(ctx context.Context, participant *domain.Participant) error {
	return p.s.autoCommit(ctx, func(v *memView) error { return v.Participants().Update(ctx, participant) })
}

type memEnrollments struct{ s *MemoryStore }

func (e memEnrollments) Get(ctx context.Context, participantID, activityID string) (*domain.Enrollment, error) {
	return e.s.snapshot().Enrollments().Get(ctx, participantID, activityID)
}

func (e memEnrollments) ListByParticipant(ctx context.Context, participantID string) ([]domain.Enrollment, error) {
	return e.s.snapshot().Enrollments().ListByParticipant(ctx, participantID)
}

func (e memEnrollments) ListByBatch(ctx context.Context, batchID string) ([]domain.Enrollment, error) {
	return e.s.snapshot().Enrollments().ListByBatch(ctx, batchID)
}

func (e memEnrollments) Save(ctx context.Context, enrollment *domain.Enrollment) error {
	return e.s.autoCommit(ctx, func(v *memView) error { return v.Enrollments().Save(ctx, enrollment) })
}

type memAdmissions struct{ s *MemoryStore }

func (a memAdmissions) Get(ctx context.Context, participantID, eventID, activityID string) (*domain.AdmissionRecord, error) {
	return a.s.snapshot().Admissions().Get(ctx, participantID, eventID, activityID)
}

func (a memAdmissions) ListByParticipant(ctx context.Context, participantID, eventID string) ([]domain.AdmissionRecord, error) {
	return a.s.snapshot().Admissions().ListByParticipant(ctx, participantID, eventID)
}

func (a memAdmissions) InsertIfAbsent(ctx context.Context, record *domain.AdmissionRecord) (*domain.AdmissionRecord, bool, error) {
	var (
		stored  *domain.AdmissionRecord
		created bool
	)
	err := a.s.autoCommit(ctx, func(v *memView) error {
		var err error
		stored, created, err = v.Admissions().InsertIfAbsent(ctx, record)
		return err
	})
	return stored, created, err
}

type memAudit struct{ s *MemoryStore }

func (a memAudit) Append(ctx context.Context, entry *domain.AuditEntry) error {
	return a.s.autoCommit(ctx, func(v *memView) error { return v.Audit().Append(ctx, entry) })
}

func (a memAudit) List(ctx context.Context, kind domain.AuditKind, limit int) ([]domain.AuditEntry, error) {
	return a.s.snapshot().Audit().List(ctx, kind, limit)
}
