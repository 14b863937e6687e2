package policy

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/domain/accesslog"
	"github.com/medvault/medvault/internal/domain/consent"
	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/pkg/apperrors"
)

type pair struct {
	patient, grantee uuid.UUID
}

type mockResolver struct {
	scopes map[pair]consent.Scope
	err    error
}

func (m *mockResolver) ResolveEffective(ctx context.Context, patientID, grantedTo uuid.UUID) (consent.Scope, bool, error) {
	if m.err != nil {
		return consent.Scope{}, false, m.err
	}
	s, ok := m.scopes[pair{patientID, grantedTo}]
	return s, ok, nil
}

type mockAudit struct {
	entries []accesslog.Entry
	err     error
}

func (m *mockAudit) Record(ctx context.Context, e *accesslog.Entry) (uuid.UUID, error) {
	if m.err != nil {
		return uuid.Nil, apperrors.ErrServiceUnavailable.WithInternal(m.err)
	}
	e.ID = uuid.New()
	m.entries = append(m.entries, *e)
	return e.ID, nil
}

func newEvaluator(resolver *mockResolver, audit *mockAudit) *Evaluator {
	if resolver.scopes == nil {
		resolver.scopes = make(map[pair]consent.Scope)
	}
	return NewEvaluator(resolver, audit, zerolog.New(io.Discard))
}

func TestDecide_SelfAccessIsTotal(t *testing.T) {
	resolver := &mockResolver{err: errors.New("resolver must not be consulted for self-access")}
	audit := &mockAudit{}
	ev := newEvaluator(resolver, audit)
	patient := uuid.New()

	requested := consent.Scope{ViewDiagnosis: true, ViewFullHistory: true}
	d, err := ev.Decide(context.Background(), Request{
		RequesterID:   patient,
		RequesterRole: auth.RolePatient,
		PatientID:     patient,
		Requested:     requested,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Outcome != OutcomeAllow || d.Granted != requested {
		t.Errorf("expected total allow, got %+v", d)
	}
	if len(audit.entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(audit.entries))
	}
	if audit.entries[0].DataAccessed != requested || audit.entries[0].IsEmergencyAccess {
		t.Errorf("unexpected audit entry: %+v", audit.entries[0])
	}
}

func TestDecide_GrantThenRequestSameScopeAllows(t *testing.T) {
	patient, doctor := uuid.New(), uuid.New()
	scope := consent.Scope{ViewDiagnosis: true, ViewAllergies: true}
	resolver := &mockResolver{scopes: map[pair]consent.Scope{{patient, doctor}: scope}}
	audit := &mockAudit{}
	ev := newEvaluator(resolver, audit)

	d, err := ev.Decide(context.Background(), Request{
		RequesterID:   doctor,
		RequesterRole: auth.RoleDoctor,
		PatientID:     patient,
		Requested:     scope,
	})
	if err != nil {
		t.Fatal(err)
	}
	if d.Outcome != OutcomeAllow || d.Granted != scope || !d.Missing.IsEmpty() {
		t.Errorf("expected Allow with full request granted, got %+v", d)
	}
	if len(audit.entries) != 1 {
		t.Errorf("expected exactly one audit entry, got %d", len(audit.entries))
	}
	if !strings.Contains(audit.entries[0].Action, "outcome=ALLOW") {
		t.Errorf("action missing outcome tag: %q", audit.entries[0].Action)
	}
}

func TestDecide_PartialGrantEligibleDoctor(t *testing.T) {
	patient, doctor := uuid.New(), uuid.New()
	resolver := &mockResolver{scopes: map[pair]consent.Scope{
		{patient, doctor}: {ViewDiagnosis: true},
	}}
	audit := &mockAudit{}
	ev := newEvaluator(resolver, audit)

	d, err := ev.Decide(context.Background(), Request{
		RequesterID:   doctor,
		RequesterRole: auth.RoleDoctor,
		PatientID:     patient,
		Requested:     consent.Scope{ViewDiagnosis: true, ViewLabResults: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if d.Outcome != OutcomeEmergencyEligible {
		t.Errorf("doctor with unmet capabilities should be emergency eligible, got %s", d.Outcome)
	}
	if d.Granted != (consent.Scope{ViewDiagnosis: true}) {
		t.Errorf("granted = %+v", d.Granted)
	}
	if d.Missing != (consent.Scope{ViewLabResults: true}) {
		t.Errorf("missing = %+v", d.Missing)
	}
	if !strings.Contains(audit.entries[0].Action, "outcome=ESCALATION_OFFERED") {
		t.Errorf("action = %q", audit.entries[0].Action)
	}
}

func TestDecide_PartialGrantNonEligibleRole(t *testing.T) {
	patient, pharmacist := uuid.New(), uuid.New()
	resolver := &mockResolver{scopes: map[pair]consent.Scope{
		{patient, pharmacist}: {ViewMedications: true},
	}}
	audit := &mockAudit{}
	ev := newEvaluator(resolver, audit)

	d, err := ev.Decide(context.Background(), Request{
		RequesterID:   pharmacist,
		RequesterRole: auth.RolePharmacist,
		PatientID:     patient,
		Requested:     consent.Scope{ViewMedications: true, ViewAllergies: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if d.Outcome != OutcomePartialAllow {
		t.Errorf("expected PartialAllow, got %s", d.Outcome)
	}
	if d.Granted != (consent.Scope{ViewMedications: true}) || d.Missing != (consent.Scope{ViewAllergies: true}) {
		t.Errorf("granted=%+v missing=%+v", d.Granted, d.Missing)
	}
}

func TestDecide_NoConsentDenies(t *testing.T) {
	patient, pharmacist := uuid.New(), uuid.New()
	resolver := &mockResolver{}
	audit := &mockAudit{}
	ev := newEvaluator(resolver, audit)

	requested := consent.Scope{ViewMedications: true}
	d, err := ev.Decide(context.Background(), Request{
		RequesterID:   pharmacist,
		RequesterRole: auth.RolePharmacist,
		PatientID:     patient,
		Requested:     requested,
	})
	if err != nil {
		t.Fatal(err)
	}
	if d.Outcome != OutcomeDeny || !d.Granted.IsEmpty() || d.Missing != requested {
		t.Errorf("expected Deny(missing=requested), got %+v", d)
	}
	if len(audit.entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(audit.entries))
	}
	entry := audit.entries[0]
	if !entry.DataAccessed.IsEmpty() || entry.IsEmergencyAccess {
		t.Errorf("unexpected audit entry: %+v", entry)
	}
	if !strings.Contains(entry.Action, "outcome=DENY") {
		t.Errorf("action = %q", entry.Action)
	}
}

func TestDecide_NoConsentEligibleRole(t *testing.T) {
	patient, hospitalAdmin := uuid.New(), uuid.New()
	ev := newEvaluator(&mockResolver{}, &mockAudit{})

	d, err := ev.Decide(context.Background(), Request{
		RequesterID:   hospitalAdmin,
		RequesterRole: auth.RoleHospitalAdmin,
		PatientID:     patient,
		Requested:     consent.Scope{ViewFullHistory: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if d.Outcome != OutcomeEmergencyEligible {
		t.Errorf("hospital_admin should be emergency eligible, got %s", d.Outcome)
	}
}

func TestDecide_FailsClosedOnAuditFailure(t *testing.T) {
	patient, doctor := uuid.New(), uuid.New()
	resolver := &mockResolver{scopes: map[pair]consent.Scope{
		{patient, doctor}: consent.FullScope(),
	}}
	audit := &mockAudit{err: errors.New("connection refused")}
	ev := newEvaluator(resolver, audit)

	d, err := ev.Decide(context.Background(), Request{
		RequesterID:   doctor,
		RequesterRole: auth.RoleDoctor,
		PatientID:     patient,
		Requested:     consent.Scope{ViewDiagnosis: true},
	})
	if !errors.Is(err, apperrors.ErrServiceUnavailable) {
		t.Errorf("expected service unavailable, got %v", err)
	}
	if d != nil {
		t.Error("no decision may be released when the audit write failed")
	}
}

func TestDecide_Validation(t *testing.T) {
	ev := newEvaluator(&mockResolver{}, &mockAudit{})

	_, err := ev.Decide(context.Background(), Request{
		RequesterID:   uuid.New(),
		RequesterRole: auth.RoleDoctor,
		PatientID:     uuid.New(),
	})
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("empty requested set should be rejected, got %v", err)
	}

	_, err = ev.Decide(context.Background(), Request{
		RequesterRole: auth.RoleDoctor,
		PatientID:     uuid.New(),
		Requested:     consent.Scope{ViewDiagnosis: true},
	})
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("nil requester should be rejected, got %v", err)
	}
}
