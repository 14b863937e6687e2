package consent

import (
	"testing"
	"time"
)

func TestScope_IsEmpty(t *testing.T) {
	if !(Scope{}).IsEmpty() {
		t.Error("zero scope should be empty")
	}
	if (Scope{ViewAllergies: true}).IsEmpty() {
		t.Error("scope with one capability should not be empty")
	}
	if FullScope().IsEmpty() {
		t.Error("full scope should not be empty")
	}
}

func TestScope_IntersectDiff(t *testing.T) {
	granted := Scope{ViewDiagnosis: true, ViewMedications: true}
	requested := Scope{ViewDiagnosis: true, ViewLabResults: true}

	got := requested.Intersect(granted)
	want := Scope{ViewDiagnosis: true}
	if got != want {
		t.Errorf("Intersect = %+v, want %+v", got, want)
	}

	missing := requested.Diff(got)
	wantMissing := Scope{ViewLabResults: true}
	if missing != wantMissing {
		t.Errorf("Diff = %+v, want %+v", missing, wantMissing)
	}
}

func TestScope_Names(t *testing.T) {
	s := Scope{ViewDiagnosis: true, ViewFullHistory: true}
	names := s.Names()
	if len(names) != 2 || names[0] != "diagnosis" || names[1] != "full_history" {
		t.Errorf("Names = %v", names)
	}
	if len((Scope{}).Names()) != 0 {
		t.Error("empty scope should have no names")
	}
}

func TestConsent_Expiry(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	tests := []struct {
		name      string
		consent   Consent
		effective bool
	}{
		{"granted no expiry", Consent{Status: StatusGranted}, true},
		{"granted future expiry", Consent{Status: StatusGranted, ExpiresAt: &future}, true},
		{"granted past expiry", Consent{Status: StatusGranted, ExpiresAt: &past}, false},
		{"revoked", Consent{Status: StatusRevoked}, false},
		{"expired", Consent{Status: StatusExpired}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.consent.IsEffective(now); got != tt.effective {
				t.Errorf("IsEffective = %v, want %v", got, tt.effective)
			}
		})
	}
}

func TestValidGrantedToType(t *testing.T) {
	for _, valid := range []string{GrantedToDoctor, GrantedToHospital, GrantedToPharmacy, GrantedToLab} {
		if !ValidGrantedToType(valid) {
			t.Errorf("%q should be valid", valid)
		}
	}
	for _, invalid := range []string{"", "nurse", "DOCTOR"} {
		if ValidGrantedToType(invalid) {
			t.Errorf("%q should be invalid", invalid)
		}
	}
}
