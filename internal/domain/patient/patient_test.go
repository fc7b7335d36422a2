package patient

import (
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestNormalize_DerivesNameAndEmail(t *testing.T) {
	p := &Patient{FirstName: " Jane ", LastName: "Doe", Email: "Jane.Doe@Example.COM"}
	p.Normalize()

	if p.FullName != "Jane Doe" {
		t.Errorf("expected full name %q, got %q", "Jane Doe", p.FullName)
	}
	if p.FullNameLower != "jane doe" {
		t.Errorf("expected lower full name, got %q", p.FullNameLower)
	}
	if p.EmailLower != "jane.doe@example.com" {
		t.Errorf("expected lower email, got %q", p.EmailLower)
	}
}

func TestUpdateCommand_RecomputesDenormalizedFields(t *testing.T) {
	tests := []struct {
		name string
		cmd  UpdatePatientCommand
		want string
	}{
		{"first only", UpdatePatientCommand{FirstName: strPtr("Janet")}, "Janet Doe"},
		{"last only", UpdatePatientCommand{LastName: strPtr("Smith")}, "Jane Smith"},
		{"both", UpdatePatientCommand{FirstName: strPtr("Ana"), LastName: strPtr("Lopez")}, "Ana Lopez"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Patient{FirstName: "Jane", LastName: "Doe"}
			p.Normalize()

			tt.cmd.Apply(p)

			if p.FullName != p.FirstName+" "+p.LastName {
				t.Errorf("full name %q does not match parts %q %q", p.FullName, p.FirstName, p.LastName)
			}
			if p.FullName != tt.want {
				t.Errorf("expected %q, got %q", tt.want, p.FullName)
			}
			if p.FullNameLower != strings.ToLower(p.FullName) {
				t.Errorf("lower name %q out of sync with %q", p.FullNameLower, p.FullName)
			}
		})
	}
}

func TestUpdateCommand_EmailMirror(t *testing.T) {
	p := &Patient{FirstName: "A", LastName: "B", Email: "old@x.com"}
	p.Normalize()

	(&UpdatePatientCommand{Email: strPtr("NEW@X.com")}).Apply(p)
	if p.EmailLower != "new@x.com" {
		t.Errorf("expected email mirror to update, got %q", p.EmailLower)
	}
}

func TestMatches(t *testing.T) {
	p := &Patient{FirstName: "Mary", LastName: "Jane", Phone: "+1234567890", Email: "mj@clinic.io"}
	p.Normalize()

	tests := []struct {
		q    string
		want bool
	}{
		{"jane", true},
		{"MARY", true},
		{"mary j", true},
		{"+1234567890", true},
		{"4567", true},
		{"MJ@clinic.io", true},
		{"mj@", false},
		{"john", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := p.Matches(tt.q); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.q, got, tt.want)
		}
	}
}
