package domain

import "testing"

func TestRoleLevel_UnknownRoleIsRejected(t *testing.T) {
	if _, ok := Role("admn").Level(); ok {
		t.Fatal("expected unknown role to report ok=false")
	}
	if Role("admn").IsValid() {
		t.Fatal("expected unknown role to be invalid")
	}
	if Role("admn").AtLeast(RolePatient) {
		t.Fatal("unknown role must not pass hierarchy checks")
	}
}

func TestRoleLevel_Hierarchy(t *testing.T) {
	order := []Role{RolePatient, RoleStaff, RoleNurse, RoleDoctor, RoleAdmin}
	prev := -1
	for _, r := range order {
		lvl, ok := r.Level()
		if !ok {
			t.Fatalf("expected %s to be known", r)
		}
		if lvl <= prev {
			t.Errorf("expected %s level %d above %d", r, lvl, prev)
		}
		prev = lvl
	}
	if !RoleDoctor.AtLeast(RoleNurse) {
		t.Error("doctor should rank at least nurse")
	}
	if RoleStaff.AtLeast(RoleDoctor) {
		t.Error("staff should not rank at least doctor")
	}
}

func TestRolePermissions(t *testing.T) {
	tests := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleAdmin, PermCleanupUploads, true},
		{RoleAdmin, PermReadAudit, true},
		{RoleDoctor, PermWriteClinical, true},
		{RoleDoctor, PermManageUsers, false},
		{RoleNurse, PermWriteClinical, false},
		{RoleStaff, PermUploadPhotos, true},
		{RoleStaff, PermReadClinical, false},
		{RolePatient, PermReadPatients, false},
		{Role("ghost"), PermReadPatients, false},
	}
	for _, tt := range tests {
		if got := tt.role.Can(tt.perm); got != tt.want {
			t.Errorf("%s.Can(%s) = %v, want %v", tt.role, tt.perm, got, tt.want)
		}
	}
}

func TestUserNormalize(t *testing.T) {
	u := &User{Email: "  Dr.Who@Clinic.COM ", Name: " Who "}
	u.Normalize()
	if u.EmailLower != "dr.who@clinic.com" {
		t.Errorf("expected lowercase email, got %q", u.EmailLower)
	}
	if u.Email != "Dr.Who@Clinic.COM" {
		t.Errorf("expected trimmed email, got %q", u.Email)
	}

	email := "New@Clinic.com"
	(&UpdateUserCommand{Email: &email}).Apply(u)
	if u.EmailLower != "new@clinic.com" {
		t.Errorf("expected email mirror to follow update, got %q", u.EmailLower)
	}
}
