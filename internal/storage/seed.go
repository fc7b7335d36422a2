package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/patient"
)

var seedUsers = []domain.User{
	{ExternalAuthID: "seed-admin", Email: "admin@clinicdesk.local", Name: "Clinic Admin", Role: domain.RoleAdmin, IsActive: true},
	{ExternalAuthID: "seed-doctor", Email: "doctor@clinicdesk.local", Name: "Dr. Priya Sharma", Role: domain.RoleDoctor, Specialization: "General Dentistry", IsActive: true},
	{ExternalAuthID: "seed-nurse", Email: "nurse@clinicdesk.local", Name: "Rahul Verma", Role: domain.RoleNurse, IsActive: true},
	{ExternalAuthID: "seed-staff", Email: "frontdesk@clinicdesk.local", Name: "Anita Rao", Role: domain.RoleStaff, IsActive: true},
}

var seedPatients = []patient.CreatePatientCommand{
	{FirstName: "Aarav", LastName: "Mehta", Gender: patient.GenderMale, Phone: "+919810000001", Email: "aarav.mehta@example.com"},
	{FirstName: "Sara", LastName: "Iyer", Gender: patient.GenderFemale, Phone: "+919810000002", Email: "sara.iyer@example.com"},
	{FirstName: "Kabir", LastName: "Singh", Gender: patient.GenderMale, Phone: "+919810000003"},
}

// Seed loads demo users, patients and appointments. It does nothing when any
// user already exists, so running it repeatedly is safe.
func Seed(ctx context.Context, s Store, log *zap.Logger) (bool, error) {
	has, err := s.HasUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("checking existing users: %w", err)
	}
	if has {
		log.Info("seed skipped, users already present")
		return false, nil
	}

	var doctorID string
	for i := range seedUsers {
		u, err := s.CreateUser(ctx, &seedUsers[i])
		if err != nil {
			return false, fmt.Errorf("seeding user %s: %w", seedUsers[i].Email, err)
		}
		if u.Role == domain.RoleDoctor {
			doctorID = u.ID
		}
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	types := []appointment.AppointmentType{appointment.TypeCheckup, appointment.TypeCleaning, appointment.TypeConsultation}

	for i := range seedPatients {
		cmd := seedPatients[i]
		cmd.DateOfBirth = today.AddDate(-25-10*i, 0, 0)
		p, err := s.CreatePatient(ctx, cmd.ToPatient())
		if err != nil {
			return false, fmt.Errorf("seeding patient %s %s: %w", cmd.FirstName, cmd.LastName, err)
		}

		_, err = s.CreateAppointment(ctx, &appointment.Appointment{
			PatientID:    p.ID,
			DoctorID:     doctorID,
			ScheduledAt:  today.Add(time.Duration(9+i) * time.Hour),
			DurationMins: 30,
			Type:         types[i%len(types)],
		})
		if err != nil {
			return false, fmt.Errorf("seeding appointment for %s: %w", p.ID, err)
		}
	}

	log.Info("seed data loaded",
		zap.Int("users", len(seedUsers)),
		zap.Int("patients", len(seedPatients)),
	)
	return true, nil
}
