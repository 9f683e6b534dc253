// Package identity exposes the resident/staff lookup the attendance core
// depends on. The core only ever holds the opaque ID; role-specific data
// stays behind this package.
package identity

// Identity is anyone who can log in and own tokens, events, or violations.
type Identity interface {
	ID() string
	Role() string
	Name() string
}

// Student is a hostel resident.
type Student struct {
	StudentID  string  `json:"student_id"`
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	Email      string  `json:"email"`
	RollNumber string  `json:"roll_number"`
	Department *string `json:"department,omitempty"`
	Year       *int    `json:"year,omitempty"`
}

func (s Student) ID() string   { return s.StudentID }
func (s Student) Role() string { return "student" }

// Name returns the display name used in violation and anomaly descriptions.
func (s Student) Name() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// Employee is warden/admin/security staff who can verify scans and resolve
// violations.
type Employee struct {
	EmployeeID string `json:"employee_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	StaffRole  string `json:"role"`
	Email      string `json:"email"`
}

func (e Employee) ID() string   { return e.EmployeeID }
func (e Employee) Role() string { return e.StaffRole }

func (e Employee) Name() string {
	if e.LastName == "" {
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}
