package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStudentName(t *testing.T) {
	assert.Equal(t, "Priya Nair", Student{FirstName: "Priya", LastName: "Nair"}.Name())
	assert.Equal(t, "Priya", Student{FirstName: "Priya"}.Name())
}

func TestEmployeeName(t *testing.T) {
	assert.Equal(t, "Arun Rao", Employee{FirstName: "Arun", LastName: "Rao"}.Name())
	assert.Equal(t, "Arun", Employee{FirstName: "Arun"}.Name())
}

func TestIdentityRoles(t *testing.T) {
	var who Identity = Student{StudentID: "s1"}
	assert.Equal(t, "s1", who.ID())
	assert.Equal(t, "student", who.Role())

	who = Employee{EmployeeID: "e1", StaffRole: "warden"}
	assert.Equal(t, "e1", who.ID())
	assert.Equal(t, "warden", who.Role())
}
