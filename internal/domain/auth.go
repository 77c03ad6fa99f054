package domain

// SubjectType differentiates the three kinds of authenticated callers.
type SubjectType string

const (
	SubjectTypeUser       SubjectType = "USER"
	SubjectTypeAdmin      SubjectType = "ADMIN"
	SubjectTypeDepartment SubjectType = "DEPARTMENT"

	// SubjectTypeSystem attributes automated changes; it never appears in tokens.
	SubjectTypeSystem SubjectType = "SYSTEM"
)

// Valid reports whether the subject type is one of the known values.
func (s SubjectType) Valid() bool {
	switch s {
	case SubjectTypeUser, SubjectTypeAdmin, SubjectTypeDepartment:
		return true
	}
	return false
}

// Actor is the authenticated caller as seen by services. ID is the user, admin or
// department id depending on Type.
type Actor struct {
	Type SubjectType
	ID   int64
}

func UserActor(id int64) Actor       { return Actor{Type: SubjectTypeUser, ID: id} }
func AdminActor(id int64) Actor      { return Actor{Type: SubjectTypeAdmin, ID: id} }
func DepartmentActor(id int64) Actor { return Actor{Type: SubjectTypeDepartment, ID: id} }

func (a Actor) IsAdmin() bool { return a.Type == SubjectTypeAdmin }

// IsUser reports whether the actor is the citizen with the given id.
func (a Actor) IsUser(userID int64) bool {
	return a.Type == SubjectTypeUser && a.ID == userID
}

// IsDepartment reports whether the actor is the department with the given id.
func (a Actor) IsDepartment(departmentID int64) bool {
	return a.Type == SubjectTypeDepartment && a.ID == departmentID
}

// CanView reports whether the complaint is visible: admins see everything, the
// owning citizen sees their own, and a department sees what is assigned to it.
func (a Actor) CanView(c *Complaint) bool {
	if c == nil {
		return false
	}
	switch a.Type {
	case SubjectTypeAdmin:
		return true
	case SubjectTypeUser:
		return c.UserID == a.ID
	case SubjectTypeDepartment:
		return c.AssignedTo(a.ID)
	}
	return false
}
