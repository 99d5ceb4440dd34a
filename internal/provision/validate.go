package provision

import "regexp"

// Request is the provisioning payload as delivered by the HTTP boundary.
type Request struct {
	ManagerEmployeeID string `json:"manager_employee_id"`
	NewEmployeeID     string `json:"new_employee_id"`
	NewEmployeeName   string `json:"new_employee_name"`
}

var (
	employeeIDPattern   = regexp.MustCompile(`^[A-Za-z0-9-]{1,50}$`)
	employeeNamePattern = regexp.MustCompile(`^[A-Za-z\s-]{1,100}$`)
)

// ValidateRequest runs the syntactic checks on the payload: presence of
// all three fields first (manager id, employee id, employee name), then
// format in the same order. It reports the first failing field and has no
// side effects.
func ValidateRequest(req Request) error {
	presence := []struct {
		field string
		value string
	}{
		{"manager_employee_id", req.ManagerEmployeeID},
		{"new_employee_id", req.NewEmployeeID},
		{"new_employee_name", req.NewEmployeeName},
	}
	for _, p := range presence {
		if p.value == "" {
			return &ValidationError{Field: p.field, Reason: "Missing required field: " + p.field}
		}
	}

	if !employeeIDPattern.MatchString(req.ManagerEmployeeID) {
		return &ValidationError{
			Field:  "manager_employee_id",
			Reason: "Manager employee ID must contain only alphanumeric characters and hyphens (max 50 chars)",
		}
	}
	if !employeeIDPattern.MatchString(req.NewEmployeeID) {
		return &ValidationError{
			Field:  "new_employee_id",
			Reason: "New employee ID must contain only alphanumeric characters and hyphens (max 50 chars)",
		}
	}
	if !employeeNamePattern.MatchString(req.NewEmployeeName) {
		return &ValidationError{
			Field:  "new_employee_name",
			Reason: "Employee name must contain only letters, spaces, and hyphens (max 100 chars)",
		}
	}
	return nil
}
