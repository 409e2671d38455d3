package schema

import "fmt"

const (
	RoleRootAdmin  = "root_admin"
	RoleOrgAdmin   = "org_admin"
	RoleAdmin      = "admin"
	RoleAuditor    = "auditor"
	RoleFieldAgent = "field_agent"
)

func CheckValidRole(role string) error {
	switch role {
	case RoleRootAdmin, RoleOrgAdmin, RoleAdmin, RoleAuditor, RoleFieldAgent:
		return nil
	}
	return fmt.Errorf("invalid role '%v'", role)
}

// IsTopDownRole reports whether uploads by this role are assigned
// downward to a designated admin.
func IsTopDownRole(role string) bool {
	return role == RoleRootAdmin || role == RoleOrgAdmin
}

// IsSubordinateRole reports whether the role acts under a supervising
// admin.
func IsSubordinateRole(role string) bool {
	return role == RoleAuditor || role == RoleFieldAgent
}

const (
	DatasetProcessing = "processing"
	DatasetCompleted  = "completed"
	DatasetPartial    = "partial"
	DatasetFailed     = "failed"
)

func CheckValidDatasetStatus(status string) error {
	switch status {
	case DatasetProcessing, DatasetCompleted, DatasetPartial, DatasetFailed:
		return nil
	}
	return fmt.Errorf("invalid dataset status '%v'", status)
}

const (
	FieldHintRegistration = "registration"
	FieldHintChassis      = "chassis"
	FieldHintAny          = "any"
)

func CheckValidFieldHint(hint string) error {
	switch hint {
	case FieldHintRegistration, FieldHintChassis, FieldHintAny:
		return nil
	}
	return fmt.Errorf("invalid field hint '%v', must be 'registration', 'chassis', or 'any'", hint)
}
