package access

import "vehicle_vault/vault/schema"

// PrimaryOwnerId returns the admin canonically responsible for a
// dataset. Uploads made by an org or root admin belong to the admin they
// were assigned to; uploads made by an admin belong to the uploader.
//
// This is the only place the owner rule exists. The hierarchy resolver,
// the visibility engine, and the search priority ordering all call this
// function; deriving the owner anywhere else reintroduces a known class
// of bug.
func PrimaryOwnerId(d schema.Dataset) string {
	if schema.IsTopDownRole(d.UploaderRole) {
		if d.AssignedToId == nil {
			return ""
		}
		return *d.AssignedToId
	}
	return d.UploaderId
}

// SubjectAdminId returns the admin identity that access checks are
// evaluated against: the principal itself for admin tier roles, the
// supervising admin for auditors and field agents. The second return is
// false for an orphaned subordinate, which must fail closed.
func SubjectAdminId(u schema.User) (string, bool) {
	if schema.IsSubordinateRole(u.Role) {
		if u.SupervisorId == nil {
			return "", false
		}
		return *u.SupervisorId, true
	}
	return u.Id, true
}
