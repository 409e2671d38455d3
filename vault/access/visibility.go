package access

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"vehicle_vault/vault/schema"
)

type Tier int

const (
	Denied     Tier = 0
	Restricted Tier = 1
	Full       Tier = 2
)

func (t Tier) String() string {
	switch t {
	case Restricted:
		return "restricted"
	case Full:
		return "full"
	default:
		return "denied"
	}
}

// DecideTier returns the field visibility tier for a principal on a
// dataset. It is a pure function of its arguments so it can be tested
// without a database.
//
// Root and org admins always get the full tier. The primary owner chain
// (the owning admin and its subordinates) gets the full tier. For
// top-down uploads, co-assigned admins and their subordinates get the
// restricted tier. For admin uploads, share-target admins and their
// subordinates get the restricted tier and everyone else is denied
// outright.
func DecideTier(u schema.User, d schema.Dataset) Tier {
	if u.Role == schema.RoleRootAdmin || u.Role == schema.RoleOrgAdmin {
		return Full
	}

	subject, ok := SubjectAdminId(u)
	if !ok {
		return Denied
	}

	if owner := PrimaryOwnerId(d); owner != "" && owner == subject {
		return Full
	}

	if schema.IsTopDownRole(d.UploaderRole) {
		for _, assignee := range d.Assignees {
			if assignee.UserId == subject {
				return Restricted
			}
		}
		return Denied
	}

	for _, share := range d.Shares {
		if share.UserId == subject {
			return Restricted
		}
	}
	return Denied
}

// FilenameFor returns the dataset's real filename for root and org
// admins and for the primary owner chain, and a masked name for
// everyone else.
func FilenameFor(u schema.User, d schema.Dataset) string {
	if u.Role == schema.RoleRootAdmin || u.Role == schema.RoleOrgAdmin {
		return d.Filename
	}

	subject, ok := SubjectAdminId(u)
	if ok {
		if owner := PrimaryOwnerId(d); owner != "" && owner == subject {
			return d.Filename
		}
	}

	return MaskedFilename(d)
}

// MaskedFilename derives a display name from the dataset id alone. The
// result is stable across requests, distinct per dataset, and carries
// no information about the real filename.
func MaskedFilename(d schema.Dataset) string {
	sum := sha256.Sum256([]byte("dataset-filename-mask:" + d.Id))
	return fmt.Sprintf("dataset-%v.xlsx", hex.EncodeToString(sum[:])[:12])
}

// VisibleRecord applies field level visibility to one full record. The
// returned tier is Denied when the principal must not see the record at
// all; callers filter denied rows out of lists and reject denied detail
// requests.
func VisibleRecord(u schema.User, d schema.Dataset, rec schema.VehicleRecord) (schema.VehicleRecord, Tier) {
	tier := DecideTier(u, d)
	switch tier {
	case Full:
		return rec, Full
	case Restricted:
		return restrictedView(rec), Restricted
	default:
		return schema.VehicleRecord{}, Denied
	}
}

// restrictedView keeps only the identification fields.
func restrictedView(rec schema.VehicleRecord) schema.VehicleRecord {
	return schema.VehicleRecord{
		RegistrationId: rec.RegistrationId,
		ChassisId:      rec.ChassisId,
		EngineId:       rec.EngineId,
		CustomerName:   rec.CustomerName,
		Make:           rec.Make,
	}
}
