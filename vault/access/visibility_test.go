package access

import (
	"testing"

	"vehicle_vault/vault/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func topDownDataset(assignedTo string, coAssignees ...string) schema.Dataset {
	d := schema.Dataset{
		Id:           "d-topdown",
		Filename:     "q1.xlsx",
		UploaderId:   "org-1",
		UploaderRole: schema.RoleOrgAdmin,
		AssignedToId: strPtr(assignedTo),
	}
	for _, userId := range coAssignees {
		d.Assignees = append(d.Assignees, schema.DatasetAssignee{DatasetId: d.Id, UserId: userId})
	}
	return d
}

func adminDataset(uploader string, shares ...string) schema.Dataset {
	d := schema.Dataset{
		Id:           "d-admin",
		Filename:     "own.xlsx",
		UploaderId:   uploader,
		UploaderRole: schema.RoleAdmin,
	}
	for _, userId := range shares {
		d.Shares = append(d.Shares, schema.DatasetShare{DatasetId: d.Id, UserId: userId})
	}
	return d
}

func TestDecideTier(t *testing.T) {
	rootAdmin := schema.User{Id: "root-1", Role: schema.RoleRootAdmin}
	orgAdmin := schema.User{Id: "org-1", Role: schema.RoleOrgAdmin}
	owner := schema.User{Id: "admin-1", Role: schema.RoleAdmin}
	coAssignee := schema.User{Id: "admin-2", Role: schema.RoleAdmin}
	outsider := schema.User{Id: "admin-3", Role: schema.RoleAdmin}
	ownerAgent := schema.User{Id: "agent-1", Role: schema.RoleFieldAgent, SupervisorId: strPtr("admin-1")}
	coAuditor := schema.User{Id: "auditor-2", Role: schema.RoleAuditor, SupervisorId: strPtr("admin-2")}
	orphan := schema.User{Id: "agent-x", Role: schema.RoleFieldAgent}

	topDown := topDownDataset("admin-1", "admin-2")

	tests := []struct {
		name string
		user schema.User
		want Tier
	}{
		{"root admin", rootAdmin, Full},
		{"org admin", orgAdmin, Full},
		{"assigned admin", owner, Full},
		{"assigned admin agent", ownerAgent, Full},
		{"co-assignee", coAssignee, Restricted},
		{"co-assignee auditor", coAuditor, Restricted},
		{"uninvolved admin", outsider, Denied},
		{"orphaned subordinate", orphan, Denied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecideTier(tt.user, topDown))
		})
	}
}

func TestDecideTierAdminUpload(t *testing.T) {
	uploaded := adminDataset("admin-1", "admin-2")

	uploader := schema.User{Id: "admin-1", Role: schema.RoleAdmin}
	shareTarget := schema.User{Id: "admin-2", Role: schema.RoleAdmin}
	outsider := schema.User{Id: "admin-3", Role: schema.RoleAdmin}
	targetAgent := schema.User{Id: "agent-2", Role: schema.RoleFieldAgent, SupervisorId: strPtr("admin-2")}

	assert.Equal(t, Full, DecideTier(uploader, uploaded))
	assert.Equal(t, Restricted, DecideTier(shareTarget, uploaded))
	assert.Equal(t, Restricted, DecideTier(targetAgent, uploaded))
	assert.Equal(t, Denied, DecideTier(outsider, uploaded))
}

func TestPrimaryOwnerId(t *testing.T) {
	assert.Equal(t, "admin-1", PrimaryOwnerId(topDownDataset("admin-1")))
	assert.Equal(t, "admin-1", PrimaryOwnerId(adminDataset("admin-1")))

	// A top-down dataset with no assignment has no owner.
	unassigned := topDownDataset("admin-1")
	unassigned.AssignedToId = nil
	assert.Equal(t, "", PrimaryOwnerId(unassigned))
}

func TestSubjectAdminId(t *testing.T) {
	admin := schema.User{Id: "admin-1", Role: schema.RoleAdmin}
	agent := schema.User{Id: "agent-1", Role: schema.RoleFieldAgent, SupervisorId: strPtr("admin-1")}
	orphan := schema.User{Id: "agent-x", Role: schema.RoleAuditor}

	subject, ok := SubjectAdminId(admin)
	require.True(t, ok)
	assert.Equal(t, "admin-1", subject)

	subject, ok = SubjectAdminId(agent)
	require.True(t, ok)
	assert.Equal(t, "admin-1", subject)

	_, ok = SubjectAdminId(orphan)
	assert.False(t, ok)
}

func TestMaskedFilename(t *testing.T) {
	d1 := adminDataset("admin-1")
	d2 := adminDataset("admin-1")
	d2.Id = "d-other"

	// Stable for a dataset, distinct across datasets, and unrelated to
	// the real filename.
	assert.Equal(t, MaskedFilename(d1), MaskedFilename(d1))
	assert.NotEqual(t, MaskedFilename(d1), MaskedFilename(d2))
	assert.NotContains(t, MaskedFilename(d1), "own")
	assert.Regexp(t, `^dataset-[0-9a-f]{12}\.xlsx$`, MaskedFilename(d1))
}

func TestFilenameFor(t *testing.T) {
	d := topDownDataset("admin-1", "admin-2")

	owner := schema.User{Id: "admin-1", Role: schema.RoleAdmin}
	coAssignee := schema.User{Id: "admin-2", Role: schema.RoleAdmin}
	orgAdmin := schema.User{Id: "org-1", Role: schema.RoleOrgAdmin}

	assert.Equal(t, "q1.xlsx", FilenameFor(owner, d))
	assert.Equal(t, "q1.xlsx", FilenameFor(orgAdmin, d))
	assert.Equal(t, MaskedFilename(d), FilenameFor(coAssignee, d))
}

func TestVisibleRecord(t *testing.T) {
	d := adminDataset("admin-1", "admin-2")
	rec := schema.VehicleRecord{
		RegistrationId:  "MH12AB1234",
		ChassisId:       "CHS123",
		EngineId:        "ENG123",
		CustomerName:    "customer",
		Make:            "maruti",
		Model:           "swift",
		SaleAmount:      450000,
		SaleDate:        "2025-01-15",
		CustomerPhone:   "9876543210",
		CustomerAddress: "12 mg road",
		DealerName:      "city motors",
	}

	full, tier := VisibleRecord(schema.User{Id: "admin-1", Role: schema.RoleAdmin}, d, rec)
	assert.Equal(t, Full, tier)
	assert.Equal(t, rec, full)

	restricted, tier := VisibleRecord(schema.User{Id: "admin-2", Role: schema.RoleAdmin}, d, rec)
	assert.Equal(t, Restricted, tier)
	assert.Equal(t, rec.RegistrationId, restricted.RegistrationId)
	assert.Equal(t, rec.ChassisId, restricted.ChassisId)
	assert.Equal(t, rec.EngineId, restricted.EngineId)
	assert.Equal(t, rec.CustomerName, restricted.CustomerName)
	assert.Equal(t, rec.Make, restricted.Make)
	assert.Empty(t, restricted.Model)
	assert.Empty(t, restricted.CustomerPhone)
	assert.Empty(t, restricted.CustomerAddress)
	assert.Empty(t, restricted.DealerName)
	assert.Zero(t, restricted.SaleAmount)

	denied, tier := VisibleRecord(schema.User{Id: "admin-3", Role: schema.RoleAdmin}, d, rec)
	assert.Equal(t, Denied, tier)
	assert.Equal(t, schema.VehicleRecord{}, denied)
}
