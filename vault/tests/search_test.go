package tests

import (
	"testing"

	"vehicle_vault/vault/schema"
)

func TestSearchShortQuery(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.newAdmin("admin1")
	if err != nil {
		t.Fatal(err)
	}

	_, err = admin.uploadOwn("data.xlsx", vehicleRecords("MH12AB1234"))
	if err != nil {
		t.Fatal(err)
	}

	res, err := admin.search("M-h", "", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 0 {
		t.Fatalf("short query should return no rows, got %+v", res.Rows)
	}
	if res.Message == "" {
		t.Fatal("short query should return a guidance message")
	}
}

func TestSearchPlateNormalization(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.newAdmin("admin1")
	if err != nil {
		t.Fatal(err)
	}

	_, err = admin.uploadOwn("data.xlsx", vehicleRecords("MH12AB1234", "MH99XY1234", "KA12AB1234"))
	if err != nil {
		t.Fatal(err)
	}

	// A full plate query matches region-anchored with the last four
	// digits, regardless of case and punctuation in the query.
	res, err := admin.search("mh-12 ab.1234", "", 0, 10)
	if err != nil {
		t.Fatal(err)
	}

	found := map[string]bool{}
	for _, row := range res.Rows {
		found[row.RegistrationId] = true
	}
	if !found["MH12AB1234"] || !found["MH99XY1234"] {
		t.Fatalf("plate query should match both MH plates ending in 1234, got %+v", res.Rows)
	}
	if found["KA12AB1234"] {
		t.Fatalf("plate query should not match a different region, got %+v", res.Rows)
	}
}

func TestSearchCrossRegionPlate(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.newAdmin("admin1")
	if err != nil {
		t.Fatal(err)
	}

	_, err = admin.uploadOwn("data.xlsx", vehicleRecords("22BH1234AB", "22AB1234BH"))
	if err != nil {
		t.Fatal(err)
	}

	res, err := admin.search("22BH1234AB", "", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 1 || res.Rows[0].RegistrationId != "22BH1234AB" {
		t.Fatalf("cross-region plate query should match exactly one plate, got %+v", res.Rows)
	}
}

func TestSearchFieldHints(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.newAdmin("admin1")
	if err != nil {
		t.Fatal(err)
	}

	// vehicleRecords derives the chassis id as "CHS" + registration id.
	_, err = admin.uploadOwn("data.xlsx", vehicleRecords("TN22GG7777"))
	if err != nil {
		t.Fatal(err)
	}

	res, err := admin.search("CHSTN22", "chassis", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("chassis hint should match the chassis id, got %+v", res.Rows)
	}

	res, err = admin.search("CHSTN22", "registration", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 0 {
		t.Fatalf("registration hint should not match a chassis id, got %+v", res.Rows)
	}

	res, err = admin.search("TN22GG7777", "bogus", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 0 || res.Message == "" {
		t.Fatalf("invalid field hint should return an empty page with a message, got %+v", res)
	}
}

func TestSearchOwnDataFirst(t *testing.T) {
	env := setupTestEnv(t)

	root, err := env.rootClient()
	if err != nil {
		t.Fatal(err)
	}
	admin1, err := env.newAdmin("admin1")
	if err != nil {
		t.Fatal(err)
	}
	admin2, err := env.newAdmin("admin2")
	if err != nil {
		t.Fatal(err)
	}

	// The own partition sorts before other data even when its
	// registration ids sort later.
	_, err = admin1.uploadOwn("own.xlsx", vehicleRecords("RJ20ZZ9999"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = root.uploadAssigned("other.xlsx", admin2.userId, []string{admin1.userId}, vehicleRecords("RJ20AA1111"))
	if err != nil {
		t.Fatal(err)
	}

	res, err := admin1.search("RJ20", "", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %+v", res.Rows)
	}
	if !res.Rows[0].OwnData || res.Rows[0].RegistrationId != "RJ20ZZ9999" {
		t.Fatalf("own data should sort first, got %+v", res.Rows)
	}
	if res.Rows[1].OwnData || res.Rows[1].RegistrationId != "RJ20AA1111" {
		t.Fatalf("other data should sort after own data, got %+v", res.Rows)
	}
}

func TestSearchPaginationAcrossPartitions(t *testing.T) {
	env := setupTestEnv(t)

	root, err := env.rootClient()
	if err != nil {
		t.Fatal(err)
	}
	admin1, err := env.newAdmin("admin1")
	if err != nil {
		t.Fatal(err)
	}
	admin2, err := env.newAdmin("admin2")
	if err != nil {
		t.Fatal(err)
	}

	_, err = admin1.uploadOwn("own.xlsx", vehicleRecords("MH01AA0001", "MH01AA0002", "MH01AA0003"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = root.uploadAssigned("other.xlsx", admin2.userId, []string{admin1.userId}, vehicleRecords("MH01BB0001", "MH01BB0002", "MH01BB0003"))
	if err != nil {
		t.Fatal(err)
	}

	expected := [][]string{
		{"MH01AA0001", "MH01AA0002"},
		{"MH01AA0003", "MH01BB0001"},
		{"MH01BB0002", "MH01BB0003"},
	}

	for page, want := range expected {
		res, err := admin1.search("MH01", "", page, 2)
		if err != nil {
			t.Fatal(err)
		}
		if res.Total != 6 {
			t.Fatalf("page %d: expected total 6, got %d", page, res.Total)
		}
		if len(res.Rows) != len(want) {
			t.Fatalf("page %d: expected %d rows, got %+v", page, len(want), res.Rows)
		}
		for i, regId := range want {
			if res.Rows[i].RegistrationId != regId {
				t.Fatalf("page %d row %d: expected %v, got %v", page, i, regId, res.Rows[i].RegistrationId)
			}
		}
	}

	res, err := admin1.search("MH01", "", 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 0 {
		t.Fatalf("page past the end should be empty, got %+v", res.Rows)
	}
}

func TestSearchDuplicateIdsAcrossDatasets(t *testing.T) {
	env := setupTestEnv(t)

	root, err := env.rootClient()
	if err != nil {
		t.Fatal(err)
	}
	admin1, err := env.newAdmin("admin1")
	if err != nil {
		t.Fatal(err)
	}

	// The same vehicle can appear in multiple spreadsheets; every
	// occurrence is returned with its own provenance.
	ownId, err := admin1.uploadOwn("jan.xlsx", vehicleRecords("WB06KK5555"))
	if err != nil {
		t.Fatal(err)
	}
	assignedId, err := root.uploadAssigned("feb.xlsx", admin1.userId, nil, vehicleRecords("WB06KK5555"))
	if err != nil {
		t.Fatal(err)
	}

	res, err := admin1.search("WB06KK5555", "", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("expected one row per dataset occurrence, got %+v", res.Rows)
	}

	datasets := map[string]bool{}
	for _, row := range res.Rows {
		datasets[row.DatasetId] = true
	}
	if !datasets[ownId] || !datasets[assignedId] {
		t.Fatalf("expected rows from both datasets, got %+v", res.Rows)
	}
}

func TestSearchDuplicateIdsWithinDataset(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.newAdmin("admin1")
	if err != nil {
		t.Fatal(err)
	}

	// The same vehicle can appear twice in one spreadsheet; both rows
	// are indexed, with no uniqueness constraint collapsing them.
	datasetId, err := admin.uploadOwn("resold.xlsx", vehicleRecords("TS09LL8888", "TS09LL8888"))
	if err != nil {
		t.Fatal(err)
	}

	res, err := admin.search("TS09LL8888", "", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("expected both occurrences to be indexed, got %+v", res.Rows)
	}
	if res.Rows[0].EntryId == res.Rows[1].EntryId {
		t.Fatalf("duplicate rows should have distinct entry ids, got %+v", res.Rows)
	}

	rowNumbers := map[int64]bool{}
	for _, row := range res.Rows {
		if row.DatasetId != datasetId {
			t.Fatalf("unexpected dataset provenance: %+v", row)
		}
		detail, err := admin.detail(row.EntryId)
		if err != nil {
			t.Fatal(err)
		}
		rowNumbers[detail.RowNumber] = true
	}
	if !rowNumbers[0] || !rowNumbers[1] {
		t.Fatalf("duplicate entries should point at distinct rows, got %v", rowNumbers)
	}
}

func TestSearchRowProvenanceMasking(t *testing.T) {
	env := setupTestEnv(t)

	root, err := env.rootClient()
	if err != nil {
		t.Fatal(err)
	}
	admin1, err := env.newAdmin("admin1")
	if err != nil {
		t.Fatal(err)
	}
	admin2, err := env.newAdmin("admin2")
	if err != nil {
		t.Fatal(err)
	}

	_, err = root.uploadAssigned("regional.xlsx", admin1.userId, []string{admin2.userId}, vehicleRecords("HR26DQ0001"))
	if err != nil {
		t.Fatal(err)
	}

	res, err := admin2.search("HR26DQ0001", "", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("co-assigned admin should find the row, got %+v", res.Rows)
	}
	checkMasked(t, res.Rows[0].Filename, "regional.xlsx")
	if res.Rows[0].OwnData {
		t.Fatalf("co-assigned data is not own data: %+v", res.Rows[0])
	}
}

func TestSubordinateSearchUsesSupervisorAccess(t *testing.T) {
	env := setupTestEnv(t)

	admin1, err := env.newAdmin("admin1")
	if err != nil {
		t.Fatal(err)
	}
	auditor, err := env.newSubordinate(admin1, "auditor1", schema.RoleAuditor)
	if err != nil {
		t.Fatal(err)
	}

	_, err = admin1.uploadOwn("audit.xlsx", vehicleRecords("PB08JJ6666"))
	if err != nil {
		t.Fatal(err)
	}

	res, err := auditor.search("PB08JJ6666", "", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 1 || !res.Rows[0].OwnData {
		t.Fatalf("auditor should search through its supervisor's access, got %+v", res.Rows)
	}

	detail, err := auditor.detail(res.Rows[0].EntryId)
	if err != nil {
		t.Fatal(err)
	}
	if detail.Tier != "full" {
		t.Fatalf("supervisor chain should get the full tier, got %+v", detail)
	}
}
