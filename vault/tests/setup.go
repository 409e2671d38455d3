package tests

import (
	"os"
	"path/filepath"
	"testing"

	"vehicle_vault/vault/auth"
	"vehicle_vault/vault/schema"
	"vehicle_vault/vault/services"
	"vehicle_vault/vault/storage"

	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	vault   services.VehicleVault
	api     chi.Router
	db      *gorm.DB
	storage storage.Storage
}

const (
	rootUsername = "root123"
	rootEmail    = "root123@mail.com"
	rootPassword = "root_password123"
)

var testRoleQuotas = map[string]int64{
	schema.RoleRootAdmin: 1_000_000,
	schema.RoleOrgAdmin:  1_000_000,
	schema.RoleAdmin:     1_000,
}

func setupTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}

	err = db.AutoMigrate(
		&schema.User{}, &schema.UserShareTarget{},
		&schema.Dataset{}, &schema.DatasetAssignee{}, &schema.DatasetShare{},
		&schema.IndexEntry{}, &schema.StorageLimit{}, &schema.RoleQuota{},
	)
	if err != nil {
		t.Fatal(err)
	}

	storagePath := filepath.Join(t.TempDir(), "storage")
	err = os.MkdirAll(storagePath, 0777)
	if err != nil {
		t.Fatalf("error creating storage directory: %v", err)
	}

	store := storage.NewSharedDisk(storagePath)
	userAuth := auth.NewBasicIdentityProvider(db)

	vault := services.NewVehicleVault(db, store, userAuth, services.Options{})

	vault.InitRootAdmin(rootUsername, rootEmail, rootPassword)

	if err := vault.SeedRoleQuotas(testRoleQuotas); err != nil {
		t.Fatal(err)
	}

	return &testEnv{vault: vault, api: vault.Routes(), db: db, storage: store}
}

func (t *testEnv) newClient() client {
	return client{api: t.api}
}

func (t *testEnv) rootClient() (client, error) {
	c := t.newClient()
	err := c.login(loginInfo{Email: rootEmail, Password: rootPassword})
	return c, err
}

// newAdmin signs up a fresh admin and logs it in.
func (t *testEnv) newAdmin(username string) (client, error) {
	c := t.newClient()
	login, err := c.signup(username, username+"@mail.com", username+"_password")
	if err != nil {
		return client{}, err
	}

	err = c.login(login)
	if err != nil {
		return client{}, err
	}

	return c, nil
}

// newSubordinate creates an auditor or field agent under the supervising
// admin and logs it in.
func (t *testEnv) newSubordinate(supervisor client, username, role string) (client, error) {
	_, err := supervisor.addUser(username, username+"@mail.com", username+"_password", role, nil)
	if err != nil {
		return client{}, err
	}

	c := t.newClient()
	err = c.login(loginInfo{Email: username + "@mail.com", Password: username + "_password"})
	if err != nil {
		return client{}, err
	}

	return c, nil
}
