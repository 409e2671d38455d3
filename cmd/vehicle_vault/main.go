package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"vehicle_vault/vault/auth"
	"vehicle_vault/vault/schema"
	"vehicle_vault/vault/services"
	"vehicle_vault/vault/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	Dsn      string
	ShareDir string

	Keycloak *auth.KeycloakArgs

	AdminUsername string
	AdminEmail    string
	AdminPassword string

	RoleQuotaFile string

	AllowedOrigin string

	Port int
}

func env(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func requireEnv(key string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		log.Panicf("missing required environment variable %v", key)
	}
	return value
}

func loadConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment as is")
	}

	port, err := strconv.Atoi(env("VAULT_PORT", "8080"))
	if err != nil {
		log.Panicf("invalid VAULT_PORT: %v", err)
	}

	c := Config{
		Dsn:           requireEnv("VAULT_DB_DSN"),
		ShareDir:      requireEnv("VAULT_SHARE_DIR"),
		AdminUsername: env("VAULT_ADMIN_USERNAME", "admin"),
		AdminEmail:    requireEnv("VAULT_ADMIN_EMAIL"),
		AdminPassword: requireEnv("VAULT_ADMIN_PASSWORD"),
		RoleQuotaFile: env("VAULT_ROLE_QUOTA_FILE", ""),
		AllowedOrigin: env("VAULT_ALLOWED_ORIGIN", "*"),
		Port:          port,
	}

	if serverUrl, ok := os.LookupEnv("KEYCLOAK_SERVER_URL"); ok {
		c.Keycloak = &auth.KeycloakArgs{
			ServerUrl:     serverUrl,
			Realm:         requireEnv("KEYCLOAK_REALM"),
			ClientId:      requireEnv("KEYCLOAK_CLIENT_ID"),
			ClientSecret:  requireEnv("KEYCLOAK_CLIENT_SECRET"),
			AdminUsername: requireEnv("KEYCLOAK_ADMIN_USERNAME"),
			AdminPassword: requireEnv("KEYCLOAK_ADMIN_PASSWORD"),
		}
	}

	return c
}

func initLogging(logFile *os.File) {
	log.SetFlags(log.Lshortfile | log.Ltime | log.Ldate)
	log.SetOutput(io.MultiWriter(logFile, os.Stderr))
	slog.Info("logging initialized", "log_file", logFile.Name())
}

func initDb(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Panicf("error opening database connection: %v", err)
	}

	err = db.AutoMigrate(
		&schema.User{}, &schema.UserShareTarget{},
		&schema.Dataset{}, &schema.DatasetAssignee{}, &schema.DatasetShare{},
		&schema.IndexEntry{}, &schema.StorageLimit{}, &schema.RoleQuota{},
	)
	if err != nil {
		log.Panicf("error migrating db schema: %v", err)
	}

	return db
}

func loadRoleQuotas(path string) map[string]int64 {
	defaults := map[string]int64{
		schema.RoleRootAdmin: 1_000_000,
		schema.RoleOrgAdmin:  1_000_000,
		schema.RoleAdmin:     100_000,
	}
	if path == "" {
		return defaults
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Panicf("error reading role quota file: %v", err)
	}

	var quotas map[string]int64
	if err := yaml.Unmarshal(data, &quotas); err != nil {
		log.Panicf("error parsing role quota file: %v", err)
	}
	return quotas
}

func newRouter(api chi.Router, allowedOrigin string) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{allowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Mount("/api/v1", api)

	return r
}

func main() {
	c := loadConfig()

	logFile, err := os.OpenFile(filepath.Join(c.ShareDir, "logs/vehicle_vault.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Panicf("error opening log file: %v", err)
	}
	defer logFile.Close()

	initLogging(logFile)

	db := initDb(c.Dsn)

	var userAuth auth.IdentityProvider
	if c.Keycloak != nil {
		userAuth = auth.NewKeycloakIdentityProvider(*c.Keycloak, db)
	} else {
		userAuth = auth.NewBasicIdentityProvider(db)
	}

	vault := services.NewVehicleVault(db, storage.NewSharedDisk(c.ShareDir), userAuth, services.Options{})

	vault.InitRootAdmin(c.AdminUsername, c.AdminEmail, c.AdminPassword)

	if err := vault.SeedRoleQuotas(loadRoleQuotas(c.RoleQuotaFile)); err != nil {
		log.Panicf("error seeding role quotas: %v", err)
	}

	r := newRouter(vault.Routes(), c.AllowedOrigin)

	slog.Info("starting server", "port", c.Port)
	err = http.ListenAndServe(fmt.Sprintf(":%v", c.Port), r)
	if err != nil {
		log.Fatalf(err.Error())
	}
}
