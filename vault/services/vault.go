package services

import (
	"log"
	"time"

	"vehicle_vault/vault/access"
	"vehicle_vault/vault/auth"
	"vehicle_vault/vault/cache"
	"vehicle_vault/vault/ingest"
	"vehicle_vault/vault/quota"
	"vehicle_vault/vault/schema"
	"vehicle_vault/vault/search"
	"vehicle_vault/vault/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

type VehicleVault struct {
	user    UserService
	dataset DatasetService
	search  SearchService
	quota   QuotaService

	userAuth auth.IdentityProvider
}

type Options struct {
	CacheTtl time.Duration
	Clock    cache.Clock
}

func NewVehicleVault(db *gorm.DB, store storage.Storage, userAuth auth.IdentityProvider, opts Options) VehicleVault {
	if opts.CacheTtl == 0 {
		opts.CacheTtl = 5 * time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = cache.SystemClock()
	}

	resolver := access.NewResolver(db, opts.CacheTtl, opts.Clock)
	blobs := storage.NewBlobResolver(store)
	enforcer := quota.NewEnforcer(db)
	ingestor := ingest.NewIngestor(db, blobs, enforcer, resolver)
	searcher := search.NewSearcher(db, resolver, blobs)

	return VehicleVault{
		user:     UserService{db: db, userAuth: userAuth},
		dataset:  DatasetService{db: db, userAuth: userAuth, resolver: resolver, ingestor: ingestor},
		search:   SearchService{db: db, userAuth: userAuth, searcher: searcher},
		quota:    QuotaService{db: db, userAuth: userAuth, enforcer: enforcer},
		userAuth: userAuth,
	}
}

func (v *VehicleVault) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Mount("/user", v.user.Routes())
	r.Mount("/dataset", v.dataset.Routes())
	r.Mount("/search", v.search.Routes())
	r.Mount("/quota", v.quota.Routes())

	return r
}

func (v *VehicleVault) InitRootAdmin(username, email, password string) {
	var existing schema.User
	result := v.user.db.Find(&existing, "role = ?", schema.RoleRootAdmin)
	if result.Error != nil {
		log.Panicf("error checking for existing root admin: %v", result.Error)
	}
	if result.RowsAffected != 0 {
		return
	}

	_, err := v.userAuth.CreateUser(auth.NewUserArgs{
		Username: username, Email: email, Password: password, Role: schema.RoleRootAdmin,
	})
	if err != nil {
		log.Panicf("error initializing root admin at startup: %v", err)
	}
}

// SeedRoleQuotas installs default per-role record ceilings for any role
// that does not already have one.
func (v *VehicleVault) SeedRoleQuotas(defaults map[string]int64) error {
	for role, ceiling := range defaults {
		if err := schema.CheckValidRole(role); err != nil {
			return err
		}

		existing, err := schema.GetRoleQuota(v.user.db, role)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}

		result := v.user.db.Create(&schema.RoleQuota{Role: role, RecordCeiling: ceiling})
		if result.Error != nil {
			return schema.NewDbError("seeding role quota", result.Error)
		}
	}
	return nil
}
