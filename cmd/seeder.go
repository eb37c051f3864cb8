package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/frahmantamala/acuhire/internal/auth"
	authPostgres "github.com/frahmantamala/acuhire/internal/auth/postgres"
	jobDatamodel "github.com/frahmantamala/acuhire/internal/core/datamodel/job"
	coreUser "github.com/frahmantamala/acuhire/internal/core/user"
	"github.com/frahmantamala/acuhire/internal/job"
	jobPostgres "github.com/frahmantamala/acuhire/internal/job/postgres"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const seedPassword = "password123"

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with a demo company, candidate and job posting for development.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		if cfg.App.IsProduction() {
			log.Fatal("refusing to seed a production database")
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()
		gdb, err := initGorm(db, false)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		ctx := context.Background()
		if clearData {
			// audit_logs is append-only and stays
			if err := gdb.Exec("DELETE FROM jobs").Error; err != nil {
				log.Fatalf("failed to clear jobs: %v", err)
			}
			if err := gdb.Exec("DELETE FROM users").Error; err != nil {
				log.Fatalf("failed to clear users: %v", err)
			}
			fmt.Println("Cleared jobs and users")
		}

		hasher := auth.NewBcryptHasher(cfg.Security.BCryptCost)
		users := authPostgres.NewCredentialRepository(gdb)

		company, err := seedUser(ctx, users, hasher, &coreUser.User{
			Email: "company@acuhire.dev",
			Name:  "Acme Recruiting",
			Role:  coreUser.RoleCompany,
			CompanyProfile: &coreUser.CompanyProfile{
				CompanyName: "Acme Recruiting",
				Website:     "https://acme.example",
			},
		})
		if err != nil {
			log.Fatalf("failed to seed company: %v", err)
		}

		if _, err := seedUser(ctx, users, hasher, &coreUser.User{
			Email:            "candidate@acuhire.dev",
			Name:             "Casey Candidate",
			Role:             coreUser.RoleCandidate,
			CandidateProfile: &coreUser.CandidateProfile{Phone: "+10000000000"},
		}); err != nil {
			log.Fatalf("failed to seed candidate: %v", err)
		}

		if err := seedJob(ctx, gdb, company.ID, "Backend Engineer"); err != nil {
			log.Fatalf("failed to seed job: %v", err)
		}
		fmt.Println("Seeding complete, demo password:", seedPassword)
	},
}

func seedUser(ctx context.Context, repo *authPostgres.CredentialRepository, hasher auth.Hasher, u *coreUser.User) (*coreUser.User, error) {
	existing, err := repo.GetByEmail(ctx, u.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		fmt.Println("user already exists:", u.Email)
		return existing, nil
	}

	hash, err := hasher.Hash(seedPassword)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u.ID = uuid.NewString()
	u.PasswordHash = hash
	u.CreatedAt = now
	u.UpdatedAt = now
	if err := repo.Create(ctx, u); err != nil {
		return nil, err
	}
	fmt.Println("Seeded user:", u.Email, "role:", u.Role)
	return u, nil
}

func seedJob(ctx context.Context, gdb *gorm.DB, companyID, title string) error {
	var count int64
	if err := gdb.WithContext(ctx).Model(&jobDatamodel.Job{}).
		Where("company_id = ? AND title = ?", companyID, title).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		fmt.Println("job already exists:", title)
		return nil
	}

	repo := jobPostgres.NewJobRepository(gdb)
	now := time.Now().UTC()
	for attempt := 0; attempt < 5; attempt++ {
		code, err := job.GeneratePasscode()
		if err != nil {
			return err
		}
		err = repo.Create(ctx, &jobDatamodel.Job{
			ID:          uuid.NewString(),
			CompanyID:   companyID,
			Title:       title,
			Slug:        slug.Make(title),
			Description: "Build and run the services behind our hiring platform.",
			Location:    "Remote",
			Passcode:    code,
			Status:      jobDatamodel.StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if errors.Is(err, job.ErrPasscodeCollision) {
			continue
		}
		if err != nil {
			return err
		}
		fmt.Println("Seeded job:", title, "passcode:", code)
		return nil
	}
	return errors.New("could not allocate a unique passcode")
}
