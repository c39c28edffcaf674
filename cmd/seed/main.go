package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"assetplane/backend/internal/config"
	"assetplane/backend/internal/logging"
	"assetplane/backend/internal/repository"
	"assetplane/backend/pkg/models"
)

func main() {
	ctx := context.Background()
	logger := logging.NewLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pool.Close()

	store := repository.NewPostgresGraphStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	// 1. Ensure the tenant exists
	domain := "localhost"
	tenant, err := store.GetTenantByDomain(ctx, domain)
	if err != nil {
		logger.Info("Creating default tenant", "domain", domain)
		tenant = &models.Tenant{
			Name:   "Local Dev Tenant",
			Domain: domain,
		}
		if err := store.CreateTenant(ctx, tenant); err != nil {
			log.Fatalf("Failed to create tenant: %v", err)
		}
	} else {
		logger.Info("Found existing tenant", "id", tenant.ID)
	}

	// 2. Check for existing definitions to prevent duplicates
	existing, err := store.ListDefinitions(ctx, tenant.ID)
	if err != nil {
		log.Fatalf("Failed to list existing definitions: %v", err)
	}
	existingMap := make(map[string]bool)
	for _, d := range existing {
		existingMap[d.Name] = true
	}

	now := time.Now().UTC()

	// 3. Create seed workflow definitions
	definitions := []*models.WorkflowDefinition{
		{
			TenantID: tenant.ID,
			Name:     "Employee Onboarding",
			Version:  1,
			Playbook: "onboarding",
			Trigger:  "hire",
			Active:   true,
			Steps: []models.WorkflowStep{
				{ID: "create-accounts", Name: "Create accounts", Type: models.StepTypeAutomation, RiskLevel: models.RiskLevelLow,
					Config: map[string]any{"action": "create_accounts", "target_system": "idp"}},
				{ID: "assign-device", Name: "Assign device", Type: models.StepTypeCreateWorkItem, RiskLevel: models.RiskLevelLow,
					Config: map[string]any{"title": "Prepare and ship laptop", "assignee_id": "it-logistics"}},
				{ID: "notify-manager", Name: "Notify manager", Type: models.StepTypeNotification, RiskLevel: models.RiskLevelLow},
			},
			CreatedAt:   now,
			PublishedAt: &now,
		},
		{
			TenantID: tenant.ID,
			Name:     "Employee Offboarding",
			Version:  1,
			Playbook: "offboarding",
			Trigger:  "termination",
			Active:   true,
			Steps: []models.WorkflowStep{
				{ID: "manager-signoff", Name: "Manager sign-off", Type: models.StepTypeApproval, RiskLevel: models.RiskLevelLow,
					Config: map[string]any{"approval_type": "manager"}},
				{ID: "disable-accounts", Name: "Disable accounts", Type: models.StepTypeAutomation, RiskLevel: models.RiskLevelHigh,
					Config: map[string]any{"action": "disable_accounts", "target_system": "idp", "approval_type": "security"}},
				{ID: "reclaim-device", Name: "Reclaim device", Type: models.StepTypeCreateWorkItem, RiskLevel: models.RiskLevelLow,
					Config: map[string]any{"title": "Collect laptop and badge", "assignee_id": "it-logistics"}},
			},
			CreatedAt:   now,
			PublishedAt: &now,
		},
		{
			TenantID: tenant.ID,
			Name:     "Device Remediation",
			Version:  1,
			Playbook: "remediation",
			Trigger:  "security-alert",
			Active:   true,
			Steps: []models.WorkflowStep{
				{ID: "isolate-device", Name: "Isolate device", Type: models.StepTypeAutomation, RiskLevel: models.RiskLevelHigh,
					Config: map[string]any{"action": "isolate_device", "target_system": "mdm", "approval_type": "security"}},
				{ID: "open-ticket", Name: "Open investigation ticket", Type: models.StepTypeCreateWorkItem, RiskLevel: models.RiskLevelLow,
					Config: map[string]any{"title": "Investigate isolated device", "assignee_id": "security-oncall"}},
			},
			CreatedAt:   now,
			PublishedAt: &now,
		},
	}

	for _, def := range definitions {
		if existingMap[def.Name] {
			logger.Info("Skipping existing definition", "name", def.Name)
			continue
		}
		if err := store.CreateDefinition(ctx, def); err != nil {
			log.Printf("Failed to create definition %s: %v", def.Name, err)
		} else {
			logger.Info("Seeded definition", "name", def.Name, "id", def.ID)
		}
	}

	// 4. Sample entities for local exploration
	devices, err := store.ListEntitiesByType(ctx, tenant.ID, models.ObjectTypeDevice)
	if err != nil {
		log.Fatalf("Failed to list devices: %v", err)
	}
	if len(devices) == 0 {
		samples := []*models.Entity{
			{
				TenantID: tenant.ID,
				Type:     models.ObjectTypeDevice,
				Fields: map[string]any{
					"serial_number": "C02XK1AAJG5H",
					"asset_tag":     "LAP-0001",
					"hostname":      "mbp-ada",
					"model":         "MacBook Pro 14",
					"region":        "emea",
				},
				CreatedAt: now,
				UpdatedAt: now,
			},
			{
				TenantID: tenant.ID,
				Type:     models.ObjectTypePerson,
				Fields: map[string]any{
					"worker_id":  "W-1001",
					"email":      "ada@example.com",
					"name":       "Ada Lovelace",
					"department": "engineering",
					"region":     "emea",
				},
				CreatedAt: now,
				UpdatedAt: now,
			},
		}
		for _, entity := range samples {
			if err := store.CreateEntity(ctx, entity); err != nil {
				log.Printf("Failed to create sample entity: %v", err)
			} else {
				logger.Info("Seeded entity", "type", entity.Type, "id", entity.ID)
			}
		}
	} else {
		logger.Info("Entities already present, skipping samples")
	}

	logger.Info("Seeding complete!")
}
