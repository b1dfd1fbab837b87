package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/Romulad/orgs-task-api/pkg/orgtask/admin"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/auth"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/database"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/departs"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/mailer"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/models"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/orgs"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/perms"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/roles"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/tags"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/tasks"
	"github.com/Romulad/orgs-task-api/pkg/orgtask/users"

	_ "github.com/Romulad/orgs-task-api/api/swagger"
)

// @title Orgs Task API
// @version 1.0
// @description Multi-tenant task management with organizations, departments, roles and per-organization permissions.

// @contact.name Orgs Task API
// @contact.url https://github.com/Romulad/orgs-task-api

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token. Format: "Bearer {token}"

func main() {
	// Get database path from environment or use default
	dbPath := os.Getenv("ORGTASK_DB_PATH")
	if dbPath == "" {
		dbPath = "orgtask.db"
	}

	// Connect to database
	if err := database.Connect(dbPath); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run auto-migrations
	if err := models.AutoMigrate(database.GetDB()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// Create default staff user if none exists
	if err := ensureStaffExists(); err != nil {
		log.Fatalf("Failed to ensure staff user exists: %v", err)
	}

	// Get base URL from environment or use default
	baseURL := os.Getenv("ORGTASK_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	mail := mailer.NewLogMailer()
	db := database.GetDB()

	// Set up Gin router
	r := gin.Default()

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// Swagger documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API routes
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"service": "orgtask",
			})
		})

		// Auth routes (public)
		authHandler := auth.NewHandler(db, baseURL, mail)
		authHandler.RegisterRoutes(api.Group("/auth"))

		authRequired := auth.AuthMiddleware(db)

		// User routes
		usersHandler := users.NewHandler(db, baseURL, mail)
		usersHandler.RegisterRoutes(api.Group("/users", authRequired))

		// Organization routes, departments nested under them
		orgsGroup := api.Group("/orgs", authRequired)
		orgsHandler := orgs.NewHandler(db, mail)
		orgsHandler.RegisterRoutes(orgsGroup)
		departsHandler := departs.NewHandler(db, mail)
		departsHandler.RegisterRoutes(orgsGroup)

		// Tag routes
		tagsHandler := tags.NewHandler(db)
		tagsHandler.RegisterRoutes(api.Group("/tags", authRequired))

		// Task routes
		tasksHandler := tasks.NewHandler(db, mail)
		tasksHandler.RegisterRoutes(api.Group("/tasks", authRequired))

		// Role routes
		rolesHandler := roles.NewHandler(db, mail)
		rolesHandler.RegisterRoutes(api.Group("/roles", authRequired))

		// Permission routes
		permsHandler := perms.NewHandler(db, mail)
		permsHandler.RegisterRoutes(api.Group("/perms", authRequired))

		// Admin routes (staff only)
		adminHandler := admin.NewHandler(db)
		adminGroup := api.Group("/admin", authRequired, auth.RequireStaff())
		adminHandler.RegisterRoutes(adminGroup)
	}

	// Get port from environment or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting orgtask server on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// ensureStaffExists creates a default staff user if no staff account exists
// in the database.
func ensureStaffExists() error {
	db := database.GetDB()

	var count int64
	if err := db.Model(&models.User{}).Where("is_staff = ?", true).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashedPassword, err := auth.HashPassword("Changeme.1")
	if err != nil {
		return err
	}

	staff := models.User{
		Email:        "admin@orgtask.local",
		FirstName:    "Admin",
		PasswordHash: hashedPassword,
		IsActive:     true,
		IsStaff:      true,
	}
	if err := db.Create(&staff).Error; err != nil {
		return err
	}

	log.Printf("Created default staff user: admin@orgtask.local (password: Changeme.1)")
	return nil
}
