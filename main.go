package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"paper-vault/config"
	"paper-vault/models"
	"paper-vault/services"
	"paper-vault/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	papersSubmittedCounter prometheus.Counter
	papersApprovedCounter  prometheus.Counter
	papersRejectedCounter  prometheus.Counter
	inconsistencyCounter   prometheus.Counter
	orphansRemovedCounter  prometheus.Counter
)

func init() {
	papersSubmittedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "papers_submitted_total",
		Help: "Total number of papers submitted for moderation.",
	})
	papersApprovedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "papers_approved_total",
		Help: "Total number of papers approved by an admin.",
	})
	papersRejectedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "papers_rejected_total",
		Help: "Total number of papers rejected and purged.",
	})
	inconsistencyCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storage_inconsistencies_total",
		Help: "Total number of rejects whose object delete failed.",
	})
	orphansRemovedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orphan_objects_removed_total",
		Help: "Total number of orphaned objects removed by the sweep.",
	})
	prometheus.MustRegister(
		papersSubmittedCounter,
		papersApprovedCounter,
		papersRejectedCounter,
		inconsistencyCounter,
		orphansRemovedCounter,
	)
}

const claimsKey = "sessionClaims"

// gatewayKeyMiddleware schützt /auth/signin: nur das externe
// OAuth-Gateway kennt den Shared Key und darf verifizierte Identitäten
// einliefern.
func gatewayKeyMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey == "" || apiKey != cfg.GatewayAPIKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

// sessionMiddleware hängt die Claims eines gültigen Bearer-Tokens an den
// Kontext und frischt sie gegen die Datenbank auf. Fehlt das Token oder
// ist es ungültig, läuft der Request anonym weiter; die Pflicht zur
// Anmeldung erzwingen requireAuth/requireAdmin.
func sessionMiddleware(sessions *services.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if strings.HasPrefix(header, "Bearer ") {
			claims, err := sessions.ParseToken(strings.TrimPrefix(header, "Bearer "))
			if err == nil {
				sessions.Refresh(c.Request.Context(), claims)
				c.Set(claimsKey, claims)
			}
		}
		c.Next()
	}
}

func requireAuth(c *gin.Context) {
	if claimsFrom(c) == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required. Please sign in."})
	}
}

func requireAdmin(c *gin.Context) {
	claims := claimsFrom(c)
	if claims == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required."})
		return
	}
	if claims.Role != models.RoleAdmin {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin privileges required."})
	}
}

func claimsFrom(c *gin.Context) *services.Claims {
	if v, ok := c.Get(claimsKey); ok {
		if claims, ok := v.(*services.Claims); ok {
			return claims
		}
	}
	return nil
}

// paperJSON ist die Wire-Form eines Papers. "department" spiegelt
// "specialization" während der Umbenennungs-Übergangsphase.
func paperJSON(p models.Paper) gin.H {
	return gin.H{
		"id":             p.ID,
		"title":          p.Title,
		"subject":        p.Subject,
		"semester":       p.Semester,
		"year":           p.Year,
		"specialization": p.Department,
		"department":     p.Department,
		"program":        p.Program,
		"url":            p.URL,
		"uploadedBy":     p.UploadedBy,
		"adminApproved":  p.AdminApproved,
		"createdAt":      p.CreatedAt,
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	logging.Info("Running database auto-migration...")
	if err := db.AutoMigrate(&models.User{}, &models.Paper{}); err != nil {
		logging.Fatal("Auto-migration failed", zap.Error(err))
	}

	objectStore, err := storage.New(cfg)
	if err != nil {
		logging.Fatal("S3 client creation failed", zap.Error(err))
	}

	paperRepo := services.NewGormPaperRepository(db)
	userRepo := services.NewGormUserRepository(db)

	sessions := services.NewSessionService(userRepo, []byte(cfg.JWTSecret), cfg.JWTTTL, logging)
	approval := services.NewApprovalService(paperRepo, objectStore, logging)
	approval.Inconsistencies = inconsistencyCounter
	catalog := services.NewCatalogService(paperRepo, logging)
	contributions := services.NewContributionService(paperRepo, userRepo, logging)
	sweep := services.NewSweepService(paperRepo, objectStore, logging)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(sessionMiddleware(sessions))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	setupAuthRoutes(router, cfg, sessions, logging)
	setupFileRoutes(router, cfg, objectStore, logging)
	setupPaperRoutes(router, catalog, approval, logging)
	setupContributionRoutes(router, contributions)

	if cfg.SweepEnabled {
		cronScheduler := cron.New()
		if _, err := cronScheduler.AddFunc(cfg.SweepSchedule, func() {
			logging.Info("Running scheduled orphan sweep...")
			removed, err := sweep.Run(context.Background())
			if err != nil {
				logging.Error("Orphan sweep failed", zap.Error(err))
			} else {
				orphansRemovedCounter.Add(float64(removed))
			}
		}); err != nil {
			logging.Fatal("Invalid sweep schedule", zap.String("schedule", cfg.SweepSchedule), zap.Error(err))
		}
		cronScheduler.Start()
	}

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupAuthRoutes(router *gin.Engine, cfg *config.Config, sessions *services.SessionService, log *zap.Logger) {
	rg := router.Group("/auth")

	// Das OAuth-Gateway liefert die verifizierte Identität nach dem
	// externen Handshake hier ein und bekommt das Session-Token zurück.
	rg.POST("/signin", gatewayKeyMiddleware(cfg), func(c *gin.Context) {
		var identity services.ProviderIdentity
		if err := c.ShouldBindJSON(&identity); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		user, err := sessions.ResolveSignIn(c.Request.Context(), identity)
		if err != nil {
			if errors.Is(err, services.ErrAuthRequired) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Email is required"})
				return
			}
			// Ohne auflösbaren Datensatz gibt es keine Session.
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Sign-in failed. Please try again later."})
			return
		}

		token, err := sessions.IssueToken(user)
		if err != nil {
			log.Error("Failed to issue session token", zap.String("email", user.Email), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Sign-in failed. Please try again later."})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"token":   token,
			"user": gin.H{
				"email":     user.Email,
				"name":      user.Name,
				"firstName": services.FirstName(user.Name, user.Email),
				"image":     user.Image,
				"role":      user.Role,
			},
		})
	})

	rg.GET("/me", requireAuth, func(c *gin.Context) {
		claims := claimsFrom(c)
		c.JSON(http.StatusOK, gin.H{
			"email":     claims.Email,
			"name":      claims.Name,
			"firstName": services.FirstName(claims.Name, claims.Email),
			"image":     claims.Image,
			"role":      claims.Role,
		})
	})
}

func setupFileRoutes(router *gin.Engine, cfg *config.Config, objects services.ObjectStore, log *zap.Logger) {
	rg := router.Group("/files")

	// Der Upload passiert vor dem Submit: der Client bekommt Key und
	// öffentlichen Link und reicht beides mit den Metadaten ein.
	rg.POST("/", requireAuth, func(c *gin.Context) {
		file, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file (form field 'file')"})
			return
		}
		if file.Size > cfg.MaxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return
		}

		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Could not open file"})
			return
		}
		defer src.Close()

		data, err := io.ReadAll(src)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read file"})
			return
		}

		key := services.ObjectKeyPrefix + uuid.NewString() + strings.ToLower(filepath.Ext(file.Filename))
		url, err := objects.Upload(c.Request.Context(), key, data, file.Header.Get("Content-Type"))
		if err != nil {
			log.Error("Object upload failed", zap.String("key", key), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed. Please try again later."})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"success":  true,
			"fileName": key,
			"url":      url,
		})
	})
}

func setupPaperRoutes(router *gin.Engine, catalog *services.CatalogService, approval *services.ApprovalService, log *zap.Logger) {
	rg := router.Group("/papers")

	// Öffentlicher Katalog bzw. Moderationsliste (unapproved=true, nur
	// Admins). Alle Filter sind optional und kombinierbar.
	rg.GET("/", func(c *gin.Context) {
		filter := services.PaperFilter{Approved: true}

		if c.Query("unapproved") == "true" {
			claims := claimsFrom(c)
			if claims == nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required."})
				return
			}
			if claims.Role != models.RoleAdmin {
				c.JSON(http.StatusForbidden, gin.H{"error": "Admin privileges required."})
				return
			}
			filter.Approved = false
		}

		if v := c.Query("semester"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Semester = &n
			}
		}
		if v := c.Query("year"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Year = &n
			}
		}
		filter.Subject = c.Query("subject")
		filter.Program = c.Query("program")
		// "specialization" gewinnt gegen den Alt-Namen "department".
		if v := c.Query("specialization"); v != "" {
			filter.Department = v
		} else {
			filter.Department = c.Query("department")
		}
		if v := c.Query("id"); v != "" {
			if n, err := strconv.ParseUint(v, 10, 64); err == nil {
				id := uint(n)
				filter.ID = &id
			}
		}

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "12"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		page := services.NormalizePage(limit, offset)

		result, err := catalog.Query(c.Request.Context(), filter, page)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error. Please try again later."})
			return
		}

		papers := make([]gin.H, 0, len(result.Papers))
		for _, p := range result.Papers {
			papers = append(papers, paperJSON(p))
		}
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"count":      result.Count,
			"total":      result.Total,
			"limit":      result.Limit,
			"offset":     result.Offset,
			"hasMore":    result.HasMore,
			"nextOffset": result.NextOffset,
			"prevOffset": result.PrevOffset,
			"papers":     papers,
		})
	})

	// Submit: legt ein Pending-Paper an. Uploader und Approval-Flag sind
	// nicht client-setzbar.
	rg.POST("/", requireAuth, func(c *gin.Context) {
		var body struct {
			Title          string `json:"title"`
			Subject        string `json:"subject"`
			Semester       int    `json:"semester"`
			Year           int    `json:"year"`
			Specialization string `json:"specialization"`
			Department     string `json:"department"`
			Program        string `json:"program"`
			URL            string `json:"url"`
			FileName       string `json:"fileName"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		specialization := body.Specialization
		if specialization == "" {
			specialization = body.Department
		}

		paper, err := approval.Submit(c.Request.Context(), claimsFrom(c), services.Submission{
			Title:          body.Title,
			Subject:        body.Subject,
			Semester:       body.Semester,
			Year:           body.Year,
			Specialization: specialization,
			Program:        body.Program,
			URL:            body.URL,
			FileName:       body.FileName,
		})
		if err != nil {
			if verr, ok := services.AsValidationError(err); ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
				return
			}
			if errors.Is(err, services.ErrAuthRequired) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required. Please sign in to upload papers."})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error. Please try again later."})
			return
		}

		papersSubmittedCounter.Inc()
		c.JSON(http.StatusCreated, gin.H{
			"success": true,
			"message": "Paper created successfully",
			"paper":   paperJSON(*paper),
		})
	})

	// Moderation: adminApproved=true gibt frei, false lehnt ab und
	// purged Objekt plus Datensatz.
	rg.PATCH("/", requireAdmin, func(c *gin.Context) {
		var body struct {
			PaperID       *uint `json:"paperId"`
			AdminApproved *bool `json:"adminApproved"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.PaperID == nil || body.AdminApproved == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: paperId and adminApproved (boolean)"})
			return
		}

		var (
			paper *models.Paper
			err   error
		)
		if *body.AdminApproved {
			paper, err = approval.Approve(c.Request.Context(), claimsFrom(c), *body.PaperID)
		} else {
			paper, err = approval.Reject(c.Request.Context(), claimsFrom(c), *body.PaperID)
		}
		if err != nil {
			switch {
			case errors.Is(err, services.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "Paper not found."})
			case errors.Is(err, services.ErrAuthRequired):
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required."})
			case errors.Is(err, services.ErrAdminRequired):
				c.JSON(http.StatusForbidden, gin.H{"error": "Admin privileges required."})
			default:
				log.Error("Moderation failed", zap.Uint("paper_id", *body.PaperID), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error. Please try again later."})
			}
			return
		}

		message := "Paper rejected successfully"
		if *body.AdminApproved {
			message = "Paper approved successfully"
			papersApprovedCounter.Inc()
		} else {
			papersRejectedCounter.Inc()
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": message,
			"paper":   paperJSON(*paper),
		})
	})
}

func setupContributionRoutes(router *gin.Engine, contributions *services.ContributionService) {
	rg := router.Group("/contributions")

	rg.GET("/", func(c *gin.Context) {
		ranked, err := contributions.Rank(c.Request.Context(), 50)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load contributions. Please try again later."})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "contributors": ranked})
	})
}
