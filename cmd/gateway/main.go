package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	api "github.com/courseloop/courseloop-lms/internal/api/http"
	auth "github.com/courseloop/courseloop-lms/internal/auth/middleware"
	"github.com/courseloop/courseloop-lms/internal/catalog"
	"github.com/courseloop/courseloop-lms/internal/config"
	"github.com/courseloop/courseloop-lms/internal/db"
	"github.com/courseloop/courseloop-lms/internal/events"
	"github.com/courseloop/courseloop-lms/internal/pathway"
	"github.com/courseloop/courseloop-lms/internal/progress"
	"github.com/courseloop/courseloop-lms/internal/rbac"
	"github.com/courseloop/courseloop-lms/internal/storage"
	"github.com/courseloop/courseloop-lms/internal/tenants"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	if cfg.AdminPassHash != "" {
		if err := seedAdmin(ctx, dbh, cfg); err != nil {
			log.Fatalf("seed admin: %v", err)
		}
	}

	cat := catalog.NewSQLStore(dbh)
	prog := progress.NewSQLStore(dbh)
	paths := pathway.NewSQLStore(dbh)
	eventLog := events.NewRepo(dbh, cfg.DefaultTenant)
	pathSvc := pathway.NewService(cat, prog, paths, eventLog)

	authSvc := auth.NewAuthService(cfg.AuthSecret)

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	resolver := tenants.NewResolver(tenants.Options{
		BaseDomain:    cfg.TenantDomain,
		HostIsTenant:  cfg.TenantDomain != "",
		HeaderKey:     cfg.TenantHeader,
		DefaultTenant: cfg.DefaultTenant,
	})

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(tenants.Middleware(resolver))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", cfg.TenantHeader},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, dbh, cfg.DefaultTenant))
	}

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// Content authoring (mentor/admin)
		pr.With(rbac.Require("course:create")).
			Post("/courses", api.CreateCourseHandler(cat))
		pr.With(rbac.Require("content:manage")).
			Post("/courses/{courseID}/modules", api.CreateModuleHandler(cat))
		pr.With(rbac.Require("content:manage")).
			Post("/modules/{moduleID}/lessons", api.CreateLessonHandler(cat))
		pr.With(rbac.Require("content:manage")).
			Post("/assignments", api.CreateAssignmentHandler(cat))

		pr.With(rbac.Require("course:view")).
			Get("/courses", api.ListCoursesHandler(cat))
		pr.With(rbac.Require("content:manage")).
			Get("/courses/{courseID}", api.GetCourseHandler(cat))

		// Student flow
		pr.With(rbac.Require("course:view")).
			Get("/courses/{courseID}/outline", api.CourseOutlineHandler(cat, prog))
		pr.With(rbac.Require("lesson:watch")).
			Post("/lessons/{lessonID}/watch", api.WatchLessonHandler(cat, prog, eventLog))
		pr.With(rbac.RequireAny("submission:view-own", "submission:view-all")).
			Get("/assignments/{assignmentID}", api.GetAssignmentHandler(cat, prog))
		pr.With(rbac.Require("submission:create")).
			Post("/assignments/{assignmentID}/submissions", api.CreateSubmissionHandler(cat, prog, bs, eventLog))
		pr.With(rbac.RequireAny("submission:view-own", "submission:view-all")).
			Get("/submissions/{submissionID}/file", api.SubmissionFileHandler(prog, bs))
		pr.With(rbac.Require("course:view")).
			Get("/enrollments/mine", api.MyEnrollmentsHandler(prog))

		// Mentor review queue
		pr.With(rbac.Require("submission:view-all")).
			Get("/submissions", api.ListPendingSubmissionsHandler(prog))
		pr.With(rbac.Require("submission:review")).
			Post("/submissions/{submissionID}/review", api.ReviewSubmissionHandler(prog, eventLog))

		// Pathways
		pr.With(rbac.Require("content:manage")).
			Post("/pathways", api.CreatePathwayHandler(paths))
		pr.With(rbac.Require("pathway:view")).
			Get("/pathways/{pathwayID}", api.GetPathwayHandler(pathSvc))
		pr.With(rbac.RequireAny("pathway:advance", "enrollment:manage")).
			Post("/pathways/{pathwayID}/start", api.StartPathwayHandler(pathSvc))
		pr.With(rbac.Require("pathway:advance")).
			Post("/pathways/{pathwayID}/advance", api.AdvancePathwayHandler(pathSvc))
		pr.With(rbac.Require("pathway:choose")).
			Post("/pathways/{pathwayID}/choice", api.MakeChoiceHandler(pathSvc))

		// Enrollment admin
		pr.With(rbac.Require("enrollment:manage")).
			Post("/enrollments", api.CreateEnrollmentHandler(prog))
		pr.With(rbac.Require("enrollment:manage")).
			Patch("/enrollments/{enrollmentID}/access", api.UpdateEnrollmentAccessHandler(prog))
		pr.With(rbac.Require("enrollment:manage")).
			Post("/enrollments/bulk", api.BulkEnrollmentsHandler(prog))

		// Users (admin)
		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(dbh))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.With(rbac.Require("user:change_password")).
			Post("/users/change-password", api.ChangePasswordHandler(dbh))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}

// seedAdmin upserts the bootstrap admin from ADMIN_USER / ADMIN_PASS_HASH so a
// fresh deployment has a login before any bulk user import.
func seedAdmin(ctx context.Context, dbh *sql.DB, cfg config.Config) error {
	_, err := dbh.ExecContext(ctx,
		`INSERT INTO users (id, tenant_id, username, password_hash, role, created_at)
		 VALUES ($1,$2,$3,$4,'admin',$5)
		 ON CONFLICT (id) DO UPDATE SET password_hash=EXCLUDED.password_hash`,
		cfg.AdminUser, cfg.DefaultTenant, cfg.AdminUser, cfg.AdminPassHash, time.Now().Unix())
	return err
}
