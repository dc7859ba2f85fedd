package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"github.com/eliabeart/gallerybackend/cache"
	"github.com/eliabeart/gallerybackend/config"
	"github.com/eliabeart/gallerybackend/database"
	"github.com/eliabeart/gallerybackend/handlers"
	"github.com/eliabeart/gallerybackend/media"
	"github.com/eliabeart/gallerybackend/repository"
	"github.com/eliabeart/gallerybackend/workers"
)

func main() {
	mode := flag.String("mode", "all", "run mode: all|api|worker")
	flag.Parse()

	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	db, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		log.Fatalf("FATAL: Failed to migrate database: %v", err)
	}

	storage, err := media.NewLocalStorage(cfg.ImagesBasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize media storage: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		// the cache degrades to direct store reads, so startup continues
		log.Printf("Warning: redis unreachable at %s: %v", cfg.RedisAddr, err)
	}
	defer rdb.Close()

	albumRepo := repository.NewAlbumRepository(db)
	imageRepo := repository.NewImageRepository(db)
	userRepo := repository.NewUserRepository(db)

	cacheStore := cache.NewStore(rdb, albumRepo, imageRepo, time.Duration(cfg.CacheTTLSeconds)*time.Second)

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	enqueuer := workers.NewEnqueuer(asynqClient, cfg.AsynqQueue)
	statusTracker := workers.NewStatusTracker(inspector, cfg.AsynqQueue)
	ingestProcessor := workers.NewIngestProcessor(imageRepo, storage, cacheStore)

	log.Printf("Serving images from: %s", cfg.ImagesBasePath)
	log.Printf("Using database: %s", cfg.DatabasePath)
	log.Printf("Cache TTL: %ds", cfg.CacheTTLSeconds)

	switch *mode {
	case "worker":
		if err := workers.RunIngestWorker(redisOpt, cfg.AsynqQueue, cfg.AsynqConcurrency, ingestProcessor); err != nil {
			log.Fatalf("FATAL: ingest worker stopped: %v", err)
		}
	case "api":
		runAPI(cfg, albumRepo, imageRepo, userRepo, cacheStore, enqueuer, statusTracker, storage)
	case "all":
		go func() {
			if err := workers.RunIngestWorker(redisOpt, cfg.AsynqQueue, cfg.AsynqConcurrency, ingestProcessor); err != nil {
				log.Fatalf("FATAL: ingest worker stopped: %v", err)
			}
		}()
		runAPI(cfg, albumRepo, imageRepo, userRepo, cacheStore, enqueuer, statusTracker, storage)
	default:
		log.Fatalf("FATAL: unknown run mode %q", *mode)
	}
}

func runAPI(
	cfg config.Config,
	albumRepo *repository.AlbumRepository,
	imageRepo *repository.ImageRepository,
	userRepo *repository.UserRepository,
	cacheStore *cache.Store,
	enqueuer *workers.Enqueuer,
	statusTracker *workers.StatusTracker,
	storage media.Store,
) {
	r := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsHandler.Handler)

	albumHandler := &handlers.AlbumHandler{
		AlbumRepo: albumRepo,
		ImageRepo: imageRepo,
		Cache:     cacheStore,
		Enqueuer:  enqueuer,
		Status:    statusTracker,
		Storage:   storage,
	}
	imageHandler := &handlers.ImageHandler{
		AlbumRepo: albumRepo,
		ImageRepo: imageRepo,
		Cache:     cacheStore,
		Enqueuer:  enqueuer,
		Storage:   storage,
	}
	authHandler := handlers.NewAuthHandler(userRepo, []byte(cfg.JWTSecret))
	userHandler := handlers.NewUserHandler(userRepo)

	requireAuth := handlers.AuthMiddleware(userRepo, []byte(cfg.JWTSecret))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)

		r.Route("/albums", func(r chi.Router) {
			r.Get("/", albumHandler.ListPublicAlbums)
			r.With(requireAuth).Post("/", albumHandler.CreateAlbum)
			r.Route("/{album_id}", func(r chi.Router) {
				r.Get("/", albumHandler.GetAlbum)
				r.With(requireAuth).Delete("/", albumHandler.DeleteAlbum)
				r.With(requireAuth).Patch("/cover/{image_name}", albumHandler.SetCoverImage)
				r.With(requireAuth).Post("/resync", albumHandler.ResyncAlbum)
				r.With(requireAuth).Post("/images", imageHandler.UploadImage)
			})
		})

		r.Route("/images", func(r chi.Router) {
			r.Get("/random", imageHandler.GetRandomImage)
			r.Get("/{album_id}", imageHandler.ListAlbumImages)
			r.Get("/{album_id}/{image_name}", imageHandler.GetImageFile)
			r.With(requireAuth).Delete("/{album_id}/{image_name}", imageHandler.DeleteImage)
		})

		r.With(requireAuth).Post("/users", userHandler.CreateUser)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	serverAddr := ":" + port
	fmt.Printf("Server starting on http://localhost:%s\n", port)
	log.Printf("Server listening on %s", serverAddr)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.Fatal(server.ListenAndServe())
}
