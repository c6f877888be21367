package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/classpulse/classpulse-server/controller"
	"github.com/classpulse/classpulse-server/database"
	"github.com/classpulse/classpulse-server/push"
	"github.com/classpulse/classpulse-server/repository"
	"github.com/classpulse/classpulse-server/utils"
	"github.com/go-co-op/gocron"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"k8s.io/klog/v2"
)

var Version = "dev"

func usage() {
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	// Server options
	flag.Usage = usage
	klog.InitFlags(nil)
	flag.Set("logtostderr", "true")
	flag.Set("stderrthreshold", "INFO")
	flag.Set("v", "3")
	version := flag.Bool("version", false, "Display the version")
	flag.Parse()

	if *version {
		fmt.Printf("classpulse server version: %s\n", Version)
		os.Exit(0)
	}

	// Setup database conn
	config := &database.Config{
		Host:     os.Getenv("DB_HOST"),
		Port:     os.Getenv("DB_PORT"),
		Password: os.Getenv("DB_PASS"),
		User:     os.Getenv("DB_USER"),
		SSLMode:  os.Getenv("DB_SSLMODE"),
		DBName:   os.Getenv("DB_NAME"),
	}
	klog.Info("Connecting to database...")
	db, err := database.NewConnection(config)
	if err != nil {
		panic(err)
	}

	klog.Info("Running database migrations...")
	database.Migrate(db)

	// Create repositories
	userRepo := &repository.UserRepo{
		DB: db,
	}
	settingsRepo := &repository.NotificationSettingsRepo{
		DB: db,
	}

	// Resolve FCM transport once; running without one is allowed, sends
	// will just report a configuration error
	transport := push.ResolveTransport()
	switch transport.(type) {
	case *push.ServiceAccountTransport:
		klog.Info("Push transport: FCM v1 (service account)")
	case *push.LegacyKeyTransport:
		klog.Info("Push transport: FCM legacy (server key)")
	default:
		klog.Warning("No FCM credentials found, push notifications disabled")
	}

	dispatcher, err := push.NewDispatcher(transport)
	if err != nil {
		klog.Errorf("Error initiating FCM dispatcher: %v", err)
		os.Exit(1)
	}
	engine := &push.Engine{
		Users:      userRepo,
		Prefs:      settingsRepo,
		Dispatcher: dispatcher,
	}

	// Setup controllers
	hc := controller.HttpController{UserRepo: userRepo, SettingsRepo: settingsRepo, Engine: engine}

	// Create app
	app := fiber.New()

	// Cors middleware
	app.Use(cors.New())
	// Pprof
	app.Use(pprof.New())

	// HTTP Routes
	app.Post("/api", hc.HandleAction)
	app.Post("/callback", hc.HandleEventCallback)
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	// 404 Handler
	app.Use(func(c *fiber.Ctx) error {
		return c.SendStatus(404)
	})

	// Keep the OAuth2 access token warm so batches never pay the issuance
	// round trip; the cache TTL already carries the expiry margin
	if sa, ok := transport.(*push.ServiceAccountTransport); ok {
		issuer := push.NewTokenIssuer(sa)
		s := gocron.NewScheduler(time.UTC)
		s.Every(45).Minutes().Do(func() {
			if _, err := issuer.Refresh(); err != nil {
				klog.Errorf("Error refreshing FCM access token in cron: %v", err)
			}
		})
		s.StartAsync()
	}

	app.Listen(":" + utils.GetEnv("PORT", "3000"))
}
