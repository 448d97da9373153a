package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/eldertek/pg-pointage-sub001/config"
	"github.com/eldertek/pg-pointage-sub001/database"
	"github.com/eldertek/pg-pointage-sub001/database/seeders"
	"github.com/eldertek/pg-pointage-sub001/middleware"
	"github.com/eldertek/pg-pointage-sub001/routes"
	"github.com/eldertek/pg-pointage-sub001/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// errUsage marks argument errors so Execute can exit with status 2
// instead of the generic runtime failure status.
var errUsage = errors.New("usage error")

func main() {
	root := &cobra.Command{
		Use:           "pointage",
		Short:         "Time and attendance anomaly detection service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	root.AddCommand(newServeCommand())
	root.AddCommand(newSeedCommand())
	root.AddCommand(newCheckMinuteAnomaliesCommand())
	root.AddCommand(newCheckMissedCheckinsCommand())
	root.AddCommand(newTimesheetsRepairCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func setup() {
	setupLogging()
	config.LoadConfig()
	database.Connect()
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the background sweepers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	setup()

	scheduler := services.NewSweepScheduler()
	scheduler.Start()
	defer scheduler.Stop()

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(middleware.LoggerMiddleware())

	routes.SetupRoutes(app)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":  "Route not found",
			"path":   c.Path(),
			"method": c.Method(),
		})
	})

	addr := ":" + config.AppConfig.Port
	logrus.WithFields(logrus.Fields{
		"port":        config.AppConfig.Port,
		"environment": config.AppConfig.AppEnv,
		"timezone":    config.AppConfig.Timezone,
	}).Info("Server starting")

	return app.Listen(addr)
}

// scopeFlags are the site/employee filters shared by the batch commands.
type scopeFlags struct {
	SiteID     uint
	EmployeeID uint
}

func (f *scopeFlags) register(cmd *cobra.Command) {
	cmd.Flags().UintVar(&f.SiteID, "site", 0, "restrict to one site ID")
	cmd.Flags().UintVar(&f.EmployeeID, "employee", 0, "restrict to one employee ID")
}

func (f *scopeFlags) site() *uint {
	if f.SiteID == 0 {
		return nil
	}
	return &f.SiteID
}

func (f *scopeFlags) employee() *uint {
	if f.EmployeeID == 0 {
		return nil
	}
	return &f.EmployeeID
}

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo organizations, users, sites and schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			setup()
			seeders.SeedAll()
			return nil
		},
	}
}

func newCheckMinuteAnomaliesCommand() *cobra.Command {
	var scope scopeFlags
	var dryRun, verbose bool

	cmd := &cobra.Command{
		Use:   "check-minute-anomalies",
		Short: "Detect in-progress missing arrivals on fixed schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			setup()
			sweeper := services.NewMinuteSweeper()
			created, err := sweeper.Run(database.DB, services.MinuteSweepOptions{
				SiteID:     scope.site(),
				EmployeeID: scope.employee(),
				DryRun:     dryRun,
				Verbose:    verbose,
			})
			if err != nil {
				return err
			}
			fmt.Printf("%d anomalie(s) créée(s)\n", created)
			return nil
		},
	}
	scope.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without writing")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "log every assignment checked")
	return cmd
}

func newCheckMissedCheckinsCommand() *cobra.Command {
	var scope scopeFlags
	var dateStr string
	var dryRun, verbose bool

	cmd := &cobra.Command{
		Use:   "check-missed-checkins",
		Short: "Reconcile the anomaly ledger for one day",
		RunE: func(cmd *cobra.Command, args []string) error {
			setup()
			day := time.Now().In(config.AppConfig.Location)
			if dateStr != "" {
				parsed, err := time.ParseInLocation("2006-01-02", dateStr, config.AppConfig.Location)
				if err != nil {
					return fmt.Errorf("%w: invalid --date %q, expected YYYY-MM-DD", errUsage, dateStr)
				}
				day = parsed
			}
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}

			sweeper := services.NewDaySweeper()
			summary, err := sweeper.Run(database.DB, services.DaySweepOptions{
				StartDate:    day,
				EndDate:      day,
				SiteID:       scope.site(),
				EmployeeID:   scope.employee(),
				DryRun:       dryRun,
				IgnoreErrors: true,
			})
			if err != nil {
				return err
			}
			printSweepSummary(summary)
			return nil
		},
	}
	scope.register(cmd)
	cmd.Flags().StringVar(&dateStr, "date", "", "day to check (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without writing")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "debug logging")
	return cmd
}

func newTimesheetsRepairCommand() *cobra.Command {
	var scope scopeFlags
	var startStr, endStr string
	var dryRun, skipValidation, forceUpdate, ignoreErrors bool

	cmd := &cobra.Command{
		Use:   "timesheets-repair",
		Short: "Re-classify scans and rebuild the anomaly ledger over a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			if startStr == "" || endStr == "" {
				return fmt.Errorf("%w: --start-date and --end-date are required", errUsage)
			}
			start, err := time.ParseInLocation("2006-01-02", startStr, time.UTC)
			if err != nil {
				return fmt.Errorf("%w: invalid --start-date %q, expected YYYY-MM-DD", errUsage, startStr)
			}
			end, err := time.ParseInLocation("2006-01-02", endStr, time.UTC)
			if err != nil {
				return fmt.Errorf("%w: invalid --end-date %q, expected YYYY-MM-DD", errUsage, endStr)
			}
			if end.Before(start) {
				return fmt.Errorf("%w: --end-date is before --start-date", errUsage)
			}

			setup()
			sweeper := services.NewDaySweeper()
			summary, err := sweeper.Run(database.DB, services.DaySweepOptions{
				StartDate:      startInLocation(startStr),
				EndDate:        startInLocation(endStr),
				SiteID:         scope.site(),
				EmployeeID:     scope.employee(),
				DryRun:         dryRun,
				SkipValidation: skipValidation,
				ForceUpdate:    forceUpdate,
				IgnoreErrors:   ignoreErrors,
			})
			if err != nil {
				return err
			}
			printSweepSummary(summary)
			return nil
		},
	}
	scope.register(cmd)
	cmd.Flags().StringVar(&startStr, "start-date", "", "first day of the range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endStr, "end-date", "", "last day of the range (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without writing")
	cmd.Flags().BoolVar(&skipValidation, "skip-validation", false, "keep existing scan classifications")
	cmd.Flags().BoolVar(&forceUpdate, "force-update", false, "re-classify every scan")
	cmd.Flags().BoolVar(&ignoreErrors, "ignore-errors", false, "continue on per-tuple failures")
	return cmd
}

func startInLocation(value string) time.Time {
	t, _ := time.ParseInLocation("2006-01-02", value, config.AppConfig.Location)
	return t
}

func printSweepSummary(summary services.DaySweepSummary) {
	fmt.Printf("%d tuple(s) traités, %d créée(s), %d mise(s) à jour, %d supprimée(s), %d erreur(s)\n",
		summary.TuplesProcessed, summary.Created, summary.Updated, summary.Deleted, summary.Errors)
}

// setupLogging configures the logging system
func setupLogging() {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if os.Getenv("APP_ENV") == "development" {
		logrus.SetOutput(os.Stdout)
		return
	}
	if err := os.MkdirAll("logs", 0755); err != nil {
		log.Printf("Warning: Could not create logs directory: %v", err)
		return
	}
	file, err := os.OpenFile("logs/app.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err == nil {
		logrus.SetOutput(file)
	}
}

// customErrorHandler handles application errors
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	logrus.WithFields(logrus.Fields{
		"error":  err.Error(),
		"path":   c.Path(),
		"method": c.Method(),
		"ip":     c.IP(),
		"status": code,
	}).Error("Request error")

	return c.Status(code).JSON(fiber.Map{
		"error":  message,
		"code":   code,
		"path":   c.Path(),
		"method": c.Method(),
	})
}
