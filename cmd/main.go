package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fleetloop/lastmile-dispatch/internal/database"
	"github.com/fleetloop/lastmile-dispatch/internal/simulation"
	"github.com/fleetloop/lastmile-dispatch/pkg/engine"
)

func main() {
	var (
		pattern  = flag.String("pattern", "steady", "Demand pattern: steady, lunch_rush, surge_wave")
		riders   = flag.Int("riders", 20, "Fleet size")
		orders   = flag.Int("orders", 15, "Base orders per cycle")
		cycles   = flag.Int("cycles", 10, "Number of assignment cycles")
		seed     = flag.Int64("seed", 0, "Random seed (0 = time-based)")
		dbPath   = flag.String("db", "", "Optional SQLite path for cycle history")
		realtime = flag.Bool("realtime", false, "Sleep the cycle interval between cycles")
	)
	flag.Parse()

	printBanner()

	scenario := simulation.DefaultScenario()
	scenario.Pattern = simulation.DemandPattern(*pattern)
	scenario.RiderCount = *riders
	scenario.OrdersPerCycle = *orders
	scenario.Cycles = *cycles
	scenario.Name = fmt.Sprintf("%s-%dr-%do", *pattern, *riders, *orders)

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	cfg := engine.DefaultConfig()
	eng := engine.New(cfg, engine.WithRand(rng))

	opts := simulation.RunnerOptions{Realtime: *realtime}
	if *dbPath != "" {
		db, err := database.NewDatabase(*dbPath)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer db.Close()
		opts.Repo = database.NewRepository(db)
	}

	runner := simulation.NewRunner(scenario, eng, rng, opts)

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, stopping run...", sig)
		cancel()
	}()

	summary, err := runner.Run(ctx)
	if err != nil {
		log.Fatalf("Simulation run failed: %v", err)
	}

	log.Printf("\nRun complete")
	log.Printf("  Cycles:            %d", summary.Cycles)
	log.Printf("  Orders generated:  %d", summary.TotalOrders)
	log.Printf("  Orders assigned:   %d", summary.TotalAssigned)
	log.Printf("  Left unassigned:   %d", summary.TotalUnassigned)
	log.Printf("  Reassigned:        %d", summary.ReassignedOrders)
	log.Printf("  Peak surge level:  %s", summary.PeakSurgeLevel)
	log.Printf("  Avg decision cost: %.3f", summary.AvgCycleCost)
	log.Printf("  Total SLA slack:   %.0f min", summary.TotalSlackMin)
}

func printBanner() {
	fmt.Println("========================================")
	fmt.Println("  FleetLoop Last-Mile Dispatch Engine")
	fmt.Println("  Assignment Cycle Simulator")
	fmt.Println("========================================")
}
