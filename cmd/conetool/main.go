package main

import (
	"context"
	"cone-tracker-service/internal/adapters/repositories"
	"cone-tracker-service/internal/config"
	"cone-tracker-service/internal/platform/db"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"
)

const usage = `usage: conetool <command> [flags]

commands:
  seed     write synthetic marker histories into the test data dir
  export   copy marker histories and the mailing list into PostgreSQL
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	switch os.Args[1] {
	case "seed":
		err = runSeed(cfg, os.Args[2:])
	case "export":
		err = runExport(cfg, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func runSeed(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	count := fs.Int("n", 100, "number of markers")
	dir := fs.String("dir", cfg.TestConeDataDir, "output directory")
	seed := fs.Int64("seed", time.Now().UnixNano(), "random seed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log.Printf("Seeding %d cones into %s...", *count, *dir)
	err := repositories.SeedCones(repositories.SeedOptions{
		DataDir:   *dir,
		Delimiter: cfg.ConeDataDelimiter,
		Count:     *count,
		Rand:      rand.New(rand.NewSource(*seed)),
	})
	if err != nil {
		return err
	}
	log.Println("Seeding complete.")
	return nil
}

func runExport(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	timeout := fs.Duration("timeout", 2*time.Minute, "overall export timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return fmt.Errorf("export: DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Println("Initializing export schema...")
	if err := repositories.InitSchema(ctx, conn); err != nil {
		return err
	}

	cones := repositories.NewFileConeRepository(repositories.ConeStoreOptions{
		DataDir:   cfg.ConeDataDir(),
		Delimiter: cfg.ConeDataDelimiter,
		Cooldown:  cfg.UpdateCooldown(),
		Serialize: cfg.SerializeWrites,
	})
	mailing := repositories.NewCSVMailingListRepository(repositories.MailingListOptions{
		Path:      cfg.MailingListLoc,
		Serialize: cfg.SerializeWrites,
	})

	n, err := repositories.ExportCones(ctx, conn, cones)
	if err != nil {
		return err
	}
	log.Printf("Exported cone records rows=%d", n)

	m, err := repositories.ExportMailingList(ctx, conn, mailing)
	if err != nil {
		return err
	}
	log.Printf("Exported mailing list rows=%d", m)

	return nil
}
