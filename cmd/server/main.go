package main

import (
	"cone-tracker-service/internal/adapters/repositories"
	"cone-tracker-service/internal/api"
	"cone-tracker-service/internal/config"
	"cone-tracker-service/internal/platform/obs"
	"io"
	"log"
	"net/http"
	"time"
)

// main is the application composition root.
// It wires the flat-file stores behind ports and starts the HTTP server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	var logFile io.Closer
	if cfg.LogDir != "" {
		logFile, err = obs.SetupRotatingLogOutput(cfg.LogDir, "cone-tracker-")
	} else {
		logFile, err = obs.SetupLogOutput(cfg.LogFile)
	}
	if err != nil {
		log.Fatal(err)
	}
	defer logFile.Close()

	if cfg.TestSwitch {
		log.Printf("mode=test cone_data_dir=%s", cfg.ConeDataDir())
	} else {
		log.Printf("mode=prod cone_data_dir=%s", cfg.ConeDataDir())
	}
	if !cfg.MailingListCooldownStrictMinutes {
		log.Printf(
			"warning: mailing list cooldown subtracts %v raw minutes from a seconds clock (effective window %vs); set MAILING_LIST_COOLDOWN_STRICT_MINUTES=true for minutes",
			cfg.MailingListTimeLimitMinutes, cfg.MailingListTimeLimitMinutes,
		)
	}

	cones := repositories.NewFileConeRepository(repositories.ConeStoreOptions{
		DataDir:   cfg.ConeDataDir(),
		Delimiter: cfg.ConeDataDelimiter,
		Cooldown:  cfg.UpdateCooldown(),
		Serialize: cfg.SerializeWrites,
	})
	mailing := repositories.NewCSVMailingListRepository(repositories.MailingListOptions{
		Path:            cfg.MailingListLoc,
		CooldownMinutes: cfg.MailingListTimeLimitMinutes,
		StrictMinutes:   cfg.MailingListCooldownStrictMinutes,
		Serialize:       cfg.SerializeWrites,
	})

	router := api.NewRouter(cones, mailing, api.RouterOptions{
		FinishTime: cfg.FinishTime,
		StaticDir:  cfg.StaticDir,
	})

	log.Printf("Server listening addr=:%s", cfg.Port)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	log.Fatal(srv.ListenAndServe())
}
