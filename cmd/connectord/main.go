package main

import (
	"context"
	"time"

	"surplus-backend/lib/configutil"
	configlibsql "surplus-backend/lib/configutil/libsql"
	"surplus-backend/lib/rules"
	"surplus-backend/lib/serviceutil"
	"surplus-backend/lib/telemetry"
	"surplus-backend/services/connectors"
	connectorsdb "surplus-backend/services/connectors/db"

	"github.com/go-chi/chi/v5"
)

type ScrapydConfig struct {
	BaseUrl string `json:"base_url"`
	Project string `json:"project"`
}

type ConnectorEntry struct {
	State                string   `json:"state"`
	CountyCode           string   `json:"county_code"`
	SpiderName           string   `json:"spider_name"`
	WatchUrls            []string `json:"watch_urls"`
	ScheduleIntervalSecs int      `json:"schedule_interval_secs"`
	ParsingMode          string   `json:"parsing_mode"`
}

type Config struct {
	Database         configlibsql.Struct `json:"database"`
	Scrapyd          ScrapydConfig       `json:"scrapyd"`
	Port             int                 `json:"port"`
	PollIntervalSecs int                 `json:"poll_interval_secs"`
	RulesPath        string              `json:"rules_path"`
	RetryAttempts    int                 `json:"retry_attempts"`
	Connectors       []ConnectorEntry    `json:"connectors"`
}

func main() {
	ctx := serviceutil.SignalContext()

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if config.Port == 0 {
		config.Port = 8445
	}
	if config.PollIntervalSecs == 0 {
		config.PollIntervalSecs = 300
	}

	db, err := config.Database.OpenDB(connectorsdb.Schema)
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}

	gate, err := rules.Load(config.RulesPath)
	if err != nil {
		serviceutil.Fatal("failed to load jurisdiction rules", err)
	}

	t, err := telemetry.SetupFromEnv(ctx, "connectors")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer t.Shutdown(context.Background())
	telemetry.InstrumentPerfStats(ctx)

	configs := make([]connectors.ConnectorConfig, 0, len(config.Connectors))
	for _, entry := range config.Connectors {
		configs = append(configs, connectors.ConnectorConfig{
			Key: connectors.ConnectorKey{
				State:      entry.State,
				CountyCode: entry.CountyCode,
			},
			SpiderName:       entry.SpiderName,
			WatchURLs:        entry.WatchUrls,
			ScheduleInterval: entry.ScheduleIntervalSecs,
			ParsingMode:      connectors.ParsingMode(entry.ParsingMode),
		})
	}

	service := connectors.NewService(
		connectors.NewRegistry(configs...),
		connectors.NewSqliteStateStore(db),
		connectors.NewSqliteRunStore(db),
		connectors.NewScrapydClient(config.Scrapyd.BaseUrl, config.Scrapyd.Project),
		gate,
		connectors.RetryOptions{MaxAttempts: config.RetryAttempts},
	)

	router := chi.NewRouter()
	service.RegisterHTTP(router)
	go serviceutil.StartHttpServer(config.Port, router)

	go service.StartDaemon(ctx, time.Duration(config.PollIntervalSecs)*time.Second)

	<-ctx.Done()
}
