package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"medavatar/pkg/api"
	"medavatar/pkg/avatar"
	"medavatar/pkg/chat"
	"medavatar/pkg/db"
	"medavatar/pkg/model"
	"medavatar/pkg/monitor"
	"medavatar/pkg/netprobe"
	"medavatar/pkg/store"
	"medavatar/pkg/version"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	token := flag.String("token", os.Getenv("AUTH_TOKEN"), "bootstrap auth token (optional)")
	storeType := flag.String("store", "memory", "store backend: memory|consul (requires build tag consul)")
	consulAddr := flag.String("consul-addr", "127.0.0.1:8500", "consul address (when store=consul)")
	archivePath := flag.String("archive", "/var/lib/medavatar/issues.db", "sqlite issue archive path (empty disables)")
	showVersion := flag.Bool("v", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Build)
		return
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	var st store.MonitorStore
	switch *storeType {
	case "consul":
		st = store.NewConsulStore(*consulAddr)
	case "memory":
		st = store.NewMemoryStore()
	default:
		logger.Fatal("unsupported store type", zap.String("store", *storeType))
	}

	cfg := monitor.DefaultConfig()
	cfg.ArchivePath = *archivePath

	deps := monitor.Deps{
		Logger: logger,
		Prober: netprobe.New(proberConfig(), logger),
		Store:  st,
	}

	gdb, err := db.Init()
	if err != nil {
		// the monitor still runs; the database probe reports unhealthy
		logger.Warn("database unavailable at startup", zap.Error(err))
	} else {
		deps.PingDB = db.PingFunc(gdb)
		deps.DBStats = db.StatsFunc(gdb)
	}

	if wsURL := os.Getenv("AVATAR_WS_URL"); wsURL != "" {
		mgr := avatar.NewManager(avatar.Config{
			URL:       wsURL,
			AuthToken: os.Getenv("AVATAR_WS_TOKEN"),
		}, logger)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := mgr.Connect(ctx); err != nil {
			logger.Warn("avatar session connect failed; monitor will retry via remediation", zap.Error(err))
		}
		cancel()
		defer mgr.Close()
		deps.Avatar = mgr
	}

	if chatBase := os.Getenv("CHAT_API_BASE"); chatBase != "" {
		deps.Advisor = chat.NewClient(chatBase, os.Getenv("CHAT_API_KEY"), getenv("CHAT_MODEL", "gpt-4o-mini"))
	}

	mon := monitor.New(cfg, deps)
	mon.Start()
	defer mon.Stop()

	go func() {
		for {
			select {
			case is := <-mon.Events():
				logger.Error("ALERT: critical issue",
					zap.String("type", string(is.Type)),
					zap.String("description", is.Description))
			case <-mon.Done():
				return
			}
		}
	}()

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, mon, st, *token)
	if gdb != nil {
		(&api.AuthHandler{DB: gdb}).RegisterRoutes(mux)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("monitor api listening", zap.String("addr", *addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

// proberConfig assembles tracked providers and the serving region from the
// environment, with product defaults.
func proberConfig() netprobe.Config {
	providers := []model.Provider{
		{Name: "avatar", Kind: model.ProviderAvatar, ProbeURL: getenv("AVATAR_PROBE_URL", "https://api.heygen.com/v1/ping")},
		{Name: "tts-primary", Kind: model.ProviderTTS, ProbeURL: getenv("TTS_PRIMARY_PROBE_URL", "https://api.elevenlabs.io/v1/models")},
		{Name: "tts-secondary", Kind: model.ProviderTTS, ProbeURL: getenv("TTS_SECONDARY_PROBE_URL", "https://texttospeech.googleapis.com/")},
		{Name: "chat", Kind: model.ProviderChat, ProbeURL: getenv("CHAT_PROBE_URL", "https://api.openai.com/v1/models")},
		{Name: "cdn", Kind: model.ProviderCDN, ProbeURL: getenv("CDN_PROBE_URL", "https://cdn.jsdelivr.net/")},
	}
	lat := getenvFloat("REGION_LAT", 50.11)
	lng := getenvFloat("REGION_LNG", 8.68)
	return netprobe.Config{
		Providers:    providers,
		BandwidthURL: getenv("BANDWIDTH_PROBE_URL", "https://cdn.jsdelivr.net/npm/jquery@3.7.1/dist/jquery.min.js"),
		Region: netprobe.Region{
			Name: getenv("REGION_NAME", "eu-central"),
			Lat:  lat,
			Lng:  lng,
		},
		DefaultLocation: model.GeoLocation{
			Lat: lat, Lng: lng,
			City: getenv("REGION_NAME", "eu-central"), Source: "default",
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
