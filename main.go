package main

import (
	"log"
	"os"
	"time"

	"skychat/internal/ai"
	"skychat/internal/api"
	"skychat/internal/auth"
	"skychat/internal/blob"
	"skychat/internal/config"
	"skychat/internal/kv"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("SKYCHAT_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	remote, err := kv.NewRedisStore(cfg)
	if err != nil {
		log.Fatalf("create redis store: %v", err)
	}
	defer remote.Close()

	// The local store only backs the theme fallback; run without it if it
	// cannot be opened.
	var local kv.Store
	sqlite, err := kv.NewSQLiteStore(cfg.BasicConfig.LocalStorePath)
	if err != nil {
		log.Printf("open local store: %v", err)
	} else {
		local = sqlite
		defer sqlite.Close()
	}

	files, err := blob.NewMinioStorage(cfg)
	if err != nil {
		log.Fatalf("create blob storage: %v", err)
	}

	gateway := ai.NewGateway(cfg.Gateway)
	aiService := ai.NewService(cfg, gateway)

	identity := auth.NewPlatformIdentity(cfg.Identity)
	authService := auth.NewService(identity, remote, 15*time.Minute)

	handler := api.NewHandler(authService, remote, local, aiService, files, api.Options{
		SnapshotEvery: cfg.BasicConfig.SnapshotEvery,
		HistoryLimit:  cfg.BasicConfig.HistoryLimit,
		DefaultModel:  cfg.BasicConfig.DefaultModel,
	})

	router := gin.Default()
	handler.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
