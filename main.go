package main

import (
	"embed"
	"fmt"
	"os"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"go.uber.org/zap"

	"github.com/chazu/bobbin/pkg/config"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "bobbin:", err)
		os.Exit(1)
	}
	log, err := cfg.Logger(false)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bobbin:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	app := newApp(cfg, log)
	err = wails.Run(&options.App{
		Title:  "Bobbin",
		Width:  1280,
		Height: 800,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		OnStartup: app.startup,
		Bind: []interface{}{
			app,
		},
	})
	if err != nil {
		log.Error("wails", zap.Error(err))
	}
}

// loadConfig reads the file named by BOBBIN_CONFIG, if any, and applies the
// other BOBBIN_* overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv(config.EnvPrefix + "CONFIG"))
	if err != nil {
		return config.Config{}, err
	}
	return cfg.EnvOverlay(os.Environ())
}
