package main

import (
	"embed"

	"github.com/sirupsen/logrus"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/linux"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
	"github.com/wailsapp/wails/v2/pkg/options/windows"
)

//go:embed frontend/*
var assets embed.FS

const appName = "Relief Route Viewer"

// The viewer page puts a map next to a fixed-width assignment panel; below
// this size the map gets too narrow to read routes.
const (
	windowWidth     = 1440
	windowHeight    = 900
	windowMinWidth  = 1024
	windowMinHeight = 640
)

func main() {
	app := NewApp()

	err := wails.Run(&options.App{
		Title:            appName,
		Width:            windowWidth,
		Height:           windowHeight,
		MinWidth:         windowMinWidth,
		MinHeight:        windowMinHeight,
		WindowStartState: options.Maximised,
		BackgroundColour: &options.RGBA{R: 245, G: 246, B: 248, A: 255},
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		OnStartup:  app.startup,
		OnShutdown: app.shutdown,
		Bind: []interface{}{
			app,
		},
		Mac: &mac.Options{
			TitleBar: mac.TitleBarDefault(),
			About: &mac.AboutInfo{
				Title:   appName,
				Message: "Shows ranked relief delivery plans on a map, one vehicle route per row.",
			},
		},
		Windows: &windows.Options{
			Theme: windows.SystemDefault,
		},
		Linux: &linux.Options{
			ProgramName: appName,
			// Leaflet redraws every polyline on each highlight change
			WebviewGpuPolicy: linux.WebviewGpuPolicyOnDemand,
		},
	})

	if err != nil {
		logrus.WithError(err).Fatal("Application exited with error")
	}
}
