// Command auctiond runs the energy auction engine behind a small HTTP
// surface. It is the composition root only: every piece of domain logic
// lives in internal/auction.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/abdoElHodaky/energyauction/internal/api"
	"github.com/abdoElHodaky/energyauction/internal/bootstrap"
)

const (
	appName    = "auctiond"
	appVersion = "v1.0.0"
)

func main() {
	var (
		configPath = flag.String("config", "", "Directory containing config.yaml")
		version    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *version {
		fmt.Printf("%s %s\n", appName, appVersion)
		os.Exit(0)
	}

	app := fx.New(
		fx.Supply(bootstrap.ConfigPath(*configPath)),
		bootstrap.Module,
		api.Module,
	)
	app.Run()
}
