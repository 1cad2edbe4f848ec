package main

import (
	"flag"

	"github.com/matheus3301/sightings/internal/daemon"
	"github.com/matheus3301/sightings/internal/profile"
	"go.uber.org/fx"
)

func main() {
	configFlag := flag.String("config", profile.ServerConfigPath(), "path to sightd.toml")
	socketFlag := flag.String("socket", "", "control socket path (overrides config)")
	flag.Parse()

	app := fx.New(
		daemon.Module(daemon.Params{ConfigPath: *configFlag, SocketPath: *socketFlag}),
	)

	app.Run()
}
