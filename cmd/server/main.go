package main

import (
	"github.com/rd-agent/backend/internal/server"
	"github.com/rd-agent/backend/internal/util"
	"github.com/rd-agent/backend/pkg/logger"
	"github.com/rd-agent/backend/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  debug,
		Format: util.GetEnvString("LOG_FORMAT", "text"),
		Prefix: "server",
	})
	logger.Init(consoleLogger)

	server.Init()
}
