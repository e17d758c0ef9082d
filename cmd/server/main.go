package main

import (
	"github.com/OFFIS-RIT/kgstore/internal/server"
	"github.com/OFFIS-RIT/kgstore/internal/util"
	"github.com/OFFIS-RIT/kgstore/pkg/logger"
	"github.com/OFFIS-RIT/kgstore/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: util.GetEnvBool("DEBUG", false),
		Level: util.GetEnv("LOG_LEVEL"),
	})
	logger.Init(consoleLogger)

	server.Init()
}
