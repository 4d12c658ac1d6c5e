package main

import (
	"github.com/mkarpenko/pairchat/internal/config"
	"github.com/mkarpenko/pairchat/internal/logging"
	"github.com/mkarpenko/pairchat/internal/server"
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.Env)

	srv := server.NewServer(cfg)
	srv.Run()
}
