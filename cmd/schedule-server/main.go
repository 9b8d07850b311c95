package main

import (
	"flag"
	"os"
	"univer-schedule/internal/components/telemetry"
	"univer-schedule/internal/config"
	"univer-schedule/internal/service"
	"univer-schedule/lib/util/serviceutil"
)

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	configPath := flag.String("config", "config.json5", "Path to the json5 config file.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	cfg, err := config.Load(*configPath)
	if err != nil {
		serviceutil.Fatal("read config", err)
	}

	InitTelemetry(ctx, *verbose, cfg.Telemetry)
	tel := telemetry.SlogAPI{}

	clock, err := cfg.Clock()
	if err != nil {
		serviceutil.Fatal("init clock", err)
	}
	cal, err := cfg.CalendarModel(clock)
	if err != nil {
		serviceutil.Fatal("init calendar", err)
	}
	orchestrator, err := cfg.Orchestrator(cal, clock, tel)
	if err != nil {
		serviceutil.Fatal("init orchestrator", err)
	}
	serviceConfig, err := cfg.Server.ServiceConfig()
	if err != nil {
		serviceutil.Fatal("init service", err)
	}

	svc := service.NewService(orchestrator, cal, clock, tel, serviceConfig)
	err = serviceutil.StartHttpServer(ctx, cfg.Server.Port, svc.Handler(os.Stderr))
	if err != nil {
		serviceutil.Fatal("serve http", err)
	}
}
