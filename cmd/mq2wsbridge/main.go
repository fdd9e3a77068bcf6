// Command mq2wsbridge runs the bidirectional bridge between an AMQP broker
// queue pair and a signed-URL WebSocket endpoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"mq2wsbridge/bridge"
	"mq2wsbridge/bridge/wsio"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		runSecs       = flag.IntP("runsecs", "R", 60, "stop automatically after this many seconds (0 = run until signaled)")
		verbose       = flag.BoolP("verbose", "v", false, "enable verbose logging")
		debug         = flag.BoolP("debug", "d", false, "enable debug logging")
		configPath    = flag.StringP("config", "c", "mq2wsbridge.ini", "path to the INI configuration file")
		ssmRegion     = flag.StringP("ssm-region", "r", "", "AWS region to use for SSM configuration")
		useSSM        = flag.BoolP("ssm", "s", false, "read configuration from AWS SSM Parameter Store instead of the INI file")
		migrateConfig = flag.BoolP("migrate-config", "M", false, "migrate the INI configuration file into SSM, then exit")
		wsStub        = flag.BoolP("websocket-stub", "X", false, "use the in-process loopback WebSocket handler instead of a real connection")
		cwLogs        = flag.BoolP("cloudwatch-logs", "l", false, "stream logs to CloudWatch Logs")
		cwMetrics     = flag.BoolP("cloudwatch-metrics", "m", false, "publish metrics to CloudWatch")
	)
	flag.Parse()

	ctx := context.Background()
	logger := bridge.NewLogger("[mq2wsbridge] ")
	logger.SetLevels(*debug, *verbose, true, true)

	if *migrateConfig {
		if *ssmRegion == "" {
			return fmt.Errorf("%w: --ssm-region is required with --migrate-config", bridge.ErrSetup)
		}
		store, err := bridge.NewSSMClient(ctx, *ssmRegion)
		if err != nil {
			return err
		}
		if err := bridge.ConvertINIToSSM(ctx, *configPath, store); err != nil {
			return err
		}
		logger.Verbose("migrated %s into SSM under /mq2wsbridge", *configPath)
		return nil
	}

	settings, err := loadSettings(ctx, *configPath, *ssmRegion, *useSSM)
	if err != nil {
		return err
	}
	settings.WS.Stub = *wsStub
	settings.RunSecs = *runSecs
	settings.Obs.Debug, settings.Obs.Verbose = *debug, *verbose
	settings.Obs.CloudWatchLogs, settings.Obs.CloudWatchMetrics = *cwLogs, *cwMetrics

	if settings.Obs.CloudWatchLogs {
		sink, err := bridge.NewCloudWatchLogSink(ctx, settings.Obs.CWRegion, settings.Obs.CWLogGroup, settings.Obs.CWLogStream, int32(settings.Obs.CWRetentionDays))
		if err != nil {
			return fmt.Errorf("setting up CloudWatch log sink: %w", err)
		}
		logger.SetSink(sink)
	}

	var metricSink bridge.MetricSink = bridge.NullMetricSink{}
	if settings.Obs.CloudWatchMetrics {
		sink, err := bridge.NewCloudWatchMetricsSink(ctx, settings.Obs.CWRegion, settings.Obs.CWMetricsNamespace)
		if err != nil {
			return fmt.Errorf("setting up CloudWatch metrics sink: %w", err)
		}
		metricSink = sink
	}

	counters := &bridge.Counters{}
	runFlag := bridge.NewRunFlag()

	broker := bridge.NewBrokerHandler(settings.Broker, counters, logger, runFlag)
	metrics := bridge.NewMetricsReporter(counters, metricSink, settings.Obs.CWMetricsResolution, logger, runFlag)

	var ws bridge.WSHandler
	if settings.WS.Stub {
		stub := wsio.NewStub(counters, logger, runFlag, settings.Broker.TTLFromWS)
		stub.FromWS = bridge.ForwarderFunc(broker.SendMessageFromWS)
		broker.ToWS = stub
		ws = stub
	} else {
		handler := wsio.NewHandler(settings.WS, settings.Broker.TTLFromWS, counters, logger, runFlag)
		handler.FromWS = bridge.ForwarderFunc(broker.SendMessageFromWS)
		broker.ToWS = handler
		ws = handler
	}

	sup := bridge.NewSupervisor(settings, logger, runFlag, counters, broker, ws, metrics)

	if err := sup.Start(ctx); err != nil {
		return err
	}
	logger.Verbose("bridge started")

	stopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go interrupt(stopCtx, runFlag, time.Duration(settings.RunSecs)*time.Second, logger)

	watchErr := sup.Watch(stopCtx)
	sup.Shutdown()
	return watchErr
}

// interrupt stops the shared RunFlag when runSecs elapses (if nonzero) or
// when the process receives SIGINT/SIGTERM/SIGHUP, matching mq2wsbridge.py's
// quit()/interrupter() signal handling.
func interrupt(ctx context.Context, run *bridge.RunFlag, runFor time.Duration, logger *bridge.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	var timeout <-chan time.Time
	if runFor > 0 {
		timer := time.NewTimer(runFor)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case sig := <-sigCh:
		logger.Verbose("received signal %v, shutting down", sig)
	case <-timeout:
		logger.Verbose("runsecs elapsed, shutting down")
	case <-ctx.Done():
	}
	run.Stop()
}

func loadSettings(ctx context.Context, configPath, ssmRegion string, useSSM bool) (bridge.Settings, error) {
	if useSSM {
		if ssmRegion == "" {
			return bridge.Settings{}, fmt.Errorf("%w: --ssm-region is required with --ssm", bridge.ErrSetup)
		}
		store, err := bridge.NewSSMClient(ctx, ssmRegion)
		if err != nil {
			return bridge.Settings{}, err
		}
		return bridge.LoadFromSSM(ctx, store)
	}
	return bridge.LoadFromINI(configPath)
}
