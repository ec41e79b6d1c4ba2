package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/pagecycle/pagecycle"
	"github.com/pagecycle/pagecycle/store"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// CLI flags
	configFilenameFlag string
	portFlag           int
	dbFilenameFlag     string
	sweepSecondsFlag   int
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "pagecycle.yml", "Path to config file")
	flag.IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	flag.StringVar(&dbFilenameFlag, "db", "buffers.db", "Buffer store DB file name (use 'memory' for in-memory store)")
	flag.IntVar(&sweepSecondsFlag, "sweep", 60, "Seconds between orphaned-buffer sweeps (0 disables)")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	config, err := pagecycle.GetConfig(configFilenameFlag)
	if err != nil {
		log.Fatal().Err(err).Str("config", configFilenameFlag).Msg("Could not read config")
	}
	if len(config.Pages) == 0 {
		log.Fatal().Msg("Need at least one page")
	}
	if portFlag != 0 {
		config.Port = portFlag
	}
	if config.Port == 0 {
		config.Port = 8080
	}

	var bufferStore store.Store
	if dbFilenameFlag == "memory" {
		bufferStore = store.NewMemStore()
	} else {
		bufferStore = store.NewSQLiteStore(dbFilenameFlag)
	}

	server, err := NewServer(config, bufferStore)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not set up server")
	}

	if sweepSecondsFlag > 0 {
		go server.sweepLoop(time.Duration(sweepSecondsFlag) * time.Second)
	}

	log.Info().Msgf("Serving %d page(s) on port %d with strategy '%s'", len(config.Pages), config.Port, config.Strategy)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", config.Port), server); err != nil {
		panic(err)
	}
}
