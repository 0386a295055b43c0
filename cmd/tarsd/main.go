// Command tarsd is the bootstrap example spec §2 describes: assemble
// configuration, create the communicator (client core), then the server
// core (bind adapters, handle threads, net threads), then block until a
// termination signal arrives.
//
// Wiring process signals is explicitly the caller's job (spec's
// Non-goals name "process-level signal handling" as out of scope); this
// main is kept as the one example of how a real deployment does it.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zhenshangxin/tars-go/internal/client"
	"github.com/zhenshangxin/tars-go/internal/server"
	"github.com/zhenshangxin/tars-go/internal/telemetry"
	"github.com/zhenshangxin/tars-go/pkg/tarsconf"
)

// version is the string tars.viewversion reports and --version prints.
const version = "tars-go/0.1"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("tarsd", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the tars configuration file (required)")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Println(version)
		return 0
	}
	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "tarsd: --config is required")
		return 2
	}

	log := telemetry.Category("bootstrap")

	raw, err := os.ReadFile(*configPath)
	if err != nil {
		log.Error().Err(err).Str("path", *configPath).Msg("failed to read config")
		return 1
	}
	root, err := tarsconf.Parse(string(raw))
	if err != nil {
		log.Error().Err(err).Msg("failed to parse config")
		return 1
	}

	srvCfg, err := server.LoadServerConfig(root)
	if err != nil {
		log.Error().Err(err).Msg("failed to load server config")
		return 1
	}
	cliCfg, err := client.LoadConfig(root)
	if err != nil {
		log.Error().Err(err).Msg("failed to load client config")
		return 1
	}

	comm, err := client.GetCommunicator(srvCfg.App+"."+srvCfg.Server, cliCfg, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to create communicator")
		return 1
	}
	comm.Start()
	defer comm.Close()

	srv, err := server.New(srvCfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to assemble server")
		return 1
	}

	// A real deployment registers its servants here, e.g.:
	//   srv.RegisterServant("echo", srvCfg.App+"."+srvCfg.Server+".EchoObj", echoHandler)

	srv.Start()
	log.Info().Str("app", srvCfg.App).Str("server", srvCfg.Server).Msg("server started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("terminate signal received, shutting down")
	if err := srv.Terminate(); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
		return 1
	}
	return 0
}
