// veiled-verifier serves the relying-party session verification endpoint.
// It reads the on-chain nullifier registry only; no keys, no proving.
package main

import (
	"flag"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/digitaldrreamer/veiled-sub002/internal/chain"
	"github.com/digitaldrreamer/veiled-sub002/pkg/config"
	"github.com/digitaldrreamer/veiled-sub002/pkg/events"
	"github.com/digitaldrreamer/veiled-sub002/pkg/logger"
	"github.com/digitaldrreamer/veiled-sub002/pkg/rest"
	"github.com/digitaldrreamer/veiled-sub002/pkg/session"
)

func main() {
	configPath := flag.String("config", "", "path to JSON config file")
	listenAddr := flag.String("listen", ":8080", "HTTP listen address")
	flag.Parse()

	mainLogger := logger.Default()

	cfg, err := config.Load(*configPath)
	if err != nil {
		mainLogger.Error(err, "could not load configuration")
		os.Exit(1)
	}

	programID, err := solana.PublicKeyFromBase58(cfg.ProgramID)
	if err != nil {
		mainLogger.Errorf(err, "invalid program id %q", cfg.ProgramID)
		os.Exit(1)
	}

	client := chain.NewClient(cfg.RPCEndpoint, programID)
	client.Commitment = commitmentFromString(cfg.Commitment)
	client.ConfirmTimeout = cfg.ConfirmationTimeout

	manager := session.NewManager(nil, nil)
	manager.Chain = client

	if cfg.AmqpURL != "" {
		conn, err := events.ConnectAmqp(cfg.AmqpURL)
		if err != nil {
			mainLogger.Error(err, "could not connect to the message broker")
			os.Exit(1)
		}
		defer conn.Close()

		channel, err := conn.Channel()
		if err != nil {
			mainLogger.Error(err, "could not open a broker channel")
			os.Exit(1)
		}
		defer channel.Close()

		manager.Observer = events.NewAmqpObserver(channel, cfg.AmqpExchange, cfg.AmqpRoutingKey)
	}

	mainLogger.Infof("session verifier listening on %s, program %s", *listenAddr, programID.String())

	handler := rest.NewHandler(manager)
	if err := handler.Router().Run(*listenAddr); err != nil {
		mainLogger.Error(err, "server stopped")
		os.Exit(1)
	}
}

func commitmentFromString(s string) rpc.CommitmentType {
	switch s {
	case "processed":
		return rpc.CommitmentProcessed
	case "confirmed":
		return rpc.CommitmentConfirmed
	default:
		return rpc.CommitmentFinalized
	}
}
