// Package config defines the node's static configuration, parsed by
// go-flags the way lncfg's sub-configs are declared: plain structs with
// `long`/`description` struct tags, no environment-variable reads
// anywhere in the rest of the module (the design notes: "process.env reads become an
// explicit configuration struct").
package config

import (
	"time"

	flags "github.com/jessevdk/go-flags"
)

// Chain holds everything needed to reach the on-chain backend a
// chain.Backend implementation wraps.
type Chain struct {
	ProviderURL     string `long:"provider" description:"RPC endpoint of the chain provider backing the payment channel contract."`
	ContractAddress string `long:"contractaddress" description:"address of the deployed payment-channel contract."`
	Network         string `long:"network" description:"chain network name (e.g. mainnet, goerli, anvil)." default:"anvil"`
}

// Node holds the node's own identity and listen configuration.
type Node struct {
	PrivateKeyPath string `long:"privatekeypath" description:"path to the node's on-chain/identity private key file."`
	ListenAddress  string `long:"listenaddress" description:"address this node listens for onion packets on." default:"0.0.0.0:9091"`
}

// Relay holds the parameters governing this node's behaviour as a
// forwarding relay.
type Relay struct {
	RelayFee       uint64        `long:"relayfee" description:"per-hop fee this node deducts when forwarding a packet." default:"1"`
	WinProbNum     uint64        `long:"winprobnumerator" description:"numerator of the probabilistic ticket win probability (see ticket.winProbDenominator)." default:"1"`
	ReplayTTL      time.Duration `long:"replayttl" description:"how long a seen replay tag is retained before it may be pruned." default:"24h"`
	ClosureGrace   time.Duration `long:"closuregrace" description:"grace period a channel sits in PendingClosure before withdraw is attempted." default:"1h"`
}

// Metrics controls the optional prometheus exporter.
type Metrics struct {
	Enabled bool   `long:"metrics.enabled" description:"expose a prometheus /metrics endpoint."`
	Address string `long:"metrics.address" description:"address the metrics HTTP server listens on." default:"127.0.0.1:9092"`
}

// Config is the top-level configuration struct, the single place this
// module reads external parameters from.
type Config struct {
	Chain   Chain   `group:"Chain" namespace:"chain"`
	Node    Node    `group:"Node" namespace:"node"`
	Relay   Relay   `group:"Relay" namespace:"relay"`
	Metrics Metrics `group:"Metrics" namespace:"metrics"`
}

// Default returns a Config populated with every field's declared
// default, as if no flags or config file had been supplied.
func Default() *Config {
	return &Config{
		Chain: Chain{Network: "anvil"},
		Node:  Node{ListenAddress: "0.0.0.0:9091"},
		Relay: Relay{
			RelayFee:     1,
			WinProbNum:   1,
			ReplayTTL:    24 * time.Hour,
			ClosureGrace: time.Hour,
		},
		Metrics: Metrics{Address: "127.0.0.1:9092"},
	}
}

// Parse parses args (typically os.Args[1:]) into a Config seeded with
// its declared defaults, in the same jessevdk/go-flags style lncfg's
// sub-configs are composed by the root lnd config.
func Parse(args []string) (*Config, error) {
	cfg := Default()
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	return cfg, nil
}
