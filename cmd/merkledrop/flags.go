package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pangolindex/merkledrop-go/pkg/config"
	"github.com/pangolindex/merkledrop-go/pkg/whitelist"
)

func campaignFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML campaign file; flags override its values",
			EnvVars: []string{config.EnvConfig},
		},
		&cli.StringFlag{
			Name:    "batch-id",
			Usage:   "Batch identifier (default: random UUID)",
			EnvVars: []string{config.EnvBatchID},
		},
		&cli.StringFlag{
			Name:    "network",
			Usage:   fmt.Sprintf("Target network: %s", config.GetSupportedNetworksString()),
			EnvVars: []string{config.EnvNetwork},
		},
		&cli.StringFlag{
			Name:    "hash",
			Usage:   "Tree hash function: keccak256, blake2b, sha3-256",
			EnvVars: []string{config.EnvHash},
		},
		&cli.BoolFlag{
			Name:  "sort-leaves",
			Usage: "Sort leaf hashes before pairing instead of keeping input order",
		},
		&cli.BoolFlag{
			Name:  "enforce-supply-cap",
			Usage: "Fail if the total exceeds the network airdrop supply",
		},
		&cli.UintFlag{
			Name:  "decimals",
			Usage: "Token decimals used for the supply cap",
			Value: config.DefaultTokenDecimals,
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Parallel record writes",
			Value: config.DefaultWorkers,
		},
	}
}

func loaderFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "input",
			Aliases: []string{"i"},
			Usage:   "Allocation CSV",
			EnvVars: []string{config.EnvInput},
		},
		&cli.IntFlag{
			Name:  "skip-lines",
			Usage: "Preamble lines to discard before the header",
		},
		&cli.BoolFlag{
			Name:  "no-header",
			Usage: "The CSV has no header; address is column 0 and amount column 1",
		},
		&cli.StringFlag{
			Name:  "address-column",
			Usage: "Header of the address column",
			Value: "address",
		},
		&cli.StringFlag{
			Name:  "amount-column",
			Usage: "Header of the amount column",
			Value: "total_amount",
		},
		&cli.BoolFlag{
			Name:  "aggregate",
			Usage: "Sum the amounts of repeated addresses instead of rejecting them",
		},
		&cli.BoolFlag{
			Name:  "skip-zero",
			Usage: "Drop rows with a zero amount instead of failing",
		},
	}
}

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "store",
			Usage:   "Record store: file, badger, redis, memory",
			EnvVars: []string{config.EnvStore},
		},
		&cli.StringFlag{
			Name:    "output-dir",
			Aliases: []string{"o"},
			Usage:   "Directory for the file store, or the badger database",
			EnvVars: []string{config.EnvOutputDir, config.EnvStorePath},
		},
		&cli.StringFlag{
			Name:    "redis-address",
			Usage:   "Redis host:port for the redis store",
			EnvVars: []string{config.EnvRedisAddress},
		},
		&cli.StringFlag{
			Name:    "redis-password",
			Usage:   "Redis password",
			EnvVars: []string{config.EnvRedisPassword},
		},
		&cli.StringFlag{
			Name:  "redis-prefix",
			Usage: "Prefix for every redis key",
		},
	}
}

func verifyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "record",
			Usage: "Claim record JSON file",
		},
		&cli.StringFlag{
			Name:  "address",
			Usage: "Recipient address",
		},
		&cli.StringFlag{
			Name:  "amount",
			Usage: "Allocated amount in base units",
		},
		&cli.StringSliceFlag{
			Name:  "proof",
			Usage: "Proof hashes, leaf to root (repeat or comma-separate)",
		},
		&cli.StringFlag{
			Name:    "root",
			Usage:   "Trusted merkle root",
			EnvVars: []string{config.EnvRoot},
		},
		&cli.StringFlag{
			Name:    "network",
			Usage:   "Use the root published on this network",
			EnvVars: []string{config.EnvNetwork},
		},
		&cli.StringFlag{
			Name:    "hash",
			Usage:   "Tree hash function",
			Value:   "keccak256",
			EnvVars: []string{config.EnvHash},
		},
	}
}

func auditFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "batch-id",
			Usage:    "Batch to audit",
			Required: true,
			EnvVars:  []string{config.EnvBatchID},
		},
		&cli.StringFlag{
			Name:    "root",
			Usage:   "Trusted merkle root",
			EnvVars: []string{config.EnvRoot},
		},
		&cli.StringFlag{
			Name:    "network",
			Usage:   "Use the root published on this network, and its supply cap with --enforce-supply-cap",
			EnvVars: []string{config.EnvNetwork},
		},
		&cli.BoolFlag{
			Name:  "enforce-supply-cap",
			Usage: "Check the total against the network airdrop supply",
		},
		&cli.UintFlag{
			Name:  "decimals",
			Usage: "Token decimals used for the supply cap",
			Value: config.DefaultTokenDecimals,
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Parallel verifications",
			Value: config.DefaultWorkers,
		},
	}
}

func whitelistFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML campaign file supplying the CSV layout and whitelistBatchSize; flags override it",
			EnvVars: []string{config.EnvConfig},
		},
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Recipients per whitelistAddresses call",
			Value: whitelist.DefaultBatchSize,
		},
		&cli.BoolFlag{
			Name:  "with-root",
			Usage: "Prepend a setMerkleRoot call with the root of the allocations",
		},
	}
}
