package main

import (
	"io"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pangolindex/merkledrop-go/pkg/config"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:  "merkledrop",
		Usage: "Build and verify merkle airdrop claims",
		Description: `Builds a merkle tree over (address, amount) allocations and publishes one
self-contained claim record per recipient.

Leaves are keccak256(address || uint96 amount), parents hash the sorted pair of
their children and an odd node at the end of a level is paired with itself.
Recipients prove their claim against the root set on the airdrop contract.`,
		Version: "1.0.0",
		Writer:  out,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvVerbose},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "generate",
				Usage:  "Build the tree from an allocation CSV and store one claim record per recipient",
				Flags:  append(append(campaignFlags(), loaderFlags()...), storeFlags()...),
				Action: generateCommand,
			},
			{
				Name:   "verify",
				Usage:  "Verify a claim against a root",
				Flags:  verifyFlags(),
				Action: verifyCommand,
			},
			{
				Name:   "audit",
				Usage:  "Re-verify every stored record of a batch against a trusted root",
				Flags:  append(auditFlags(), storeFlags()...),
				Action: auditCommand,
			},
			{
				Name:   "whitelist",
				Usage:  "Print whitelistAddresses calldata batches as JSON",
				Flags:  append(whitelistFlags(), loaderFlags()...),
				Action: whitelistCommand,
			},
		},
	}
}
