package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/pangolindex/merkledrop-go/pkg/airdrop"
	"github.com/pangolindex/merkledrop-go/pkg/allocations"
	"github.com/pangolindex/merkledrop-go/pkg/audit"
	"github.com/pangolindex/merkledrop-go/pkg/config"
	"github.com/pangolindex/merkledrop-go/pkg/logger"
	"github.com/pangolindex/merkledrop-go/pkg/merkle"
	"github.com/pangolindex/merkledrop-go/pkg/persistence"
	"github.com/pangolindex/merkledrop-go/pkg/persistence/factory"
	"github.com/pangolindex/merkledrop-go/pkg/types"
	"github.com/pangolindex/merkledrop-go/pkg/whitelist"
)

const (
	defaultOutputDir = "airdrop"

	// exitInvalid is returned when a well formed claim does not match the root
	exitInvalid = 1
	// exitMalformed is returned when the claim or root cannot be decoded
	exitMalformed = 2
)

func newLogger(c *cli.Context) (*zap.Logger, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return l, nil
}

// campaignConfig loads --config when given and overlays every flag the user set.
func campaignConfig(c *cli.Context) (*config.CampaignConfig, error) {
	cfg := config.NewCampaignConfig()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadCampaignConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if c.IsSet("batch-id") {
		cfg.BatchID = c.String("batch-id")
	}
	if c.IsSet("network") {
		cfg.Network = c.String("network")
	}
	if c.IsSet("hash") {
		cfg.HashFunction = c.String("hash")
	}
	if c.Bool("sort-leaves") {
		cfg.LeafOrder = string(airdrop.LeafOrderSorted)
	}
	if c.Bool("enforce-supply-cap") {
		cfg.EnforceSupplyCap = true
	}
	if c.IsSet("decimals") {
		d := c.Uint("decimals")
		if d > 255 {
			return nil, fmt.Errorf("decimals must be at most 255, got %d", d)
		}
		decimals := uint8(d)
		cfg.Decimals = &decimals
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}

	applyInputFlags(c, &cfg.Input)
	applyStoreFlags(c, &cfg.Store)

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.BatchID == "" {
		cfg.BatchID = uuid.NewString()
	}
	return cfg, nil
}

func applyInputFlags(c *cli.Context, in *config.InputConfig) {
	if c.IsSet("input") {
		in.Path = c.String("input")
	}
	if c.IsSet("skip-lines") {
		in.SkipLines = c.Int("skip-lines")
	}
	if c.Bool("no-header") {
		in.NoHeader = true
	}
	if c.IsSet("address-column") || in.AddressColumn == "" {
		in.AddressColumn = c.String("address-column")
	}
	if c.IsSet("amount-column") || in.AmountColumn == "" {
		in.AmountColumn = c.String("amount-column")
	}
	if c.Bool("aggregate") {
		in.Aggregate = true
	}
	if c.Bool("skip-zero") {
		in.SkipZeroAmounts = true
	}
}

func applyStoreFlags(c *cli.Context, s *config.StoreConfig) {
	if c.IsSet("store") {
		s.Type = config.StoreType(strings.ToLower(c.String("store")))
	}
	if c.IsSet("output-dir") {
		s.Path = c.String("output-dir")
	}
	if s.Path == "" && (s.Type == "" || s.Type == config.StoreTypeFile || s.Type == config.StoreTypeBadger) {
		s.Path = defaultOutputDir
	}
	if c.IsSet("redis-address") || c.IsSet("redis-password") || c.IsSet("redis-prefix") {
		if s.Redis == nil {
			s.Redis = &config.RedisConfig{}
		}
		if c.IsSet("redis-address") {
			s.Redis.Address = c.String("redis-address")
		}
		if c.IsSet("redis-password") {
			s.Redis.Password = c.String("redis-password")
		}
		if c.IsSet("redis-prefix") {
			s.Redis.KeyPrefix = c.String("redis-prefix")
		}
	}
}

func loadAllocations(in *config.InputConfig, l *zap.Logger) ([]types.Allocation, error) {
	if in.Path == "" {
		return nil, fmt.Errorf("an allocation file is required (--input)")
	}
	loader := allocations.NewLoader(&allocations.LoaderConfig{
		SkipLines:       in.SkipLines,
		HasHeader:       !in.NoHeader,
		AddressColumn:   in.AddressColumn,
		AmountColumn:    in.AmountColumn,
		Aggregate:       in.Aggregate,
		SkipZeroAmounts: in.SkipZeroAmounts,
	}, l)
	return loader.LoadFile(in.Path)
}

func generateCommand(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	cfg, err := campaignConfig(c)
	if err != nil {
		return err
	}

	allocs, err := loadAllocations(&cfg.Input, l)
	if err != nil {
		return err
	}

	supplyCap, err := cfg.SupplyCap()
	if err != nil {
		return err
	}
	builder, err := airdrop.NewBuilder(&airdrop.Options{
		HashFunction: merkle.HashFunction(cfg.HashFunction),
		LeafOrder:    airdrop.LeafOrder(cfg.LeafOrder),
		SupplyCap:    supplyCap,
	}, l)
	if err != nil {
		return err
	}
	result, err := builder.Build(cfg.BatchID, allocs)
	if err != nil {
		return err
	}

	store, err := factory.NewRecordStore(&cfg.Store, l)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	manifest := result.Manifest(cfg.Network, time.Now().Unix())
	if err := persistence.SaveAll(c.Context, store, manifest, result.Records(), cfg.Workers); err != nil {
		return fmt.Errorf("failed to save batch %s: %w", cfg.BatchID, err)
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Batch:       %s\n", cfg.BatchID)
	fmt.Fprintf(w, "Recipients:  %d\n", manifest.LeafCount)
	fmt.Fprintf(w, "Total:       %s\n", manifest.TotalAmount)
	fmt.Fprintf(w, "Store:       %s %s\n", cfg.Store.Type, cfg.Store.Path)
	fmt.Fprintf(w, "Merkle root: %s\n", result.RootHex())

	if published, differs := publishedRootMismatch(cfg.Network, result.Root); differs {
		l.Sugar().Warnw("Generated root differs from the root published on chain",
			"network", cfg.Network, "published", published.Hex(), "generated", result.RootHex())
		fmt.Fprintf(w, "Published:   %s (differs from the generated root)\n", published.Hex())
	}
	return nil
}

// publishedRootMismatch returns the root published on network when it is set and
// differs from root.
func publishedRootMismatch(networkName string, root [32]byte) (common.Hash, bool) {
	if networkName == "" {
		return common.Hash{}, false
	}
	network, err := config.GetNetwork(networkName)
	if err != nil || !network.HasPublishedRoot() {
		return common.Hash{}, false
	}
	return network.PublishedRoot, network.PublishedRoot != common.Hash(root)
}

// trustedRoot resolves --root, then the published root of --network. ok is false when neither is given.
func trustedRoot(c *cli.Context) (root [32]byte, ok bool, err error) {
	if c.IsSet("root") {
		root, err = airdrop.DecodeHash(c.String("root"))
		return root, err == nil, err
	}
	if c.IsSet("network") {
		network, err := config.GetNetwork(c.String("network"))
		if err != nil {
			return root, false, err
		}
		if !network.HasPublishedRoot() {
			return root, false, fmt.Errorf("no merkle root has been published on %s; pass --root", network.Name)
		}
		return network.PublishedRoot, true, nil
	}
	return root, false, nil
}

func verifyCommand(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	verifier, err := airdrop.NewVerifier(merkle.HashFunction(c.String("hash")))
	if err != nil {
		return err
	}

	root, haveRoot, err := trustedRoot(c)
	if err != nil {
		return cli.Exit(err.Error(), exitMalformed)
	}

	var record *types.AirdropRecord
	if path := c.String("record"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read record: %w", err)
		}
		if record, err = persistence.UnmarshalRecord(data); err != nil {
			return cli.Exit(err.Error(), exitMalformed)
		}
	} else {
		if !c.IsSet("address") || !c.IsSet("amount") {
			return fmt.Errorf("either --record or --address and --amount are required")
		}
		var proof []string
		for _, p := range c.StringSlice("proof") {
			for _, part := range strings.Split(p, ",") {
				if part = strings.TrimSpace(part); part != "" {
					proof = append(proof, part)
				}
			}
		}
		record = &types.AirdropRecord{Address: c.String("address"), Amount: c.String("amount"), Proof: proof}
	}

	if !haveRoot {
		if record.Root == "" {
			return fmt.Errorf("a trusted root is required (--root or --network)")
		}
		l.Sugar().Warnw("No trusted root given, verifying against the root carried by the record", "root", record.Root)
		if root, err = airdrop.DecodeHash(record.Root); err != nil {
			return cli.Exit(err.Error(), exitMalformed)
		}
	}
	if record.Root == "" {
		record.Root = common.Hash(root).Hex()
	}

	valid, err := verifier.VerifyRecordAgainst(record, root)
	if err != nil {
		return cli.Exit(err.Error(), exitMalformed)
	}
	if !valid {
		fmt.Fprintln(c.App.Writer, "invalid")
		return cli.Exit("", exitInvalid)
	}
	fmt.Fprintln(c.App.Writer, "valid")
	return nil
}

func auditCommand(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	storeCfg := &config.StoreConfig{}
	applyStoreFlags(c, storeCfg)
	if storeCfg.Type == "" {
		storeCfg.Type = config.StoreTypeFile
	}
	if storeCfg.Type == config.StoreTypeRedis && storeCfg.Redis == nil {
		storeCfg.Redis = &config.RedisConfig{Address: "localhost:6379"}
	}

	store, err := factory.NewRecordStore(storeCfg, l)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	batchID := c.String("batch-id")
	root, haveRoot, err := trustedRoot(c)
	if err != nil {
		return err
	}
	if !haveRoot {
		manifest, err := store.LoadCampaign(c.Context, batchID)
		if err != nil {
			return err
		}
		if manifest == nil {
			return fmt.Errorf("batch %s not found", batchID)
		}
		l.Sugar().Warnw("No trusted root given, auditing against the stored manifest root", "root", manifest.Root)
		if root, err = airdrop.DecodeHash(manifest.Root); err != nil {
			return err
		}
	}

	opts := &audit.Options{Workers: c.Int("workers")}
	if c.Bool("enforce-supply-cap") {
		if !c.IsSet("network") {
			return fmt.Errorf("--enforce-supply-cap requires --network")
		}
		network, err := config.GetNetwork(c.String("network"))
		if err != nil {
			return err
		}
		decimals := c.Uint("decimals")
		if decimals > 255 {
			return fmt.Errorf("decimals must be at most 255, got %d", decimals)
		}
		opts.SupplyCap = network.SupplyCap(uint8(decimals))
	}

	report, err := audit.NewAuditor(store, opts, l).Audit(c.Context, batchID, root)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	fmt.Fprintln(c.App.Writer, string(out))

	if !report.OK() {
		return cli.Exit(fmt.Sprintf("audit of batch %s failed", batchID), exitInvalid)
	}
	return nil
}

func whitelistCommand(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	in := &config.InputConfig{}
	batchSize := c.Int("batch-size")
	builderOpts := &airdrop.Options{}
	if path := c.String("config"); path != "" {
		cfg, err := config.LoadCampaignConfig(path)
		if err != nil {
			return err
		}
		in = &cfg.Input
		if !c.IsSet("batch-size") {
			batchSize = cfg.WhitelistBatchSize
		}
		builderOpts.HashFunction = merkle.HashFunction(cfg.HashFunction)
		builderOpts.LeafOrder = airdrop.LeafOrder(cfg.LeafOrder)
	}
	applyInputFlags(c, in)
	allocs, err := loadAllocations(in, l)
	if err != nil {
		return err
	}

	var root *[32]byte
	if c.Bool("with-root") {
		builder, err := airdrop.NewBuilder(builderOpts, l)
		if err != nil {
			return err
		}
		result, err := builder.Build("whitelist", allocs)
		if err != nil {
			return err
		}
		root = &result.Root
	}

	calls, err := whitelist.Calls(allocs, batchSize, root)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(calls, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode calls: %w", err)
	}
	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}
