package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/pangolindex/merkledrop-go/pkg/merkle"
)

// Environment variable names for merkledrop commands
const (
	EnvInput         = "MERKLEDROP_INPUT"
	EnvOutputDir     = "MERKLEDROP_OUTPUT_DIR"
	EnvStore         = "MERKLEDROP_STORE"
	EnvStorePath     = "MERKLEDROP_STORE_PATH"
	EnvRedisAddress  = "MERKLEDROP_REDIS_ADDRESS"
	EnvRedisPassword = "MERKLEDROP_REDIS_PASSWORD"
	EnvBatchID       = "MERKLEDROP_BATCH_ID"
	EnvNetwork       = "MERKLEDROP_NETWORK"
	EnvConfig        = "MERKLEDROP_CONFIG"
	EnvHash          = "MERKLEDROP_HASH"
	EnvRoot          = "MERKLEDROP_ROOT"
	EnvVerbose       = "MERKLEDROP_VERBOSE"
)

const (
	// DefaultTokenDecimals is the decimals of the distributed token
	DefaultTokenDecimals = 18
	// DefaultWhitelistBatchSize is how many recipients go into one whitelist call
	DefaultWhitelistBatchSize = 250
	// DefaultWorkers bounds parallel store writes and audits
	DefaultWorkers = 8
)

type ChainId uint

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_Flare           ChainId = 14
	ChainId_Coston          ChainId = 16
	ChainId_Songbird        ChainId = 19
	ChainId_Polygon         ChainId = 137
	ChainId_Hardhat         ChainId = 31337
	ChainId_AvalancheFuji   ChainId = 43113
	ChainId_Avalanche       ChainId = 43114
)

type ChainName string

const (
	ChainName_EthereumMainnet ChainName = "ethereum"
	ChainName_Flare           ChainName = "flare"
	ChainName_Coston          ChainName = "coston"
	ChainName_Songbird        ChainName = "songbird"
	ChainName_Polygon         ChainName = "polygon"
	ChainName_Hardhat         ChainName = "hardhat"
	ChainName_AvalancheFuji   ChainName = "fuji"
	ChainName_Avalanche       ChainName = "avalanche"
)

var ChainIdToName = map[ChainId]ChainName{
	ChainId_EthereumMainnet: ChainName_EthereumMainnet,
	ChainId_Flare:           ChainName_Flare,
	ChainId_Coston:          ChainName_Coston,
	ChainId_Songbird:        ChainName_Songbird,
	ChainId_Polygon:         ChainName_Polygon,
	ChainId_Hardhat:         ChainName_Hardhat,
	ChainId_AvalancheFuji:   ChainName_AvalancheFuji,
	ChainId_Avalanche:       ChainName_Avalanche,
}
var ChainNameToId = map[ChainName]ChainId{
	ChainName_EthereumMainnet: ChainId_EthereumMainnet,
	ChainName_Flare:           ChainId_Flare,
	ChainName_Coston:          ChainId_Coston,
	ChainName_Songbird:        ChainId_Songbird,
	ChainName_Polygon:         ChainId_Polygon,
	ChainName_Hardhat:         ChainId_Hardhat,
	ChainName_AvalancheFuji:   ChainId_AvalancheFuji,
	ChainName_Avalanche:       ChainId_Avalanche,
}

// NetworkConfig holds the airdrop parameters deployed on a network.
type NetworkConfig struct {
	ChainID ChainId
	Name    ChainName
	// AirdropSupply is the number of whole tokens funded for the airdrop
	AirdropSupply uint64
	// PublishedRoot is the root set on the airdrop contract, zero if none was published
	PublishedRoot common.Hash
}

var networks = map[ChainName]*NetworkConfig{
	ChainName_EthereumMainnet: {ChainID: ChainId_EthereumMainnet, Name: ChainName_EthereumMainnet, AirdropSupply: 11_500_000},
	ChainName_Flare: {
		ChainID:       ChainId_Flare,
		Name:          ChainName_Flare,
		AirdropSupply: 0,
		PublishedRoot: common.Hash{},
	},
	ChainName_Coston: {ChainID: ChainId_Coston, Name: ChainName_Coston, AirdropSupply: 3_450_000},
	ChainName_Songbird: {
		ChainID:       ChainId_Songbird,
		Name:          ChainName_Songbird,
		AirdropSupply: 2_300_000,
		PublishedRoot: common.HexToHash("0xa99168d65703044b47554952229de9e52fe8a5486e095ea150c0501b29de0a32"),
	},
	ChainName_Polygon:       {ChainID: ChainId_Polygon, Name: ChainName_Polygon, AirdropSupply: 11_500_000},
	ChainName_Hardhat:       {ChainID: ChainId_Hardhat, Name: ChainName_Hardhat, AirdropSupply: 11_500_000},
	ChainName_AvalancheFuji: {ChainID: ChainId_AvalancheFuji, Name: ChainName_AvalancheFuji, AirdropSupply: 11_500_000},
	ChainName_Avalanche:     {ChainID: ChainId_Avalanche, Name: ChainName_Avalanche, AirdropSupply: 11_500_000},
}

// GetNetwork returns the airdrop parameters for a network name.
func GetNetwork(name string) (*NetworkConfig, error) {
	n, ok := networks[ChainName(strings.ToLower(strings.TrimSpace(name)))]
	if !ok {
		return nil, fmt.Errorf("unsupported network %q. Supported: %s", name, GetSupportedNetworksString())
	}
	cp := *n
	return &cp, nil
}

// GetNetworkForChainId returns the airdrop parameters for a chain ID.
func GetNetworkForChainId(chainId ChainId) (*NetworkConfig, error) {
	name, ok := ChainIdToName[chainId]
	if !ok {
		return nil, fmt.Errorf("unsupported chain ID: %d", chainId)
	}
	return GetNetwork(string(name))
}

// GetSupportedNetworksString returns supported network names for CLI help
func GetSupportedNetworksString() string {
	names := make([]string, 0, len(networks))
	for name, n := range networks {
		names = append(names, fmt.Sprintf("%s (%d)", name, n.ChainID))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// HasPublishedRoot reports whether a non-zero root was set on chain.
func (n *NetworkConfig) HasPublishedRoot() bool {
	return n.PublishedRoot != (common.Hash{})
}

// SupplyCap returns AirdropSupply scaled to base units.
func (n *NetworkConfig) SupplyCap(decimals uint8) *uint256.Int {
	return SupplyCap(n.AirdropSupply, decimals)
}

// SupplyCap returns supply * 10^decimals.
func SupplyCap(supply uint64, decimals uint8) *uint256.Int {
	scale := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
	return new(uint256.Int).Mul(uint256.NewInt(supply), scale)
}

type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeFile   StoreType = "file"
	StoreTypeBadger StoreType = "badger"
	StoreTypeRedis  StoreType = "redis"
)

func (s StoreType) String() string {
	return string(s)
}

// SupportedStoreTypes lists the record store backends.
func SupportedStoreTypes() []StoreType {
	return []StoreType{StoreTypeMemory, StoreTypeFile, StoreTypeBadger, StoreTypeRedis}
}

// InputConfig describes the allocation CSV layout.
type InputConfig struct {
	Path            string `json:"path" yaml:"path"`
	SkipLines       int    `json:"skipLines" yaml:"skipLines"`
	NoHeader        bool   `json:"noHeader" yaml:"noHeader"`
	AddressColumn   string `json:"addressColumn" yaml:"addressColumn"`
	AmountColumn    string `json:"amountColumn" yaml:"amountColumn"`
	Aggregate       bool   `json:"aggregate" yaml:"aggregate"`
	SkipZeroAmounts bool   `json:"skipZeroAmounts" yaml:"skipZeroAmounts"`
}

type RedisConfig struct {
	Address   string `json:"address" yaml:"address"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	KeyPrefix string `json:"keyPrefix" yaml:"keyPrefix"`
}

// StoreConfig selects the record store. Path is the output directory for the
// file store and the database directory for badger.
type StoreConfig struct {
	Type  StoreType    `json:"type" yaml:"type"`
	Path  string       `json:"path" yaml:"path"`
	Redis *RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
}

// CampaignConfig is the YAML campaign file consumed by the generate command.
type CampaignConfig struct {
	BatchID            string      `json:"batchId" yaml:"batchId"`
	Network            string      `json:"network" yaml:"network"`
	HashFunction       string      `json:"hashFunction" yaml:"hashFunction"`
	LeafOrder          string      `json:"leafOrder" yaml:"leafOrder"`
	Decimals           *uint8      `json:"decimals,omitempty" yaml:"decimals,omitempty"`
	EnforceSupplyCap   bool        `json:"enforceSupplyCap" yaml:"enforceSupplyCap"`
	WhitelistBatchSize int         `json:"whitelistBatchSize" yaml:"whitelistBatchSize"`
	Workers            int         `json:"workers" yaml:"workers"`
	Input              InputConfig `json:"input" yaml:"input"`
	Store              StoreConfig `json:"store" yaml:"store"`
}

// NewCampaignConfig returns a config with defaults applied.
func NewCampaignConfig() *CampaignConfig {
	c := &CampaignConfig{}
	c.ApplyDefaults()
	return c
}

// LoadCampaignConfig reads and validates a YAML campaign file.
func LoadCampaignConfig(path string) (*CampaignConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read campaign config: %w", err)
	}
	return ParseCampaignConfig(data)
}

// ParseCampaignConfig decodes YAML, applies defaults and validates.
func ParseCampaignConfig(data []byte) (*CampaignConfig, error) {
	c := &CampaignConfig{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse campaign config: %w", err)
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *CampaignConfig) ApplyDefaults() {
	if c.HashFunction == "" {
		c.HashFunction = string(merkle.HashKeccak256)
	}
	if c.LeafOrder == "" {
		c.LeafOrder = "input"
	}
	if c.Decimals == nil {
		d := uint8(DefaultTokenDecimals)
		c.Decimals = &d
	}
	if c.WhitelistBatchSize == 0 {
		c.WhitelistBatchSize = DefaultWhitelistBatchSize
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.Input.AddressColumn == "" {
		c.Input.AddressColumn = "address"
	}
	if c.Input.AmountColumn == "" {
		c.Input.AmountColumn = "total_amount"
	}
	if c.Store.Type == "" {
		c.Store.Type = StoreTypeFile
	}
	if c.Store.Type == StoreTypeRedis && c.Store.Redis == nil {
		c.Store.Redis = &RedisConfig{Address: "localhost:6379"}
	}
}

// TokenDecimals returns the configured decimals.
func (c *CampaignConfig) TokenDecimals() uint8 {
	if c.Decimals == nil {
		return DefaultTokenDecimals
	}
	return *c.Decimals
}

// SupplyCap returns the network cap in base units, or nil when no cap applies.
func (c *CampaignConfig) SupplyCap() (*uint256.Int, error) {
	if !c.EnforceSupplyCap {
		return nil, nil
	}
	network, err := GetNetwork(c.Network)
	if err != nil {
		return nil, err
	}
	return network.SupplyCap(c.TokenDecimals()), nil
}

// Validate validates the campaign configuration
func (c *CampaignConfig) Validate() error {
	var allErrors field.ErrorList

	if c.Network != "" {
		if _, err := GetNetwork(c.Network); err != nil {
			allErrors = append(allErrors, field.NotSupported(field.NewPath("network"), c.Network, networkNames()))
		}
	}
	if c.EnforceSupplyCap && c.Network == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("network"), "network is required when enforceSupplyCap is set"))
	}
	if _, err := merkle.NewHasher(merkle.HashFunction(c.HashFunction)); err != nil {
		allErrors = append(allErrors, field.NotSupported(field.NewPath("hashFunction"), c.HashFunction, hashNames()))
	}
	if c.LeafOrder != "input" && c.LeafOrder != "sorted" {
		allErrors = append(allErrors, field.NotSupported(field.NewPath("leafOrder"), c.LeafOrder, []string{"input", "sorted"}))
	}
	if c.Decimals != nil && *c.Decimals > 36 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("decimals"), *c.Decimals, "decimals must be at most 36"))
	}
	if c.WhitelistBatchSize < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("whitelistBatchSize"), c.WhitelistBatchSize, "must be positive"))
	}
	if c.Workers < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("workers"), c.Workers, "must be positive"))
	}
	if c.Input.SkipLines < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("input", "skipLines"), c.Input.SkipLines, "must not be negative"))
	}

	storePath := field.NewPath("store")
	switch c.Store.Type {
	case StoreTypeMemory:
	case StoreTypeFile, StoreTypeBadger:
		if c.Store.Path == "" {
			allErrors = append(allErrors, field.Required(storePath.Child("path"), fmt.Sprintf("path is required for the %s store", c.Store.Type)))
		}
	case StoreTypeRedis:
		if c.Store.Redis == nil || c.Store.Redis.Address == "" {
			allErrors = append(allErrors, field.Required(storePath.Child("redis", "address"), "redis address is required"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(storePath.Child("type"), c.Store.Type, storeNames()))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

func networkNames() []string {
	names := make([]string, 0, len(networks))
	for name := range networks {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}

func hashNames() []string {
	var names []string
	for _, h := range merkle.SupportedHashFunctions() {
		names = append(names, string(h))
	}
	return names
}

func storeNames() []string {
	var names []string
	for _, s := range SupportedStoreTypes() {
		names = append(names, string(s))
	}
	return names
}
