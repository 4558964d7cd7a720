package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetNetwork(t *testing.T) {
	songbird, err := GetNetwork("Songbird")
	require.NoError(t, err)
	assert.Equal(t, ChainId_Songbird, songbird.ChainID)
	assert.Equal(t, uint64(2_300_000), songbird.AirdropSupply)
	assert.True(t, songbird.HasPublishedRoot())
	assert.Equal(t, "0xa99168d65703044b47554952229de9e52fe8a5486e095ea150c0501b29de0a32", songbird.PublishedRoot.Hex())

	flare, err := GetNetwork("flare")
	require.NoError(t, err)
	assert.False(t, flare.HasPublishedRoot())

	fuji, err := GetNetworkForChainId(ChainId_AvalancheFuji)
	require.NoError(t, err)
	assert.Equal(t, ChainName_AvalancheFuji, fuji.Name)
	assert.False(t, fuji.HasPublishedRoot())

	_, err = GetNetwork("ropsten")
	require.Error(t, err)
	_, err = GetNetworkForChainId(5)
	require.Error(t, err)

	// Returned configs are copies
	songbird.AirdropSupply = 1
	again, err := GetNetwork("songbird")
	require.NoError(t, err)
	assert.Equal(t, uint64(2_300_000), again.AirdropSupply)
}

func TestChainMapsAreConsistent(t *testing.T) {
	require.Equal(t, len(ChainIdToName), len(ChainNameToId))
	for id, name := range ChainIdToName {
		assert.Equal(t, id, ChainNameToId[name])
		n, err := GetNetwork(string(name))
		require.NoError(t, err)
		assert.Equal(t, id, n.ChainID)
	}
}

func TestSupplyCap(t *testing.T) {
	expected, err := uint256.FromDecimal("2300000000000000000000000")
	require.NoError(t, err)
	require.Equal(t, expected, SupplyCap(2_300_000, 18))

	require.Equal(t, uint256.NewInt(5), SupplyCap(5, 0))
	require.True(t, SupplyCap(0, 18).IsZero())
}

func TestParseCampaignConfig(t *testing.T) {
	data := []byte(`
batchId: songbird-2022
network: songbird
leafOrder: input
enforceSupplyCap: true
input:
  path: addresses.csv
  skipLines: 4
  aggregate: true
store:
  type: badger
  path: /var/lib/merkledrop
`)
	c, err := ParseCampaignConfig(data)
	require.NoError(t, err)

	assert.Equal(t, "songbird-2022", c.BatchID)
	assert.Equal(t, "keccak256", c.HashFunction)
	assert.Equal(t, uint8(18), c.TokenDecimals())
	assert.Equal(t, DefaultWhitelistBatchSize, c.WhitelistBatchSize)
	assert.Equal(t, DefaultWorkers, c.Workers)
	assert.Equal(t, 4, c.Input.SkipLines)
	assert.Equal(t, "address", c.Input.AddressColumn)
	assert.Equal(t, "total_amount", c.Input.AmountColumn)
	assert.True(t, c.Input.Aggregate)
	assert.Equal(t, StoreTypeBadger, c.Store.Type)

	supplyCap, err := c.SupplyCap()
	require.NoError(t, err)
	require.Equal(t, SupplyCap(2_300_000, 18), supplyCap)
}

func TestCampaignConfigDefaults(t *testing.T) {
	c := NewCampaignConfig()
	assert.Equal(t, StoreTypeFile, c.Store.Type)
	assert.Equal(t, "input", c.LeafOrder)

	supplyCap, err := c.SupplyCap()
	require.NoError(t, err)
	assert.Nil(t, supplyCap)

	redis := &CampaignConfig{Store: StoreConfig{Type: StoreTypeRedis}}
	redis.ApplyDefaults()
	require.NotNil(t, redis.Store.Redis)
	assert.Equal(t, "localhost:6379", redis.Store.Redis.Address)
	require.NoError(t, redis.Validate())
}

func TestCampaignConfigValidate(t *testing.T) {
	zeroDecimals := uint8(0)
	tooManyDecimals := uint8(40)

	testCases := []struct {
		name    string
		mutate  func(c *CampaignConfig)
		wantErr string
	}{
		{"Valid memory store", func(c *CampaignConfig) { c.Store.Type = StoreTypeMemory }, ""},
		{"Zero decimals", func(c *CampaignConfig) { c.Decimals = &zeroDecimals }, ""},
		{"Unknown network", func(c *CampaignConfig) { c.Network = "ropsten" }, "network"},
		{"Cap without network", func(c *CampaignConfig) { c.EnforceSupplyCap = true }, "network"},
		{"Unknown hash", func(c *CampaignConfig) { c.HashFunction = "md5" }, "hashFunction"},
		{"Unknown leaf order", func(c *CampaignConfig) { c.LeafOrder = "random" }, "leafOrder"},
		{"Too many decimals", func(c *CampaignConfig) { c.Decimals = &tooManyDecimals }, "decimals"},
		{"Negative skip lines", func(c *CampaignConfig) { c.Input.SkipLines = -1 }, "input.skipLines"},
		{"Negative workers", func(c *CampaignConfig) { c.Workers = -2 }, "workers"},
		{"File store without path", func(c *CampaignConfig) { c.Store.Path = "" }, "store.path"},
		{"Redis without address", func(c *CampaignConfig) {
			c.Store.Type = StoreTypeRedis
			c.Store.Redis = &RedisConfig{}
		}, "store.redis.address"},
		{"Unknown store", func(c *CampaignConfig) { c.Store.Type = "s3" }, "store.type"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCampaignConfig()
			c.Store.Path = t.TempDir()
			tc.mutate(c)

			err := c.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadCampaignConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campaign.yaml")
	require.NoError(t, os.WriteFile(path, []byte("network: fuji\nhashFunction: blake2b\nstore:\n  type: memory\n"), 0o600))

	c, err := LoadCampaignConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "fuji", c.Network)
	assert.Equal(t, "blake2b", c.HashFunction)

	_, err = LoadCampaignConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("network: [unterminated"), 0o600))
	_, err = LoadCampaignConfig(path)
	require.Error(t, err)
}
