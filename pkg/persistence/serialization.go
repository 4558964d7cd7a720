package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/pangolindex/merkledrop-go/pkg/types"
)

// MarshalRecord serializes an AirdropRecord to the JSON claim file format.
func MarshalRecord(record *types.AirdropRecord) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("cannot marshal nil AirdropRecord")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal AirdropRecord to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalRecord deserializes an AirdropRecord from JSON bytes.
func UnmarshalRecord(data []byte) (*types.AirdropRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var record types.AirdropRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to AirdropRecord: %w", err)
	}
	if record.Proof == nil {
		record.Proof = []string{}
	}

	return &record, nil
}

// MarshalManifest serializes a CampaignManifest to JSON bytes.
func MarshalManifest(manifest *types.CampaignManifest) ([]byte, error) {
	if manifest == nil {
		return nil, fmt.Errorf("cannot marshal nil CampaignManifest")
	}

	return json.Marshal(manifest)
}

// UnmarshalManifest deserializes a CampaignManifest from JSON bytes.
func UnmarshalManifest(data []byte) (*types.CampaignManifest, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var manifest types.CampaignManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to CampaignManifest: %w", err)
	}

	return &manifest, nil
}
