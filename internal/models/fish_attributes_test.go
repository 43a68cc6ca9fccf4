package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildMetadata(t *testing.T) {
	rec := &MintRecord{ItemID: 42, Tier: 3, Zone: 1, BaitType: 0, RandomSeed: "123456789"}

	md := BuildMetadata(rec, "ipfs://QmImage")

	assert.Equal(t, "FishIT #42 Epic Fish", md.Name)
	assert.Equal(t, "ipfs://QmImage", md.Image)
	assert.Equal(t, []NFTAttribute{
		{TraitType: "Tier", Value: "Epic"},
		{TraitType: "Zone", Value: "Open Ocean"},
		{TraitType: "Bait", Value: "Worm"},
		{TraitType: "Seed", Value: "123456789"},
	}, md.Attributes)
	assert.Contains(t, md.Description, "Open Ocean")
}

func TestUnknownAttributeNames(t *testing.T) {
	assert.Equal(t, "Unknown(9)", TierName(9))
	assert.Equal(t, "Abyssal Rift", ZoneName(3))
	assert.Equal(t, "Unknown(4)", BaitName(4))
}
