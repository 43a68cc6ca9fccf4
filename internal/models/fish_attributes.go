package models

import "fmt"

var tierNames = []string{"Common", "Uncommon", "Rare", "Epic", "Legendary"}

var zoneNames = []string{"Shallow Reef", "Open Ocean", "Deep Trench", "Abyssal Rift"}

var baitNames = []string{"Worm", "Shrimp", "Squid", "Golden Lure"}

func lookupName(names []string, v uint8) string {
	if int(v) < len(names) {
		return names[v]
	}
	return fmt.Sprintf("Unknown(%d)", v)
}

// TierName display name of a rarity tier
func TierName(tier uint8) string { return lookupName(tierNames, tier) }

// ZoneName display name of a fishing zone
func ZoneName(zone uint8) string { return lookupName(zoneNames, zone) }

// BaitName display name of a bait type
func BaitName(bait uint8) string { return lookupName(baitNames, bait) }

// NFTAttribute one entry of the metadata attribute list
type NFTAttribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// NFTMetadata token metadata JSON pinned to storage
type NFTMetadata struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Image       string         `json:"image"`
	Attributes  []NFTAttribute `json:"attributes"`
}

// BuildMetadata renders the record attributes. image is the resolvable image URI.
func BuildMetadata(r *MintRecord, image string) NFTMetadata {
	tier := TierName(r.Tier)
	zone := ZoneName(r.Zone)
	return NFTMetadata{
		Name:        fmt.Sprintf("FishIT #%d %s Fish", r.ItemID, tier),
		Description: fmt.Sprintf("A %s fish caught in the %s with %s bait.", tier, zone, BaitName(r.BaitType)),
		Image:       image,
		Attributes: []NFTAttribute{
			{TraitType: "Tier", Value: tier},
			{TraitType: "Zone", Value: zone},
			{TraitType: "Bait", Value: BaitName(r.BaitType)},
			{TraitType: "Seed", Value: r.RandomSeed},
		},
	}
}
