package clients

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// fishNFTABI the subset of the FishNFT contract the minter touches
const fishNFTABI = `[
	{
		"type": "event",
		"name": "FishMinted",
		"anonymous": false,
		"inputs": [
			{"name": "owner", "type": "address", "indexed": true},
			{"name": "tokenId", "type": "uint256", "indexed": true},
			{"name": "tier", "type": "uint8", "indexed": false},
			{"name": "zone", "type": "uint8", "indexed": false},
			{"name": "bait", "type": "uint8", "indexed": false},
			{"name": "randomSeed", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "function",
		"name": "setTokenURI",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "tokenId", "type": "uint256"},
			{"name": "uri", "type": "string"}
		],
		"outputs": []
	}
]`

const (
	fishMintedEvent   = "FishMinted"
	setTokenURIMethod = "setTokenURI"
)

// FishNFTABI parses the contract ABI
func FishNFTABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(fishNFTABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse FishNFT ABI: %w", err)
	}
	return parsed, nil
}
