package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/FishIT-Mantle/fishit-sub000/internal/config"
	"github.com/FishIT-Mantle/fishit-sub000/internal/models"
	"github.com/FishIT-Mantle/fishit-sub000/internal/types"
)

const (
	imageGeneratorService = "image generator"
	maxImageBytes         = 20 << 20
)

// ImageGeneratorClient fish image generation service client
type ImageGeneratorClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewImageGeneratorClient Create a new image generator client
func NewImageGeneratorClient(cfg config.GeneratorConfig) *ImageGeneratorClient {
	return &ImageGeneratorClient{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:  cfg.APIKey,
		Client:  &http.Client{Timeout: cfg.Timeout()},
	}
}

// GenerateImageRequest body of POST /generate
type GenerateImageRequest struct {
	Tier     uint8  `json:"tier"`
	Zone     uint8  `json:"zone"`
	Seed     string `json:"seed"`
	TierName string `json:"tier_name"`
	ZoneName string `json:"zone_name"`
}

// Generate returns the raw image bytes for the fish
func (c *ImageGeneratorClient) Generate(ctx context.Context, tier, zone uint8, seed string) ([]byte, error) {
	payload, err := json.Marshal(GenerateImageRequest{
		Tier:     tier,
		Zone:     zone,
		Seed:     seed,
		TierName: models.TierName(tier),
		ZoneName: models.ZoneName(zone),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/png, image/*")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	image, err := doHTTP(c.Client, req, imageGeneratorService, maxImageBytes)
	if err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, &types.ExternalServiceError{Service: imageGeneratorService, Err: fmt.Errorf("empty image")}
	}
	return image, nil
}
