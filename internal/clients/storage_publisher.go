package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/FishIT-Mantle/fishit-sub000/internal/config"
	"github.com/FishIT-Mantle/fishit-sub000/internal/models"
	"github.com/FishIT-Mantle/fishit-sub000/internal/types"
)

const (
	pinataService   = "pinata"
	pinResponseSize = 64 << 10
)

// PinataPublisher pins images and metadata JSON through the Pinata API
type PinataPublisher struct {
	BaseURL string
	JWT     string
	Client  *http.Client
}

// NewPinataPublisher Create a new Pinata client
func NewPinataPublisher(cfg config.StorageConfig) *PinataPublisher {
	return &PinataPublisher{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		JWT:     cfg.JWT,
		Client:  &http.Client{Timeout: cfg.Timeout()},
	}
}

// PinResponse response of both pinning endpoints
type PinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

type pinataMetadata struct {
	Name string `json:"name"`
}

type pinJSONRequest struct {
	PinataContent  models.NFTMetadata `json:"pinataContent"`
	PinataMetadata pinataMetadata     `json:"pinataMetadata"`
}

// Publish pins the image, points the metadata at it and pins the metadata.
// A failure of either step fails the whole call.
func (p *PinataPublisher) Publish(ctx context.Context, image []byte, metadata models.NFTMetadata) (models.StorageRefs, error) {
	imageCID, err := p.pinFile(ctx, image, metadata.Name)
	if err != nil {
		return models.StorageRefs{}, fmt.Errorf("pin image: %w", err)
	}

	metadata.Image = "ipfs://" + imageCID
	metadataCID, err := p.pinJSON(ctx, metadata)
	if err != nil {
		return models.StorageRefs{}, fmt.Errorf("pin metadata: %w", err)
	}

	return models.StorageRefs{
		ImageCID:    imageCID,
		MetadataCID: metadataCID,
		MetadataURI: "ipfs://" + metadataCID,
	}, nil
}

func (p *PinataPublisher) pinFile(ctx context.Context, image []byte, name string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", fileName(name))
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", fmt.Errorf("failed to write form file: %w", err)
	}
	meta, err := json.Marshal(pinataMetadata{Name: name})
	if err != nil {
		return "", err
	}
	if err := writer.WriteField("pinataMetadata", string(meta)); err != nil {
		return "", fmt.Errorf("failed to write pinata metadata: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/pinning/pinFileToIPFS", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return p.send(req)
}

func (p *PinataPublisher) pinJSON(ctx context.Context, metadata models.NFTMetadata) (string, error) {
	payload, err := json.Marshal(pinJSONRequest{
		PinataContent:  metadata,
		PinataMetadata: pinataMetadata{Name: metadata.Name + " metadata"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/pinning/pinJSONToIPFS", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	return p.send(req)
}

func (p *PinataPublisher) send(req *http.Request) (string, error) {
	req.Header.Set("Authorization", "Bearer "+p.JWT)

	body, err := doHTTP(p.Client, req, pinataService, pinResponseSize)
	if err != nil {
		return "", err
	}

	var pin PinResponse
	if err := json.Unmarshal(body, &pin); err != nil {
		return "", &types.ExternalServiceError{Service: pinataService, Err: fmt.Errorf("decode response: %w", err)}
	}
	if pin.IpfsHash == "" {
		return "", &types.ExternalServiceError{Service: pinataService, Err: fmt.Errorf("response without IpfsHash")}
	}
	return pin.IpfsHash, nil
}

// fileName turns "FishIT #42 Epic Fish" into "fishit-42-epic-fish.png"
func fileName(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if out == "" {
		out = "fish"
	}
	return out + ".png"
}
