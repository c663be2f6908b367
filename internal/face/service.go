package face

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Service calls the face recognition microservice.
type Service struct {
	BaseURL string
	HTTP    *http.Client
}

// NewService creates a client with configurable timeout.
func NewService(baseURL string) *Service {
	return &Service{
		BaseURL: baseURL,
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // face processing can take time
		},
	}
}

type searchMatch struct {
	UserID     string  `json:"user_id"`
	FaceID     string  `json:"face_id"`
	Similarity float64 `json:"similarity"`
}

// Index enrolls the face under externalID.
func (s *Service) Index(ctx context.Context, externalID string, image []byte) (string, error) {
	var out struct {
		UserID        string `json:"user_id"`
		FaceID        string `json:"face_id"`
		Success       bool   `json:"success"`
		FacesDetected int    `json:"faces_detected"`
		Message       string `json:"message"`
	}
	err := s.post(ctx, "/enroll", map[string]any{
		"user_id":   externalID,
		"image_b64": base64.StdEncoding.EncodeToString(image),
	}, &out)
	if err != nil {
		return "", err
	}
	if out.FacesDetected == 0 {
		return "", ErrNoFace
	}
	if !out.Success {
		return "", fmt.Errorf("face service enroll failed: %s", out.Message)
	}
	if out.FaceID == "" {
		return externalID, nil
	}
	return out.FaceID, nil
}

// Search performs 1:N identification and returns the top hit.
func (s *Service) Search(ctx context.Context, image []byte) (*Match, error) {
	var out struct {
		Matches       []searchMatch `json:"matches"`
		FacesDetected int           `json:"faces_detected"`
	}
	err := s.post(ctx, "/search", map[string]any{
		"image_b64": base64.StdEncoding.EncodeToString(image),
		"top_k":     1,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.FacesDetected == 0 {
		return nil, ErrNoFace
	}
	if len(out.Matches) == 0 {
		return nil, nil
	}
	best := out.Matches[0]
	// the service reports cosine similarity in [0, 1]
	return &Match{FaceID: best.FaceID, ExternalID: best.UserID, Similarity: best.Similarity * 100}, nil
}

// Remove deletes an enrolled face.
func (s *Service) Remove(ctx context.Context, faceID string) error {
	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := s.post(ctx, "/delete", map[string]any{"face_id": faceID}, &out); err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("face service delete failed: %s", out.Message)
	}
	return nil
}

// Health checks if the face service is available.
func (s *Service) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := s.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service unavailable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}
	return nil
}

func (s *Service) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("face service error %s: %s", resp.Status, string(bodyBytes))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
