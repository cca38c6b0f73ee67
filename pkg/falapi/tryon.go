package falapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TryOnRequest is the payload for the FASHN try-on model. The parameter block
// is fixed: auto category detection, quality mode, one sample, deterministic
// seed, PNG output.
type TryOnRequest struct {
	ModelImage       string `json:"model_image"`
	GarmentImage     string `json:"garment_image"`
	Category         string `json:"category"`
	Mode             string `json:"mode"`
	GarmentPhotoType string `json:"garment_photo_type"`
	NumSamples       int    `json:"num_samples"`
	Seed             int    `json:"seed"`
	OutputFormat     string `json:"output_format"`
}

// SubmitResponse is returned immediately after queueing the job.
type SubmitResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"` // e.g. "IN_QUEUE"
}

// StatusResponse is returned by the queue status endpoint.
type StatusResponse struct {
	Status        string       `json:"status"` // IN_QUEUE, IN_PROGRESS, COMPLETED, FAILED
	QueuePosition *int         `json:"queue_position,omitempty"`
	Error         *ErrorDetail `json:"error,omitempty"`
}

type ErrorDetail struct {
	Message string `json:"message"`
}

// TryOnResponse is the final result payload.
type TryOnResponse struct {
	Images []ImageInfo `json:"images"`
	Seed   uint64      `json:"seed"`
}

type ImageInfo struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// TryOnResult carries every URL involved in one generation; the input URLs
// are kept for the audit trail.
type TryOnResult struct {
	PersonURL  string
	GarmentURL string
	ResultURL  string
}

// SubmitTryOnRequest queues the job and returns the request id.
func (c *Client) SubmitTryOnRequest(personURL, garmentURL string) (string, error) {
	payload := TryOnRequest{
		ModelImage:       personURL,
		GarmentImage:     garmentURL,
		Category:         "auto",
		Mode:             "quality",
		GarmentPhotoType: "auto",
		NumSamples:       1,
		Seed:             42,
		OutputFormat:     "png",
	}

	respBody, err := c.doPostRequest(c.tryOnEndpoint, payload)
	if err != nil {
		return "", fmt.Errorf("try-on submission failed: %w", err)
	}

	var response SubmitResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("failed to unmarshal submission response: %w, body: %s", err, string(respBody))
	}
	if response.RequestID == "" {
		return "", fmt.Errorf("request_id not found in submission response: %s", string(respBody))
	}

	return response.RequestID, nil
}

// GetRequestStatus polls the status endpoint once.
func (c *Client) GetRequestStatus(requestID string) (*StatusResponse, error) {
	statusURL := fmt.Sprintf("%s/requests/%s/status", strings.TrimSuffix(c.tryOnEndpoint, "/"), requestID)
	body, err := c.doGetRequest(statusURL)
	if err != nil {
		return nil, fmt.Errorf("status check failed: %w", err)
	}

	var response StatusResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status response: %w, body: %s", err, string(body))
	}
	return &response, nil
}

// GetTryOnResult fetches the final result after completion.
func (c *Client) GetTryOnResult(requestID string) (*TryOnResponse, error) {
	resultURL := fmt.Sprintf("%s/requests/%s", strings.TrimSuffix(c.tryOnEndpoint, "/"), requestID)
	body, err := c.doGetRequest(resultURL)
	if err != nil {
		return nil, fmt.Errorf("result fetch failed: %w", err)
	}

	var response TryOnResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal try-on result: %w, body: %s", err, string(body))
	}
	return &response, nil
}

// PollForResult polls the status until the job completes or fails. The
// context bounds the overall wait.
func (c *Client) PollForResult(ctx context.Context, requestID string, pollInterval time.Duration) (*TryOnResponse, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("polling timed out for request %s: %w", requestID, ctx.Err())
		case <-ticker.C:
			statusResp, err := c.GetRequestStatus(requestID)
			if err != nil {
				return nil, fmt.Errorf("error polling status for %s: %w", requestID, err)
			}

			c.logger.Debug("Polling status for request", zap.String("request_id", requestID), zap.String("status", statusResp.Status))

			switch statusResp.Status {
			case "COMPLETED":
				return c.GetTryOnResult(requestID)
			case "FAILED":
				if statusResp.Error != nil {
					return nil, fmt.Errorf("generation failed: %s (request_id: %s)", statusResp.Error.Message, requestID)
				}
				return nil, fmt.Errorf("generation failed (request_id: %s)", requestID)
			case "IN_PROGRESS", "IN_QUEUE":
				continue
			default:
				return nil, fmt.Errorf("unknown status %q for request %s", statusResp.Status, requestID)
			}
		}
	}
}

// TryOn runs the whole flow: upload both images, queue the job, wait for the
// provider, and require at least one output image. Every failure mode
// collapses into one error; callers treat them identically.
func (c *Client) TryOn(ctx context.Context, personImagePath, garmentImagePath string) (*TryOnResult, error) {
	c.logger.Info("Starting virtual try-on",
		zap.String("person", personImagePath), zap.String("garment", garmentImagePath))

	personURL, err := c.UploadFile(personImagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to upload person image: %w", err)
	}

	garmentURL, err := c.UploadFile(garmentImagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to upload garment image: %w", err)
	}

	requestID, err := c.SubmitTryOnRequest(personURL, garmentURL)
	if err != nil {
		return nil, err
	}
	c.logger.Info("Submitted try-on request", zap.String("request_id", requestID))

	result, err := c.PollForResult(ctx, requestID, 3*time.Second)
	if err != nil {
		return nil, err
	}

	if len(result.Images) == 0 || result.Images[0].URL == "" {
		return nil, fmt.Errorf("no images in try-on response (request_id: %s)", requestID)
	}

	resultURL := result.Images[0].URL
	c.logger.Info("Virtual try-on completed", zap.String("request_id", requestID), zap.String("result_url", resultURL))

	return &TryOnResult{
		PersonURL:  personURL,
		GarmentURL: garmentURL,
		ResultURL:  resultURL,
	}, nil
}
