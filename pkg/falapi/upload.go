package falapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// The storage API hands out a signed upload URL; the file bytes are PUT there
// and the returned file URL is what the model endpoints accept as input.

type uploadInitiateRequest struct {
	ContentType string `json:"content_type"`
	FileName    string `json:"file_name"`
}

type uploadInitiateResponse struct {
	UploadURL string `json:"upload_url"`
	FileURL   string `json:"file_url"`
}

// UploadFile pushes a local image to fal storage and returns its hosted URL.
func (c *Client) UploadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", path, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	initiateURL := c.storageURL + "/storage/upload/initiate"
	respBody, err := c.doPostRequest(initiateURL, uploadInitiateRequest{
		ContentType: contentType,
		FileName:    filepath.Base(path),
	})
	if err != nil {
		return "", fmt.Errorf("upload initiate failed: %w", err)
	}

	var initiate uploadInitiateResponse
	if err := json.Unmarshal(respBody, &initiate); err != nil {
		return "", fmt.Errorf("failed to unmarshal initiate response: %w, body: %s", err, string(respBody))
	}
	if initiate.UploadURL == "" || initiate.FileURL == "" {
		return "", fmt.Errorf("incomplete initiate response: %s", string(respBody))
	}

	req, err := http.NewRequest("PUT", initiate.UploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Warn("file upload failed", zap.Int("status", resp.StatusCode), zap.String("body", string(body)))
		return "", fmt.Errorf("file upload failed with status %d", resp.StatusCode)
	}

	c.logger.Info("uploaded file", zap.String("path", path), zap.String("url", initiate.FileURL))
	return initiate.FileURL, nil
}
