package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/kgashok/PlumConfusedOpensource/errors"
	"github.com/kgashok/PlumConfusedOpensource/models"
)

// UploadMedia pushes an attachment to the media endpoint and returns the
// media id to thread into a subsequent CreateTweet. Upload runs before the
// main call; when it fails the create must not be attempted.
func (c *Client) UploadMedia(ctx context.Context, tok *models.AccessToken, filename string, data []byte) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", errors.WrapTimeout(errors.ErrUpstreamAPI, err)
	}

	target := c.uploadBaseURL() + "/1.1/media/upload.json"

	// Multipart bodies are excluded from the signature base string.
	header, err := c.Signer.AuthorizationHeader(http.MethodPost, target, nil, tok.Token, tok.TokenSecret)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("media", filename)
	if err != nil {
		return "", fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("build multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, &buf)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", header)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", errors.WrapTimeout(errors.ErrUpstreamAPI, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.WrapTimeout(errors.ErrUpstreamAPI, err)
	}
	if err := c.classify(resp, raw); err != nil {
		return "", err
	}

	var out struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", errors.WrapUpstream(errors.ErrUpstreamAPI, resp.StatusCode, "malformed upload response")
	}
	if out.MediaIDString == "" {
		return "", errors.WrapUpstream(errors.ErrUpstreamAPI, resp.StatusCode, "upload response missing media id")
	}
	return out.MediaIDString, nil
}
