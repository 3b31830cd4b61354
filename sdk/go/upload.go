package driftbox

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// UploadOptions controls an upload.
type UploadOptions struct {
	// Filename is the name the file is shared under. Required.
	Filename string
	// Size is the payload size in bytes. Required; the signed upload
	// slot is issued against it.
	Size int64
	// ContentType is the MIME type. The server sniffs the payload when
	// empty.
	ContentType string
	// Retention is one of the Retention* labels. Unrecognized values
	// fall back to 30 days on the server.
	Retention string
}

// Upload runs the full three-step upload flow: request a signed upload
// slot, PUT the payload to the signed URL, then finalize the upload so
// the file becomes shareable. The reader is consumed exactly once.
func (c *Client) Upload(ctx context.Context, r io.Reader, opts UploadOptions) (*UploadResult, error) {
	if opts.Filename == "" {
		return nil, &ValidationError{Field: "Filename", Message: "is required"}
	}
	if opts.Size <= 0 {
		return nil, &ValidationError{Field: "Size", Message: "must be positive"}
	}

	slot, err := c.RequestUploadSlot(ctx, opts.Filename, opts.ContentType, opts.Size)
	if err != nil {
		return nil, err
	}

	if err := c.putPayload(ctx, slot.SignedURL, r, opts); err != nil {
		return nil, fmt.Errorf("payload transfer failed: %w", err)
	}

	return c.FinalizeUpload(ctx, slot, opts)
}

// RequestUploadSlot asks the server for a signed upload credential.
func (c *Client) RequestUploadSlot(ctx context.Context, filename, contentType string, size int64) (*UploadSlot, error) {
	resp, err := c.requestJSON(ctx, http.MethodPost, "/api/files/get-upload-url", map[string]any{
		"filename":    filename,
		"contentType": contentType,
		"filesize":    size,
	})
	if err != nil {
		return nil, err
	}

	var slot UploadSlot
	if err := decode(resp, &slot); err != nil {
		return nil, err
	}
	return &slot, nil
}

// putPayload streams the payload to the signed URL. The URL may point
// at the driftbox server (filesystem backend) or directly at an
// S3-compatible store, so no Authorization header is attached.
func (c *Client) putPayload(ctx context.Context, signedURL string, r io.Reader, opts UploadOptions) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signedURL, r)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.ContentLength = opts.Size
	if opts.ContentType != "" {
		req.Header.Set("Content-Type", opts.ContentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// FinalizeUpload publishes an uploaded object as a shareable file.
func (c *Client) FinalizeUpload(ctx context.Context, slot *UploadSlot, opts UploadOptions) (*UploadResult, error) {
	resp, err := c.requestJSON(ctx, http.MethodPost, "/api/files/finalize-upload", map[string]any{
		"fileId":         slot.FileID,
		"storagePath":    slot.StoragePath,
		"filename":       opts.Filename,
		"filesize":       opts.Size,
		"mimeType":       opts.ContentType,
		"deleteDuration": opts.Retention,
	})
	if err != nil {
		return nil, err
	}

	var result UploadResult
	if err := decode(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ShareURL returns the share link for a file ID, with the filename's
// extension appended so chat clients can classify the link.
func (c *Client) ShareURL(fileID, filename string) string {
	ext := ""
	if i := strings.LastIndex(filename, "."); i > 0 && i < len(filename)-1 {
		ext = filename[i:]
	}
	return c.baseURL + "/" + fileID + ext
}
