package driftbox

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Info fetches the public metadata of a file.
func (c *Client) Info(ctx context.Context, fileID string) (*FileInfo, error) {
	if err := validateFileID(fileID); err != nil {
		return nil, err
	}

	resp, err := c.requestJSON(ctx, http.MethodGet, "/api/files/"+fileID, nil)
	if err != nil {
		return nil, err
	}

	var info FileInfo
	if err := decode(resp, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Download fetches a file's content. The returned ReadCloser must be
// closed by the caller. Storage-backed downloads follow the server's
// redirect to the signed URL transparently.
func (c *Client) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	if err := validateFileID(fileID); err != nil {
		return nil, err
	}

	resp, err := c.request(ctx, http.MethodGet, "/api/files/"+fileID+"/download", nil, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, apiError(resp)
	}
	return resp.Body, nil
}

// DownloadTo streams a file's content into w and returns the number of
// bytes written.
func (c *Client) DownloadTo(ctx context.Context, fileID string, w io.Writer) (int64, error) {
	body, err := c.Download(ctx, fileID)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	n, err := io.Copy(w, body)
	if err != nil {
		return n, fmt.Errorf("download interrupted: %w", err)
	}
	return n, nil
}

// ListFiles returns the files owned by the authenticated account.
func (c *Client) ListFiles(ctx context.Context) ([]UserFile, error) {
	resp, err := c.requestJSON(ctx, http.MethodGet, "/api/user/files", nil)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Files []UserFile `json:"files"`
	}
	if err := decode(resp, &wire); err != nil {
		return nil, err
	}
	return wire.Files, nil
}

// DeleteFile removes a file the authenticated account owns, along with
// its stored object.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	if err := validateFileID(fileID); err != nil {
		return err
	}

	resp, err := c.requestJSON(ctx, http.MethodDelete, "/api/files/"+fileID, nil)
	if err != nil {
		return err
	}
	return decode(resp, nil)
}

// Stats returns the server's public aggregate counters.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	resp, err := c.requestJSON(ctx, http.MethodGet, "/api/stats", nil)
	if err != nil {
		return nil, err
	}

	var stats Stats
	if err := decode(resp, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// BanStatus reports whether the caller's IP is currently banned.
func (c *Client) BanStatus(ctx context.Context) (*BanStatus, error) {
	resp, err := c.requestJSON(ctx, http.MethodGet, "/api/ban-status", nil)
	if err != nil {
		return nil, err
	}

	var status BanStatus
	if err := decode(resp, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
