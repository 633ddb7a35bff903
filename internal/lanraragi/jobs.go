package lanraragi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// QueueDownload asks the server to download url and returns the job id.
func (c *Client) QueueDownload(ctx context.Context, sourceURL string) (int, error) {
	rel := &url.URL{Path: "api/download_url", RawQuery: url.Values{"url": {sourceURL}}.Encode()}

	var payload queueResponse
	if err := c.doJSON(ctx, "queueDownload", http.MethodPost, rel, &payload); err != nil {
		return 0, err
	}
	if !payload.Success || payload.Job <= 0 {
		msg := payload.Error
		if msg == "" {
			msg = "job was not queued"
		}
		return 0, wrapError("queueDownload", http.StatusOK, fmt.Errorf("%w: %s", ErrServer, msg))
	}
	return int(payload.Job), nil
}

// JobStatus polls a queued job.
func (c *Client) JobStatus(ctx context.Context, job int) (*JobStatus, error) {
	rel := &url.URL{Path: "api/minion/" + strconv.Itoa(job)}
	var payload JobStatus
	if err := c.doJSON(ctx, "jobStatus", http.MethodGet, rel, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
