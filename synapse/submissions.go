package synapse

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
)

type submissionBundlePage struct {
	Results []SubmissionBundle `json:"results"`
	Total   int64              `json:"totalNumberOfResults"`
}

const bundlePageSize = 20

// GetSubmissionBundles fetches all submission bundles with given status.
//
// Bundles do not include submission files: use GetSubmission with a
// download directory before passing the submission to validation or
// scoring.
func (c *Client) GetSubmissionBundles(
	ctx context.Context, evaluationID int64, status Status,
) ([]SubmissionBundle, error) {
	var bundles []SubmissionBundle
	for offset := 0; ; {
		req, err := http.NewRequestWithContext(
			ctx, http.MethodGet,
			c.getURL(
				"/evaluation/%d/submission/bundle/all?status=%s&limit=%d&offset=%d",
				evaluationID, status, bundlePageSize, offset,
			),
			nil,
		)
		if err != nil {
			return nil, err
		}
		var page submissionBundlePage
		if _, err := c.doRequest(req, http.StatusOK, &page); err != nil {
			return nil, err
		}
		if len(page.Results) == 0 {
			break
		}
		bundles = append(bundles, page.Results...)
		offset += len(page.Results)
	}
	return bundles, nil
}

// GetSubmission fetches submission by ID.
//
// With non-empty downloadDir the submission file is downloaded there
// and FilePath is populated.
func (c *Client) GetSubmission(
	ctx context.Context, id int64, downloadDir string,
) (Submission, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.getURL("/evaluation/submission/%d", id), nil,
	)
	if err != nil {
		return Submission{}, err
	}
	var submission Submission
	if _, err := c.doRequest(req, http.StatusOK, &submission); err != nil {
		return Submission{}, err
	}
	if downloadDir != "" {
		filePath, err := c.downloadSubmissionFile(ctx, id, downloadDir)
		if err != nil {
			return Submission{}, fmt.Errorf("cannot download submission: %w", err)
		}
		submission.FilePath = filePath
	}
	return submission, nil
}

func (c *Client) downloadSubmissionFile(
	ctx context.Context, id int64, dir string,
) (string, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet,
		c.getURL("/evaluation/submission/%d/file", id), nil,
	)
	if err != nil {
		return "", err
	}
	resp, err := c.doRequest(req, http.StatusOK, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	name := attachmentName(resp)
	if name == "" {
		name = fmt.Sprintf("submission-%d", id)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	filePath := filepath.Join(dir, name)
	file, err := os.Create(filePath)
	if err != nil {
		return "", err
	}
	defer func() { _ = file.Close() }()
	if _, err := io.Copy(file, resp.Body); err != nil {
		return "", err
	}
	return filePath, nil
}

func attachmentName(resp *http.Response) string {
	disposition := resp.Header.Get("Content-Disposition")
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	// Attachment name comes from participants: keep base name only.
	return filepath.Base(filepath.FromSlash(params["filename"]))
}

// GetSubmissionStatus fetches status of submission by ID.
func (c *Client) GetSubmissionStatus(
	ctx context.Context, id int64,
) (SubmissionStatus, error) {
	var status SubmissionStatus
	err := c.RestGET(
		ctx, fmt.Sprintf("/evaluation/submission/%d/status", id), &status,
	)
	return status, err
}

// StoreSubmissionStatus stores submission status.
//
// Status etag should match the platform-side one: a stale etag fails
// with conflict and the submission is retried on the next run.
func (c *Client) StoreSubmissionStatus(
	ctx context.Context, status SubmissionStatus,
) (SubmissionStatus, error) {
	var stored SubmissionStatus
	err := c.RestPUT(
		ctx, fmt.Sprintf("/evaluation/submission/%d/status", status.ID),
		status, &stored,
	)
	return stored, err
}

// GetEvaluation fetches evaluation queue by ID.
func (c *Client) GetEvaluation(ctx context.Context, id int64) (Evaluation, error) {
	var evaluation Evaluation
	err := c.RestGET(ctx, fmt.Sprintf("/evaluation/%d", id), &evaluation)
	return evaluation, err
}

type queryPage struct {
	Headers []string `json:"headers"`
	Rows    []struct {
		Values []any `json:"values"`
	} `json:"rows"`
	Total int64 `json:"totalNumberOfResults"`
}

// QueryAll iterates a SQL-like query against an evaluation queue and
// returns all rows as per-row mappings.
//
// Pages are requested with given page size until an empty page; the
// platform may coerce the page size, so short pages only mean that
// iteration continues. Null values are omitted from row mappings.
func (c *Client) QueryAll(
	ctx context.Context, query string, pageSize int,
) ([]map[string]string, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	var rows []map[string]string
	for offset := 0; ; {
		req, err := http.NewRequestWithContext(
			ctx, http.MethodGet,
			c.getURL(
				"/evaluation/submission/query?query=%s&limit=%d&offset=%d",
				url.QueryEscape(query), pageSize, offset,
			),
			nil,
		)
		if err != nil {
			return nil, err
		}
		var page queryPage
		if _, err := c.doRequest(req, http.StatusOK, &page); err != nil {
			return nil, err
		}
		if len(page.Rows) == 0 {
			break
		}
		for _, row := range page.Rows {
			if len(row.Values) != len(page.Headers) {
				return nil, fmt.Errorf(
					"query row has %d values for %d headers",
					len(row.Values), len(page.Headers),
				)
			}
			mapped := make(map[string]string, len(page.Headers))
			for i, header := range page.Headers {
				if value := formatQueryValue(row.Values[i]); value != "" {
					mapped[header] = value
				}
			}
			rows = append(rows, mapped)
		}
		offset += len(page.Rows)
	}
	return rows, nil
}

func formatQueryValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		// JSON numbers decode as float64; queue IDs and submitter
		// IDs should stay integral.
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case bool:
		return fmt.Sprintf("%t", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
