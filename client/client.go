// client/client.go
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"keep/internal/branch"
	"keep/internal/commit"
	"keep/internal/engine"
	"keep/internal/errors"
	"keep/internal/repo"
	"keep/internal/tree"
)

type Client struct {
	baseURL    string
	author     string
	httpClient *http.Client
}

func New(baseURL, author string) *Client {
	return &Client{
		baseURL: baseURL,
		author:  author,
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
	}
}

func (c *Client) do(method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Author", c.author)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr errors.Error
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Kind != "" {
			return &apiErr
		}
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	if result == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

// Repository operations

func (c *Client) CreateRepository(name, groupID string) (*repo.Repository, error) {
	var result repo.Repository
	err := c.do("POST", "/api/repos", map[string]string{
		"name":     name,
		"group_id": groupID,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) DeleteRepository(repoID string) error {
	return c.do("DELETE", "/api/repos/"+repoID, nil, nil)
}

// Branch operations

func (c *Client) CreateBranch(repoID, name, sourceBranch string) (*branch.Branch, error) {
	var result branch.Branch
	err := c.do("POST", fmt.Sprintf("/api/repos/%s/branches", repoID), map[string]string{
		"name":          name,
		"source_branch": sourceBranch,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListBranches(repoID, filter string) ([]*branch.Branch, error) {
	path := fmt.Sprintf("/api/repos/%s/branches", repoID)
	if filter != "" {
		path += "?filter=" + url.QueryEscape(filter)
	}

	var result []*branch.Branch
	if err := c.do("GET", path, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Commit operations

func (c *Client) CreateCommit(repoID, branchName, message string, changes []engine.ChangeInput, parents []string) (*commit.Commit, error) {
	var result commit.Commit
	err := c.do("POST", fmt.Sprintf("/api/repos/%s/branches/%s/commits", repoID, branchName), map[string]any{
		"message": message,
		"changes": changes,
		"parents": parents,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetCommit(repoID, id string) (*commit.Commit, error) {
	var result commit.Commit
	if err := c.do("GET", fmt.Sprintf("/api/repos/%s/commits/%s", repoID, id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Log(repoID, branchName string, limit int) ([]*commit.Commit, error) {
	path := fmt.Sprintf("/api/repos/%s/branches/%s/log?limit=%d", repoID, branchName, limit)

	var result []*commit.Commit
	if err := c.do("GET", path, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Read operations

func (c *Client) GetTree(repoID, branchName, prefix string) ([]tree.Node, error) {
	path := fmt.Sprintf("/api/repos/%s/branches/%s/tree?prefix=%s", repoID, branchName, url.QueryEscape(prefix))

	var result []tree.Node
	if err := c.do("GET", path, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) GetFile(repoID, branchName, filePath string) (*tree.FileMetadata, error) {
	path := fmt.Sprintf("/api/repos/%s/branches/%s/file?path=%s", repoID, branchName, url.QueryEscape(filePath))

	var result tree.FileMetadata
	if err := c.do("GET", path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetReadme(repoID, branchName, folder string) ([]byte, error) {
	path := fmt.Sprintf("/api/repos/%s/branches/%s/readme?folder=%s", repoID, branchName, url.QueryEscape(folder))

	req, err := http.NewRequest("GET", c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Author", c.author)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
