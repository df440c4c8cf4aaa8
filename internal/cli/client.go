package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Srinivas26k/ZoomPollMaster/internal/core"
)

// client talks to the daemon's HTTP mirror.
type client struct {
	base   string
	secret string
	http   *http.Client
}

func newClient(deps *Dependencies) (*client, error) {
	secret := strings.TrimSpace(os.Getenv(core.SessionSecretEnv))
	if secret == "" {
		return nil, fmt.Errorf("%s is not set; it must match the running daemon's", core.SessionSecretEnv)
	}
	return &client{
		base:   "http://" + deps.Addr,
		secret: secret,
		// Triggers return as soon as the action is queued, but join drives
		// the client UI synchronously.
		http: &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

type mirrorResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *client) do(method, path string, body any) (*mirrorResponse, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	var mr mirrorResponse
	if err := json.Unmarshal(raw, &mr); err != nil {
		return nil, fmt.Errorf("unexpected reply (%s): %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	if !mr.Success {
		if mr.Message == "" {
			mr.Message = resp.Status
		}
		return &mr, errors.New(mr.Message)
	}
	return &mr, nil
}

func (c *client) post(path string, body any) error {
	mr, err := c.do(http.MethodPost, path, body)
	if err != nil {
		return err
	}
	if mr.Message != "" {
		fmt.Println(mr.Message)
	}
	return nil
}

// getRaw fetches path and returns the raw bytes of the response body, for
// commands that stream text rather than the JSON envelope.
func (c *client) getRaw(path string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon replied %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 16<<20))
}

// printData pretty-prints the data field of a GET reply.
func (c *client) printData(path string) error {
	mr, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if len(mr.Data) == 0 {
		if mr.Message != "" {
			fmt.Println(mr.Message)
		}
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, mr.Data, "", "  "); err != nil {
		fmt.Println(string(mr.Data))
		return nil
	}
	fmt.Println(buf.String())
	return nil
}
