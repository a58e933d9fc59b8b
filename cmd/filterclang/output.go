package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Environment variables git filter-branch exports to its filters.
const (
	envCommit    = "GIT_COMMIT"
	envIndexFile = "GIT_INDEX_FILE"
)

// outputJSON writes a value as formatted JSON to w.
func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// requireEnv returns the value of a variable filter-branch should have set.
func requireEnv(name string) (string, error) {
	v := os.Getenv(name)
	if v == "" {
		return "", fmt.Errorf("%s is not set; run this from git filter-branch", name)
	}
	return v, nil
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status  string `json:"status"`
	Path    string `json:"path,omitempty"`
	Removed int64  `json:"removed,omitempty"`
}
