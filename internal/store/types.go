package store

import (
	"fmt"
	"strings"
)

// Identity describes the IPFS node behind the RPC endpoint.
type Identity struct {
	ID              string   `json:"ID"`
	PublicKey       string   `json:"PublicKey"`
	Addresses       []string `json:"Addresses"`
	AgentVersion    string   `json:"AgentVersion"`
	ProtocolVersion string   `json:"ProtocolVersion"`
}

// Node is the metadata of a single object in the store.
type Node struct {
	ID          string
	IsDirectory bool
	Size        int64
	Links       []Link
}

// Link is a named child of a directory node.
type Link struct {
	Name        string
	ID          string
	Size        int64
	IsDirectory bool
}

// APIError is an error reported by the RPC API itself.
type APIError struct {
	Message    string `json:"Message"`
	Code       int    `json:"Code"`
	Type       string `json:"Type"`
	StatusCode int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ipfs api: %s (status %d)", e.Message, e.StatusCode)
}

// file/ls wire format.
type lsResponse struct {
	Arguments map[string]string   `json:"Arguments"`
	Objects   map[string]lsObject `json:"Objects"`
}

type lsObject struct {
	Hash  string   `json:"Hash"`
	Size  uint64   `json:"Size"`
	Type  string   `json:"Type"`
	Links []lsLink `json:"Links"`
}

type lsLink struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size uint64 `json:"Size"`
	Type string `json:"Type"`
}

// pin/ls wire format.
type pinResponse struct {
	Keys map[string]struct {
		Type string `json:"Type"`
	} `json:"Keys"`
}

func isDirectoryType(t string) bool {
	return strings.EqualFold(t, "directory") || strings.EqualFold(t, "hamtshard")
}

func (o lsObject) toNode() *Node {
	n := &Node{
		ID:          o.Hash,
		IsDirectory: isDirectoryType(o.Type),
		Size:        int64(o.Size),
		Links:       make([]Link, 0, len(o.Links)),
	}
	for _, l := range o.Links {
		n.Links = append(n.Links, Link{
			Name:        l.Name,
			ID:          l.Hash,
			Size:        int64(l.Size),
			IsDirectory: isDirectoryType(l.Type),
		})
	}
	return n
}
