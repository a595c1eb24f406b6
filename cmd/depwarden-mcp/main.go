package main

import (
	"fmt"
	"os"

	"github.com/depwarden/depwarden/pkg/mcp"
)

func main() {
	apiURL := os.Getenv("DEPWARDEN_API_URL")
	server := mcp.NewServer(apiURL)
	if err := server.Serve(); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server failed: %v\n", err)
		os.Exit(1)
	}
}
