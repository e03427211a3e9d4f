// Command mcp-server serves database tools to MCP clients.
package main

import (
	"context"
	"os"

	"github.com/umarmk/mcp-server/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
