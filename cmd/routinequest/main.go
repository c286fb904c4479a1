// routinequest: habit routine backend
//
// Serves routines and their ordered steps over a REST API for the app and
// over MCP (stdio) for AI assistants, both on one SQLite database.
//
// Usage:
//
//	routinequest serve                  # MCP server (stdio transport)
//	routinequest http                   # REST API server
//	routinequest user create --email E  # Register a user
//	routinequest token --email E        # Issue an access token
package main

import (
	"fmt"
	"os"

	mcpserver "github.com/HendryAvila/routine-quest/internal/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "http":
		err = runHTTP(os.Args[2:])
	case "user":
		err = runUser(os.Args[2:], os.Stdout)
	case "token":
		err = runToken(os.Args[2:], os.Stdout)
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("routinequest v%s\n", mcpserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `routinequest v%s - habit routine backend

Usage:
  routinequest serve [--config FILE]
      Start the MCP server (stdio transport) for the user in auth.token
  routinequest http [--config FILE]
      Start the REST API server on http.addr
  routinequest user create --email EMAIL [--name NAME] [--tier free|basic|pro|team]
      Register a user
  routinequest token --email EMAIL [--ttl 192h]
      Issue an access token for a user
  routinequest version

Configuration:
  %s, overridden by ROUTINEQUEST_* environment variables
  (e.g. ROUTINEQUEST_AUTH_SECRET, ROUTINEQUEST_HTTP_ADDR).

  Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "routinequest": {
        "command": "routinequest",
        "args": ["serve"],
        "env": {
          "ROUTINEQUEST_AUTH_SECRET": "...",
          "ROUTINEQUEST_AUTH_TOKEN": "..."
        }
      }
    }
  }
`, mcpserver.Version, configFileHint())
}
