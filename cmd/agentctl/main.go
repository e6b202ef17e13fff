package main

import "github.com/GregMSThompson/agent-bridge/internal/cli"

func main() {
	cli.Execute()
}
