package main

import (
	"context"

	"mtuciassist-backend/cmd/mtuci-cli/commands"
	"mtuciassist-backend/lib/telemetry"
)

func main() {
	telemetry.InitSlog(true)
	commands.ExecuteContext(context.Background())
}
