package main

import (
	"context"
	"seiassist/cmd/sei-cli/commands"
	"seiassist/lib/serviceutil"
	"seiassist/lib/telemetry"
)

func main() {
	telemetry.SetupFromEnv(context.Background(), "sei-cli")
	telemetry.InitSlog(true)
	commands.ExecuteContext(serviceutil.SignalContext())
}
