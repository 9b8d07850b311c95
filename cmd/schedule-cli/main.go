package main

import (
	"univer-schedule/cmd/schedule-cli/commands"
	"univer-schedule/lib/util/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
