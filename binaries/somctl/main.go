package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/scanomatic/som/common/log/hooks"
	"github.com/scanomatic/som/somctl"
)

// CLI for the Scan-o-Matic coordinator.
//	Supported commands: (see "-h" for all options)
//		status {server|scanners|jobs|queue}
//		submit <type> <content>
//		stop / remove <job id>
//		lock {acquire|release} <key>
//		watch <job id>
//	Global flags:
//		--addr [<host:port> of somd]
//		--log_level [<error|warn|info|debug> level and above should be logged]

func main() {
	log.AddHook(hooks.NewContextHook())

	cl, err := somctl.NewSimpleCLIClient()
	if err != nil {
		log.Fatal("Failed to create somctl client: ", err)
	}
	if err := cl.Exec(); err != nil {
		log.Fatal("Error running somctl ", err)
	}
}
