package session

import (
	"fmt"
	"strings"
)

// initCommand carries the credential; it must be the first command on a
// fresh connection.
func initCommand(password string) string {
	return "init password=" + password
}

// syncCommands is the fixed synchronization sequence: server identity,
// full buffer list, per-buffer line history, full nicklist, current
// hotlist, and finally "sync" to switch the relay into push-update
// mode. The trailing empty entry yields the terminating newline.
func syncCommands(lines int) []string {
	return []string{
		"(id) info version",

		"(listbuffers) hdata buffer:gui_buffers(*) number,full_name,short_name," +
			"type,nicklist,title,local_variables,notify,hidden,highlight",

		fmt.Sprintf("(listlines) hdata buffer:gui_buffers(*)/own_lines/last_line(-%d)/"+
			"data date,displayed,prefix,message,notify,hidden,highlight,tags_array", lines),

		"(nicklist) nicklist",

		"(hotlist) hdata hotlist:gui_hotlist(*) buffer, count",

		"sync",

		"",
	}
}

// pingCommands is the keepalive pair: a hotlist refresh and a ping.
func pingCommands() []string {
	return []string{
		"(hotlist) hdata hotlist:gui_hotlist(*) buffer, count",

		"(ping) ping",

		"",
	}
}

func joinCommands(cmds []string) string {
	return strings.Join(cmds, "\n")
}
