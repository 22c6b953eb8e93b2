package settings

import "fmt"

const CmdName = "xprof"

var (
	SockPath       = fmt.Sprintf("/tmp/%s.sock", CmdName)
	ReportFileName = fmt.Sprintf("%s-report.json", CmdName)
)
