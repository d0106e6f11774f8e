package relay

import "strings"

// Legacy game color codes mapped to the ANSI sequences Discord renders
// inside ```ansi fences.
var colorToANSI = map[string]string{
	"§0": "\033[0;30m",
	"§1": "\033[0;34m",
	"§2": "\033[0;32m",
	"§3": "\033[0;35m",
	"§4": "\033[0;31m",
	"§5": "\033[0;35m",
	"§6": "\033[0;33m",
	"§7": "\033[0;37m",
	"§8": "\033[0;90m",
	"§9": "\033[0;94m",
	"§a": "\033[0;32m",
	"§b": "\033[0;34m",
	"§c": "\033[0;91m",
	"§d": "\033[0;95m",
	"§e": "\033[0;93m",
	"§f": "\033[0;97m",
	"§r": "\033[0m",
}

// RecolorANSI rewrites game color codes into ANSI escapes.
func RecolorANSI(message string) string {
	for code, ansi := range colorToANSI {
		message = strings.ReplaceAll(message, code, ansi)
	}
	return message
}
