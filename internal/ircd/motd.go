package ircd

// defaultMOTD is sent when a config file does not supply its own. Each
// entry is one line of the RPL_MOTD (372) sequence.
var defaultMOTD = []string{
	`  ██╗██████╗  ██████╗███████╗██╗   ██╗███████╗███████╗███████╗██████╗ `,
	`  ██║██╔══██╗██╔════╝██╔════╝██║   ██║██╔════╝██╔════╝██╔════╝██╔══██╗`,
	`  ██║██████╔╝██║     ███████╗██║   ██║█████╗  █████╗  █████╗  ██████╔╝`,
	`  ██║██╔══██╗██║     ╚════██║██║   ██║██╔══╝  ██╔══╝  ██╔══╝  ██╔══██╗`,
	`  ██║██║  ██║╚██████╗███████║╚██████╔╝██║     ██║     ███████╗██║  ██║`,
	`  ╚═╝╚═╝  ╚═╝ ╚═════╝╚══════╝ ╚═════╝ ╚═╝     ╚═╝     ╚══════╝╚═╝  ╚═╝`,
}
