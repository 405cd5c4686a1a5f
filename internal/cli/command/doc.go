// Package command provides the tokstash-cli commands.
//
// Commands are built with urfave/cli/v2 and map one-to-one onto the
// server's HTTP routes:
//
//	create       POST /create
//	validate     GET  /validate/{token}
//	expire       GET  /expire/{token}
//	update       POST /update_expiration/{token}
//	get-expired  GET  /get_expired/{token}
//	diagnostic   GET  /diagnostic
//
// shell runs the same commands interactively.
package command
