// Package client is a Go client for the admin API, used by the CLI's
// status and control commands.
package client
