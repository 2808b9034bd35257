// Package wakelock implements the suspend-inhibit primitive.
//
// An Inhibitor hands out named Tokens. A token starts idle; every Extend
// keeps the system awake for a bounded window, so a stalled caller stops
// inhibiting suspend on its own. Release destroys the token.
//
// Backends:
//
//   - Memory keeps state in process and exposes it for inspection.
//   - Sysfs writes Android-style kernel wakelocks through an afero.Fs,
//     normally rooted at /sys/power.
//   - Nop ignores everything.
package wakelock
