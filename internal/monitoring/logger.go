// Package monitoring is the shared diagnostic log of the serial, detector and
// notification packages.
package monitoring

import "log"

// Logf writes one diagnostic line. It defaults to log.Printf.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces Logf. nil mutes logging.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
