// Package watch drives a rule system from file-system events.
//
// Each event source watches one directory and is bound to a channel: an
// intrinsic variable of the system that receives every Event from that
// directory. Rules declare the channel as a required variable and react to
// the writes.
//
// ARCHITECTURE:
//
//	fsnotify (one goroutine per source)
//	    |
//	    v
//	deliveries channel
//	    |
//	    v
//	Run loop (single goroutine): write channel cell, ExecuteActivations
//
// The engine has no locking of its own, so every write and drain happens on
// the Run goroutine. Deliver is the same step without the file system and
// must not be called while Run is active.
package watch
