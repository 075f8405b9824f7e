package store

import "github.com/seonyeopkim/asyncaction/mainloop"

// Priority orders dispatches waiting on the main loop.
type Priority = mainloop.Priority

const (
	PriorityBackground    = mainloop.PriorityBackground
	PriorityUtility       = mainloop.PriorityUtility
	PriorityLow           = mainloop.PriorityLow
	PriorityMedium        = mainloop.PriorityMedium
	PriorityHigh          = mainloop.PriorityHigh
	PriorityUserInitiated = mainloop.PriorityUserInitiated
	PriorityDefault       = mainloop.PriorityDefault
)
