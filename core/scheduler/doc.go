// Package scheduler computes how much cost and carbon a charge job saves by
// delaying its start by whole hours, given a 24 hour price and emission
// forecast. It exposes the full savings profile; picking a delay is left to
// the caller.
package scheduler
