// Package pattern is the stochastic scheduling engine. It decides, day by
// day, whether activity happens, how much, and at what times, from a
// PatternConfig built from a preset or derived by Calibrate.
//
// Nothing in this package performs I/O. Generation is synchronous and each
// call owns its own walk state.
package pattern
