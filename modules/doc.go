/*
Package modules manages the lifecycle of the program components.

A module registers prep, start and stop functions and the names of the
modules it depends on. Start preps and then starts all modules in dependency
order, Shutdown stops them in reverse order. Long running work is done in
workers, which are bound to the context of their module and recover from
panics.

	var module *modules.Module

	func init() {
		module = modules.Register("random", prep, start, stop, "base")
	}
*/
package modules
