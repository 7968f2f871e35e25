// Package main provides the entry point for the ui-explorer CLI.
//
// ui-explorer is an automated QA oracle for running web applications.
// It explores an application as a state graph, exercising every reachable
// interactive element, and judges each transition against declared
// expectations.
//
// Usage:
//
//	ui-explorer explore <start-url>
//	ui-explorer compare <target-url>
//
// See --help for all available options.
package main

// main is the entry point for ui-explorer.
func main() {
	Execute()
}
