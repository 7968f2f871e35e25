// Package config provides configuration structures and utilities for
// ui-explorer. It defines the exploration limits, browser driver selection,
// backend adapter settings, and report generation preferences, plus the
// YAML file loader that layers a config file over the defaults.
package config
