//go:build tools
// +build tools

// Package tools pins mockgen, used by the go:generate headers, in go.mod.
package social_lab

import (
	_ "go.uber.org/mock/mockgen"
)
