//go:build !debug
// +build !debug

package splatfit

func DebugLog(format string, args ...interface{})     {}
func DebugLogOnce(format string, args ...interface{}) {}
