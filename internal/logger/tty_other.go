//go:build !linux

package logger

func fdIsTerminal(uintptr) bool { return false }
