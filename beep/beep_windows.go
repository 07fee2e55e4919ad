//go:build windows

package beep

// No playback on Windows.

func Init()      {}
func PlayStart() {}
func PlayEnd()   {}
func PlayError() {}
