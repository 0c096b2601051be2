package event

import "runtime"

// maxStackDepth bounds how many frames CaptureStack records
const maxStackDepth = 50

// CaptureStack returns the calling goroutine's stack, innermost frame first.
// skip follows runtime.Callers: 0 is runtime.Callers itself, 1 is CaptureStack,
// 2 is the function calling CaptureStack, and so on.
func CaptureStack(skip int) []StackFrame {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(skip, pcs)
	if n == 0 {
		return nil
	}

	frames := make([]StackFrame, 0, n)
	callersFrames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := callersFrames.Next()
		line := frame.Line
		if line < 0 {
			line = 0
		}
		frames = append(frames, StackFrame{
			File:     frame.File,
			Line:     line,
			Function: frame.Function,
		})
		if !more {
			break
		}
	}

	return frames
}
