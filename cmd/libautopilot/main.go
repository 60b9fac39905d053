// Command libautopilot builds the AutoPilot bridge as a C shared library:
//
//	go build -buildmode=c-shared -o libautopilot.so ./cmd/libautopilot
//
// The exports keep the names and argument order of the native AutoPilot
// interface. Strings handed back to the caller are malloc'ed copies and must
// be released with freePointer.
package main

/*
#include <stdbool.h>
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"
)

func main() {}

//export begin
func begin(runtimePath, bundlePath *C.char) C.ulong {
	return C.ulong(instance().begin(goString(runtimePath), goString(bundlePath)))
}

//export end
func end() C.ulong {
	return C.ulong(instance().bridge.End())
}

//export setLoggingOptions
func setLoggingOptions(stdout, file C.bool) {
	instance().bridge.SetLoggingOptions(bool(stdout), bool(file))
}

//export clearError
func clearError() {
	instance().bridge.ClearError()
}

//export getLastJavaExceptionMessage
func getLastJavaExceptionMessage() *C.char {
	msg, ok := instance().bridge.LastExceptionMessage()
	if !ok {
		return nil
	}
	return C.CString(msg)
}

//export getLastError
func getLastError() *C.char {
	return C.CString(instance().bridge.LastError())
}

//export dcts16bit
func dcts16bit(buffer *C.short, width, height C.int, psf C.double) C.double {
	samples := int16s(buffer, imageLength(int32(width), int32(height)))
	return C.double(instance().bridge.DCTS16Bit(samples, int32(width), int32(height), float64(psf)))
}

//export tenengrad16bit
func tenengrad16bit(buffer *C.short, width, height C.int, psf C.double) C.double {
	samples := int16s(buffer, imageLength(int32(width), int32(height)))
	return C.double(instance().bridge.Tenengrad16Bit(samples, int32(width), int32(height), float64(psf)))
}

//export l2solveSSP
func l2solveSSP(detect, symmetric C.bool, wavelengths, planes, syncPlane C.int,
	oldState, observations *C.double, missing *C.bool, newState *C.double,
) C.int {
	n := lengthsOf(int32(wavelengths), int32(planes))
	return C.int(instance().bridge.L2SolveSSP(bool(detect), bool(symmetric),
		int32(wavelengths), int32(planes), int32(syncPlane),
		float64s(oldState, n.state),
		float64s(observations, n.observations),
		bools(missing, n.observations),
		float64s(newState, n.state),
	))
}

//export l2solve
func l2solve(detect, symmetric C.bool, wavelengths, planes C.int, syncPlanes *C.bool,
	oldState, observations *C.double, missing *C.bool, newState *C.double,
) C.int {
	n := lengthsOf(int32(wavelengths), int32(planes))
	return C.int(instance().bridge.L2Solve(bool(detect), bool(symmetric),
		int32(wavelengths), int32(planes),
		bools(syncPlanes, n.sync),
		float64s(oldState, n.state),
		float64s(observations, n.observations),
		bools(missing, n.observations),
		float64s(newState, n.state),
	))
}

//export qpsolve
func qpsolve(detect, symmetric C.bool, wavelengths, planes C.int, syncPlanes *C.bool,
	oldState, observations *C.double, missing *C.bool, maxCorrections, newState *C.double,
) C.int {
	n := lengthsOf(int32(wavelengths), int32(planes))
	return C.int(instance().bridge.QPSolve(bool(detect), bool(symmetric),
		int32(wavelengths), int32(planes),
		bools(syncPlanes, n.sync),
		float64s(oldState, n.state),
		float64s(observations, n.observations),
		bools(missing, n.observations),
		float64s(maxCorrections, n.state),
		float64s(newState, n.state),
	))
}

//export freePointer
func freePointer(p unsafe.Pointer) {
	C.free(p)
}

func goString(s *C.char) string {
	if s == nil {
		return ""
	}
	return C.GoString(s)
}

// The views below alias caller memory for the duration of one call.

func int16s(p *C.short, n int) []int16 {
	if p == nil || n <= 0 {
		return nil
	}
	return unsafe.Slice((*int16)(unsafe.Pointer(p)), n)
}

func float64s(p *C.double, n int) []float64 {
	if p == nil || n <= 0 {
		return nil
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(p)), n)
}

func bools(p *C.bool, n int) []bool {
	if p == nil || n <= 0 {
		return nil
	}
	return unsafe.Slice((*bool)(unsafe.Pointer(p)), n)
}
