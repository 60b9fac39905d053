package main

/*
#include <stdbool.h>
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"
)

// C-allocated buffers shaped like the ones native callers pass to the
// exports. Each returns the C pointer and a Go view over the same memory;
// release the pointer with freePointer.

func cDoubles(n int) (*C.double, []float64) {
	if n <= 0 {
		return nil, nil
	}
	p := (*C.double)(C.calloc(C.size_t(n), C.size_t(unsafe.Sizeof(C.double(0)))))
	return p, float64s(p, n)
}

func cBools(n int) (*C.bool, []bool) {
	if n <= 0 {
		return nil, nil
	}
	p := (*C.bool)(C.calloc(C.size_t(n), C.size_t(unsafe.Sizeof(C.bool(false)))))
	return p, bools(p, n)
}

func cShorts(n int) (*C.short, []int16) {
	if n <= 0 {
		return nil, nil
	}
	p := (*C.short)(C.calloc(C.size_t(n), C.size_t(unsafe.Sizeof(C.short(0)))))
	return p, int16s(p, n)
}
