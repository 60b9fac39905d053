package engine

// Export names the bridge looks for in the runtime image.
const (
	MemoryExport = "memory"

	CabiRealloc = "cabi_realloc"
	CabiFree    = "cabi_free"

	// Legacy names from pre-standardization component model implementations
	legacyRealloc = "canonical_abi_realloc"
	legacyAlloc   = "allocate"
	simpleAlloc   = "alloc"
	simpleMalloc  = "malloc"
	legacyDealloc = "deallocate"
	simpleFree    = "free"
)

// allocNames is the allocator lookup order.
var allocNames = []string{CabiRealloc, legacyRealloc, legacyAlloc, simpleAlloc, simpleMalloc}

// freeNames is the deallocator lookup order.
var freeNames = []string{CabiFree, legacyDealloc, simpleFree}
