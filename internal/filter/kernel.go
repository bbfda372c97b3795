package filter

import (
	"math"
	"sync"
)

// GaussianKernel generates a 1D Gaussian kernel for the given radius.
// The kernel is normalized so all values sum to 1.0.
//
// The kernel size is computed as 2 * ceil(radius * 3) + 1, which covers
// 99.7% of the Gaussian distribution (3 standard deviations).
//
// For radius <= 0, returns a single-element kernel [1.0] (identity).
func GaussianKernel(radius float64) []float32 {
	if radius <= 0 {
		return []float32{1.0}
	}

	// Using radius as sigma
	halfSize := int(math.Ceil(radius * 3))
	weights := gaussian(halfSize, radius)

	kernel := make([]float32, len(weights))
	for i, w := range weights {
		kernel[i] = float32(w)
	}
	return kernel
}

// TemporalWeights returns the 2*radius+1 normalized Gaussian weights with
// standard deviation stdev used to smooth a window of frames centered on
// the current one. A radius of 0 or a non-positive stdev yields [1].
func TemporalWeights(radius int, stdev float64) []float64 {
	if radius <= 0 || stdev <= 0 {
		return []float64{1}
	}
	return gaussian(radius, stdev)
}

// gaussian returns 2*half+1 samples of exp(-x²/(2σ²)) normalized to sum 1.
func gaussian(half int, sigma float64) []float64 {
	size := half*2 + 1
	w := make([]float64, size)

	// The normalization constant is skipped; the sum is normalized below.
	twoSigmaSq := 2 * sigma * sigma
	var sum float64
	for i := range size {
		x := float64(i - half)
		w[i] = math.Exp(-(x * x) / twoSigmaSq)
		sum += w[i]
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

// kernelCache caches computed Gaussian kernels to avoid recomputation.
// Key is radius * 100 (to handle float precision), value is kernel.
type kernelCache struct {
	mu     sync.RWMutex
	cache  map[int][]float32
	maxLen int
}

var defaultKernelCache = newKernelCache(64)

// newKernelCache creates a kernel cache with the given maximum entries.
func newKernelCache(maxLen int) *kernelCache {
	return &kernelCache{
		cache:  make(map[int][]float32),
		maxLen: maxLen,
	}
}

// get retrieves a kernel from cache or generates and caches it.
func (c *kernelCache) get(radius float64) []float32 {
	// Quantize radius to 0.01 precision
	key := int(radius * 100)

	c.mu.RLock()
	if kernel, ok := c.cache[key]; ok {
		c.mu.RUnlock()
		return kernel
	}
	c.mu.RUnlock()

	kernel := GaussianKernel(radius)

	c.mu.Lock()
	if len(c.cache) >= c.maxLen {
		// Simple eviction: clear half the cache
		count := 0
		for k := range c.cache {
			delete(c.cache, k)
			count++
			if count >= c.maxLen/2 {
				break
			}
		}
	}
	c.cache[key] = kernel
	c.mu.Unlock()

	return kernel
}

// CachedGaussianKernel returns a cached Gaussian kernel for the radius.
// Blur stages process every frame with the same radius, so the kernel is
// computed once per stage configuration.
func CachedGaussianKernel(radius float64) []float32 {
	return defaultKernelCache.get(radius)
}

// KernelSize returns the Gaussian kernel size for a given radius.
func KernelSize(radius float64) int {
	if radius <= 0 {
		return 1
	}
	halfSize := int(math.Ceil(radius * 3))
	return halfSize*2 + 1
}
