// Package filter provides the CPU pixel math behind the stock stages.
//
// It contains:
//   - Gaussian blur (separable, per plane, any packed or NV12 format)
//   - Color matrix transformations for RGBA8 and BGRA8
//   - Gaussian kernels, spatial and temporal
//
// All filters read and write video buffers row by row through their
// strides, so padded layouts from aligned pools are handled without
// copies. Hot paths do not allocate: blur scratch space comes from a
// sync.Pool.
package filter
