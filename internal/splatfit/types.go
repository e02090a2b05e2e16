package splatfit

// Real is the scalar type for all primitive attributes and image buffers.
type Real = float32

// Channel indices for readability.
const (
	ChR = 0
	ChG = 1
	ChB = 2
)
