package splatfit

var (
	Debug    = false // set to true for verbose debug output
	UseLocks = true  // set to false to disable sharded locks for parallel gradient writes
	PNG      = false // set to true to save a PNG sequence instead of an animated GIF

	// Compile time check that the CPU backend satisfies the pipeline contract.
	_ Pipeline = (*CPUPipeline)(nil)
)
