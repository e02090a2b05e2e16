package splatfit

const (
	NumPoints        = 100_000
	MaxIter          = 7000
	LearningRate     = 0.01
	FovXDeg          = 90.0
	Background       = 0.0
	SnapshotInterval = 100
	CameraDist       = 8.0
	MaxImageDim      = 512
	GIFOut           = "fit.gif"
	GIFDelay         = 5 // 100ths of a second per frame
	GIFLoop          = 0
	TileSize         = 16 // screen tile edge in pixels
	NumShards        = 1024
	Channels         = 3
	// hot-loop constants shared by the pipeline stages
	nearPlane   = 1e-2        // camera-space z below this projects to the depth==0 sentinel
	covBlur     = 0.3         // screen-space low-pass added to the 2D covariance
	eigenFloor  = 0.1         // lower bound on the discriminant when sizing footprints
	radiusSigma = 3.0         // footprint radius in standard deviations
	alphaMin    = 1.0 / 255.0 // contributions below this are dropped
	alphaMax    = 0.99        // opacity clamp keeping (1-alpha) away from zero
	transmitEps = 1e-4        // stop compositing once transmittance falls below this
)
