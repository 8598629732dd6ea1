package config

const (
	defaultContextWidth    = 3
	defaultCentralPosition = 1
	defaultClusterThresh   = 0.1
	defaultFallbackThresh  = -1
	defaultLowCount        = 100
	defaultPriorFloor      = 1e-7
	defaultPriorLog        = true
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Tree: Tree{
			ContextWidth:    defaultContextWidth,
			CentralPosition: defaultCentralPosition,
		},
		Shrink: Shrink{
			ClusterThresh:  defaultClusterThresh,
			FallbackThresh: defaultFallbackThresh,
			LowCount:       defaultLowCount,
		},
		Prior: Prior{
			Floor: defaultPriorFloor,
			Log:   defaultPriorLog,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
