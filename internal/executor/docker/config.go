package docker

import (
	"time"
)

// Config holds the sandbox container settings.
type Config struct {
	// Image must provide python with pandas and plotly installed.
	Image string
	// MemoryLimit is the maximum amount of memory the container can use (in bytes).
	MemoryLimit int64
	// CPULimit is the number of CPUs the container can use.
	CPULimit float64
	// Timeout bounds one chart execution.
	Timeout time.Duration
	// PoolSize is the number of pre-warmed containers to maintain.
	PoolSize int
}

// DefaultConfig returns limits sized for pandas on tens of thousands of rows.
func DefaultConfig() Config {
	return Config{
		Image:       "usage-dashboard-sandbox:latest",
		MemoryLimit: 512 * 1024 * 1024,
		CPULimit:    1,
		Timeout:     20 * time.Second,
		PoolSize:    2,
	}
}
