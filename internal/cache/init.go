package cache

import (
	"github.com/vidinfra/entitle/internal/logger"
)

// Initialize initializes the cache system. It returns the Cache
// interface so consumers resolve against it rather than the in-memory
// implementation.
func Initialize(log *logger.Logger) Cache {
	log.Info("Initializing cache system")

	// Initialize the global cache instance
	InitializeInMemoryCache()

	// Return the cache instance
	return GetInMemoryCache()
}
