package runs

import "time"

// DefaultTTL is how long a run is served from the cache when no TTL is configured.
// Stored history changes at most once a day, so a day-old result is still current.
const DefaultTTL = 24 * time.Hour
