package api

// Default limits for the HTTP surface.
const (
	DefaultMaxLimit             = 1000
	DefaultCheckinRatePerMinute = 30
)

// Option applies a configuration option to the API server.
type Option func(*Server)

// WithMaxLimit caps the limit query parameter of the leaderboard route.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithCheckinRate sets the per-client check-in budget per minute.
func WithCheckinRate(perMinute int) Option {
	return func(s *Server) {
		s.checkinRate = perMinute
	}
}

// WithStats exposes runtime counters on GET /stats.
func WithStats(p StatsProvider) Option {
	return func(s *Server) {
		s.stats = p
	}
}
