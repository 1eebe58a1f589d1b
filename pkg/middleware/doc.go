// Package middleware provides HTTP middleware for authentication and claim
// attempt rate limiting.
//
// # Middleware Components
//
// AuthMiddleware: optional bearer JWT authentication
//
//	router.Use(middleware.NewAuthMiddleware(issuer).Handler)
//	// No Authorization header: anonymous caller
//	// Invalid token: 401 rest_forbidden
//
// ClaimRateLimit: throttles requests carrying a claim_token per client IP
//
//	limiter := middleware.NewRateLimiter(middleware.ClaimRateLimitConfig(10))
//	claims := middleware.NewClaimRateLimit(limiter, time.Minute, proxies, metrics)
//
// DistributedRateLimiter shares the claim limit across instances through
// Redis and can replace the in-memory RateLimiter:
//
//	limiter := middleware.NewDistributedRateLimiter(redisClient, config, "")
//
// # Related Packages
//
//   - pkg/auth: principals and token verification
//   - pkg/policy: permission decisions
package middleware
