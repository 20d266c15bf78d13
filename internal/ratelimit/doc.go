// Package ratelimit implements fixed-window admission control for HTTP handlers.
//
// A Limiter derives a key from the request (the caller IP by default), increments
// the key's counter in a Store and renders a Decision. Counters live either in a
// process-local MemoryStore or in Redis through a RemoteStore, which falls back to
// its own MemoryStore whenever Redis is slow or unreachable. No error ever reaches
// the caller of CheckLimit.
//
// Named limiters are shared through a Registry:
//
//	registry := ratelimit.NewRegistry(store)
//	limiter, err := registry.GetOrCreate(ratelimit.PresetFeedback, nil)
//	if err != nil {
//		return err
//	}
//
//	decision := limiter.CheckLimit(r)
//	if !decision.Allowed {
//		ratelimit.WriteRejection(w, decision, limiter.Config().Message)
//		return
//	}
//	ratelimit.SetHeaders(w, decision)
//
// or as middleware for a whole router:
//
//	router.Use(ratelimit.Middleware(limiter))
package ratelimit
