package middlewares

// Keys for values stashed on the gin context by middleware.
const (
	CtxRequestID = "ctx.request_id"
	CtxJobID     = "ctx.job_id"
)
