package middlewares

// gin context keys
const (
	CtxRequestID = "request_id"
	ctxUserKey   = "auth.user"
	ctxTokenKey  = "auth.token"
)
