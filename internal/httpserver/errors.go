package httpserver

const (
	ErrBadBody      = "bad body"
	ErrInvalidJSON  = "invalid json"
	ErrMissingID    = "missing message id"
	ErrDependency   = "dependency error"
	ErrUnauthorized = "unauthorized"
)
