package httpserver

import (
	"github.com/gorilla/mux"
)

type Server struct {
	Mux *mux.Router
}

func New() *Server {
	r := mux.NewRouter()
	r.Use(Logging)
	return &Server{Mux: r}
}

// HealthOnly returns a router serving /livez and a /healthz readiness probe
// backed by checks.
func HealthOnly(checks ...ReadyzCheck) *mux.Router {
	s := New()
	s.Mux.HandleFunc("/livez", Healthz()).Methods("GET")
	s.Mux.HandleFunc("/healthz", Readyz(readyzTimeout, checks...)).Methods("GET")
	return s.Mux
}
