package health

type Input struct{}

type Output struct {
	Body Response
}

// Response reports service liveness. Database reachability is deliberately
// not part of this check; a starving pool should not flap the probe.
type Response struct {
	Status  string `json:"status" example:"OK"`
	Service string `json:"service" example:"salesync"`
}
