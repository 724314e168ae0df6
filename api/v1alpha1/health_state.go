package v1alpha1

// HealthState is the value of the status field on the health endpoints.
type HealthState string

const (
	// HealthAlive is reported by the liveness endpoint while the process serves requests.
	HealthAlive HealthState = "alive"

	// HealthReady indicates the agent finished initialising and accepts work.
	HealthReady HealthState = "ready"

	// HealthStarting indicates the agent is still initialising.
	HealthStarting HealthState = "starting"
)

// HealthStatus is the body of the health endpoints.
type HealthStatus struct {
	Status HealthState `json:"status"`
}
