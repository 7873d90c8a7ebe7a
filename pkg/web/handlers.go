package web

import (
	"github.com/gofiber/fiber/v2"
)

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status          string `json:"status"`
	PipelineRunning bool   `json:"pipeline_running"`
	Clients         int    `json:"clients"`
}

// handleCurrent returns the full detection state.
func (s *Server) handleCurrent(c *fiber.Ctx) error {
	return c.JSON(s.opts.Store.Response())
}

// EffectiveResponse carries only the value a driver must obey right now.
type EffectiveResponse struct {
	SpeedLimit *int `json:"speed_limit"`
}

// handleEffective returns the effective speed limit, honoring any time
// condition on the confirmed value.
func (s *Server) handleEffective(c *fiber.Ctx) error {
	var resp EffectiveResponse
	if v, ok := s.opts.Store.EffectiveLimit(); ok {
		resp.SpeedLimit = &v
	}
	return c.JSON(resp)
}

// handleHealth reports service liveness and pipeline state.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:          "healthy",
		PipelineRunning: s.pipelineRunning.Load(),
		Clients:         s.stateHub.ClientCount(),
	})
}

// handleReset forces the state machine back to its initial state. Used by
// operators between test drives.
func (s *Server) handleReset(c *fiber.Ctx) error {
	s.opts.Machine.Reset()
	return c.JSON(s.opts.Store.Response())
}
