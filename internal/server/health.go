package server

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

var startupTime = time.Now()

// HealthResponse reports process liveness and host resource usage.
type HealthResponse struct {
	Status       string  `json:"status"`
	UptimeHours  float64 `json:"uptime_hours"`
	CPUPercent   float64 `json:"cpu_percent"`
	RAMPercent   float64 `json:"ram_percent"`
	RAMUsedMB    float64 `json:"ram_used_mb"`
	ServerTime   string  `json:"server_time"`
	WalletsReady bool    `json:"wallets_ready"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	cpuPercent, ramPercent, ramUsedMB := s.systemStats()

	respondJSON(w, http.StatusOK, HealthResponse{
		Status:       "healthy",
		UptimeHours:  time.Since(startupTime).Hours(),
		CPUPercent:   cpuPercent,
		RAMPercent:   ramPercent,
		RAMUsedMB:    ramUsedMB,
		ServerTime:   time.Now().Format(time.RFC3339),
		WalletsReady: s.agent != nil,
	})
}

// systemStats samples CPU over 100ms to keep the endpoint fast for pollers.
func (s *Server) systemStats() (float64, float64, float64) {
	cpuAvg := 0.0
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuAvg, 0, 0
	}

	return cpuAvg, memStat.UsedPercent, float64(memStat.Used) / 1024 / 1024
}
