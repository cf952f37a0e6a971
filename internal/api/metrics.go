package api

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ServerMetrics метрики процесса редактора для /api/stats
type ServerMetrics struct {
	StartTime time.Time
	proc      *process.Process
}

// StatsSnapshot снимок состояния процесса
type StatsSnapshot struct {
	Uptime        string  `json:"uptime"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	HeapAllocMB   float64 `json:"heap_alloc_mb"`
	SysMB         float64 `json:"sys_mb"`
	NumGC         uint32  `json:"num_gc"`
	Goroutines    int     `json:"goroutines"`
	ProcessRSSMB  float64 `json:"process_rss_mb,omitempty"`
	ProcessCPU    float64 `json:"process_cpu_percent,omitempty"`
	HostMemUsed   float64 `json:"host_mem_used_percent,omitempty"`
	ServerTime    int64   `json:"server_time"`
}

// NewServerMetrics создает метрики для текущего процесса
func NewServerMetrics() *ServerMetrics {
	sm := &ServerMetrics{StartTime: time.Now()}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		sm.proc = p
	}
	return sm
}

// GetUptime возвращает время работы в виде "1д 2ч 3м 4с"
func (sm *ServerMetrics) GetUptime() string {
	return formatUptime(time.Since(sm.StartTime))
}

func formatUptime(uptime time.Duration) string {
	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60
	seconds := int(uptime.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	default:
		return fmt.Sprintf("%dс", seconds)
	}
}

// Snapshot собирает метрики. Ошибки gopsutil не фатальны: соответствующие
// поля остаются нулевыми.
func (sm *ServerMetrics) Snapshot() StatsSnapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	s := StatsSnapshot{
		Uptime:        sm.GetUptime(),
		UptimeSeconds: int64(time.Since(sm.StartTime).Seconds()),
		HeapAllocMB:   float64(m.HeapAlloc) / 1024 / 1024,
		SysMB:         float64(m.Sys) / 1024 / 1024,
		NumGC:         m.NumGC,
		Goroutines:    runtime.NumGoroutine(),
		ServerTime:    time.Now().Unix(),
	}

	if sm.proc != nil {
		if info, err := sm.proc.MemoryInfo(); err == nil {
			s.ProcessRSSMB = float64(info.RSS) / 1024 / 1024
		}
		if cpu, err := sm.proc.CPUPercent(); err == nil {
			s.ProcessCPU = cpu
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.HostMemUsed = vm.UsedPercent
	}
	return s
}
