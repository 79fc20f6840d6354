package status

import (
	"context"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// HostInfo describes the machine driving the screen.
type HostInfo struct {
	Hostname          string  `json:"hostname"`
	OS                string  `json:"os"`
	Platform          string  `json:"platform"`
	PlatformVersion   string  `json:"platform_version"`
	UptimeSeconds     uint64  `json:"uptime_seconds"`
	MemoryUsedPercent float64 `json:"memory_used_percent"`
}

// CollectHost reads host facts. Memory usage is best effort.
func CollectHost(ctx context.Context) (HostInfo, error) {
	hi, err := host.InfoWithContext(ctx)
	if err != nil {
		return HostInfo{}, err
	}
	out := HostInfo{
		Hostname:        hi.Hostname,
		OS:              hi.OS,
		Platform:        hi.Platform,
		PlatformVersion: hi.PlatformVersion,
		UptimeSeconds:   hi.Uptime,
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		out.MemoryUsedPercent = vm.UsedPercent
	}
	return out, nil
}
