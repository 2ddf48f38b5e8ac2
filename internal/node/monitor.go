package node

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// monitorInterval is how often SerialMonitor samples the host.
const monitorInterval = 60 * time.Second

// nvidiaSMICandidates are the paths probed, in order, to decide whether the
// host has a usable GPU prover: a bare name resolved through PATH, then the
// two conventional install locations.
var nvidiaSMICandidates = []string{"nvidia-smi", "/usr/bin/nvidia-smi", "/usr/local/bin/nvidia-smi"}

// ProbeGPU reports whether nvidia-smi is reachable at any of
// nvidiaSMICandidates, and if so which path resolved. sampleGPUs uses it to
// find the binary, and cmd/prover logs the result at startup; the zkVM
// collaborator cmd/prover wires is the same whatever it reports.
func ProbeGPU() (path string, ok bool) {
	for _, candidate := range nvidiaSMICandidates {
		if _, err := exec.LookPath(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

// gpuSample is a single GPU's utilization and memory reading, parsed from
// nvidia-smi's CSV query output.
type gpuSample struct {
	Index          int
	UtilizationPct float64
	MemoryUsedMiB  float64
	MemoryTotalMiB float64
}

// SerialMonitor periodically logs host resource usage alongside the
// node's cumulative metrics.
type SerialMonitor struct {
	ctx *Context
}

// NewSerialMonitor builds a monitor bound to nc.
func NewSerialMonitor(nc *Context) *SerialMonitor {
	return &SerialMonitor{ctx: nc}
}

// Record takes one sample of CPU, RAM, disk, and (if ProbeGPU finds
// nvidia-smi) GPU usage, and logs it alongside the node's cumulative metrics.
func (m *SerialMonitor) Record(ctx context.Context) error {
	log := m.ctx.Log

	cpuPct, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err != nil {
		log.Warnw("failed to sample cpu", "cause", err)
	}

	vmem, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		log.Warnw("failed to sample memory", "cause", err)
	}

	diskUsage, err := disk.UsageWithContext(ctx, "/")
	if err != nil {
		log.Warnw("failed to sample disk", "cause", err)
	}

	gpus, err := sampleGPUs(ctx)
	if err != nil {
		log.Debugw("no gpu telemetry available", "cause", err)
	}

	snapshot := m.ctx.Metrics.Snapshot()

	fields := []interface{}{
		"fulfilled", snapshot.Fulfilled,
		"online_since", snapshot.OnlineSince,
		"total_cycles", snapshot.TotalCycles,
		"total_proving_time", snapshot.TotalProvingTime,
	}
	if len(cpuPct) > 0 {
		fields = append(fields, "cpu_pct", cpuPct[0])
	}
	if vmem != nil {
		fields = append(fields, "ram_used_pct", vmem.UsedPercent)
	}
	if diskUsage != nil {
		fields = append(fields, "disk_used_pct", diskUsage.UsedPercent)
	}
	for _, g := range gpus {
		fields = append(fields, "gpu_index", g.Index, "gpu_util_pct", g.UtilizationPct, "gpu_mem_used_mib", g.MemoryUsedMiB)
	}

	log.Infow("node resource sample", fields...)
	return nil
}

// sampleGPUs shells out to nvidia-smi to read per-GPU utilization and
// memory, returning a permanent (non-retryable) error when the binary
// isn't present — the caller treats that as "no CUDA device", not a
// failure.
func sampleGPUs(ctx context.Context) ([]gpuSample, error) {
	path, ok := ProbeGPU()
	if !ok {
		return nil, exec.ErrNotFound
	}
	cmd := exec.CommandContext(ctx, path,
		"--query-gpu=index,utilization.gpu,memory.used,memory.total",
		"--format=csv,noheader,nounits")
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	var samples []gpuSample
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 4 {
			continue
		}
		index, _ := strconv.Atoi(strings.TrimSpace(fields[0]))
		util, _ := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		used, _ := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		total, _ := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
		samples = append(samples, gpuSample{
			Index:          index,
			UtilizationPct: util,
			MemoryUsedMiB:  used,
			MemoryTotalMiB: total,
		})
	}
	return samples, nil
}
