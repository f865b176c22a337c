// Package probe reads host conditions that affect measurements. Every
// reading is optional: an unavailable capability degrades to a zero value
// and a warning.
package probe

import (
	"context"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"calibench/internal/telemetry"
)

const (
	capabilityCPU     = "cpu_load"
	capabilityMemory  = "system_memory"
	capabilityThermal = "thermal_state"

	// defaultCPUWindow is how long CPULoad samples utilisation for.
	defaultCPUWindow = 200 * time.Millisecond

	// Fallback thresholds for sensors that do not report their own.
	fairCelsius    = 70.0
	seriousCelsius = 85.0
)

// Probe reads host conditions.
type Probe interface {
	CPULoad(ctx context.Context) float64
	SystemMemory(ctx context.Context) Memory
	ThermalState(ctx context.Context) Thermal
}

// Memory is system-wide memory in bytes.
type Memory struct {
	Total       uint64  `json:"total" yaml:"total"`
	Available   uint64  `json:"available" yaml:"available"`
	Used        uint64  `json:"used" yaml:"used"`
	UsedPercent float64 `json:"used_percent" yaml:"used_percent"`
}

// ThermalState is a coarse classification of the hottest sensor.
type ThermalState string

const (
	ThermalUnknown  ThermalState = "unknown"
	ThermalNominal  ThermalState = "nominal"
	ThermalFair     ThermalState = "fair"
	ThermalSerious  ThermalState = "serious"
	ThermalCritical ThermalState = "critical"
)

// Thermal is the hottest sensor reading and its classification.
type Thermal struct {
	State      ThermalState `json:"state" yaml:"state"`
	MaxCelsius float64      `json:"max_celsius" yaml:"max_celsius"`
	Sensor     string       `json:"sensor,omitempty" yaml:"sensor,omitempty"`
}

// Snapshot bundles one reading of every capability.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	CPULoad   float64   `json:"cpu_load_percent" yaml:"cpu_load_percent"`
	Memory    Memory    `json:"memory" yaml:"memory"`
	Thermal   Thermal   `json:"thermal" yaml:"thermal"`
}

// HostProbe reads the local host through gopsutil.
type HostProbe struct {
	Logger    *slog.Logger
	CPUWindow time.Duration

	cpuPercent    func(ctx context.Context, interval time.Duration, perCPU bool) ([]float64, error)
	virtualMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	temperatures  func(ctx context.Context) ([]host.TemperatureStat, error)
	now           func() time.Time
}

// NewHostProbe returns a probe backed by the running host.
func NewHostProbe(logger *slog.Logger) *HostProbe {
	return &HostProbe{
		Logger:        logger,
		CPUWindow:     defaultCPUWindow,
		cpuPercent:    cpu.PercentWithContext,
		virtualMemory: mem.VirtualMemoryWithContext,
		temperatures:  host.SensorsTemperaturesWithContext,
		now:           time.Now,
	}
}

// CPULoad returns overall CPU utilisation in percent over CPUWindow.
func (p *HostProbe) CPULoad(ctx context.Context) float64 {
	load, err := p.cpuPercent(ctx, p.CPUWindow, false)
	if err != nil || len(load) == 0 {
		p.unavailable(capabilityCPU, err)
		return 0
	}
	return load[0]
}

// SystemMemory returns system-wide memory usage.
func (p *HostProbe) SystemMemory(ctx context.Context) Memory {
	vm, err := p.virtualMemory(ctx)
	if err != nil || vm == nil {
		p.unavailable(capabilityMemory, err)
		return Memory{}
	}
	return Memory{
		Total:       vm.Total,
		Available:   vm.Available,
		Used:        vm.Used,
		UsedPercent: vm.UsedPercent,
	}
}

// ThermalState classifies the hottest temperature sensor.
func (p *HostProbe) ThermalState(ctx context.Context) Thermal {
	temps, err := p.temperatures(ctx)
	// gopsutil returns partial readings together with a warnings error.
	if len(temps) == 0 {
		p.unavailable(capabilityThermal, err)
		return Thermal{State: ThermalUnknown}
	}
	return classify(temps)
}

// Snapshot reads every capability once.
func (p *HostProbe) Snapshot(ctx context.Context) Snapshot {
	return Snapshot{
		Timestamp: p.now(),
		CPULoad:   p.CPULoad(ctx),
		Memory:    p.SystemMemory(ctx),
		Thermal:   p.ThermalState(ctx),
	}
}

func (p *HostProbe) unavailable(capability string, err error) {
	telemetry.TrackProbeUnavailable(capability)
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err != nil {
		logger.Warn("system probe unavailable, using default", "capability", capability, "error", err)
		return
	}
	logger.Warn("system probe returned no data, using default", "capability", capability)
}

func classify(temps []host.TemperatureStat) Thermal {
	hottest := temps[0]
	for _, t := range temps[1:] {
		if t.Temperature > hottest.Temperature {
			hottest = t
		}
	}

	th := Thermal{MaxCelsius: hottest.Temperature, Sensor: hottest.SensorKey}
	switch {
	case hottest.Critical > 0 && hottest.Temperature >= hottest.Critical:
		th.State = ThermalCritical
	case hottest.High > 0 && hottest.Temperature >= hottest.High:
		th.State = ThermalSerious
	case hottest.High <= 0 && hottest.Temperature >= seriousCelsius:
		th.State = ThermalSerious
	case hottest.Temperature >= fairCelsius:
		th.State = ThermalFair
	default:
		th.State = ThermalNominal
	}
	return th
}
