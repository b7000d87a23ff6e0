package metrics

import (
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// runtimeGauge одна метрика runtime: значение читается из снимка MemStats.
// ok=false пропускает метрику в этом сборе.
type runtimeGauge struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	read      func(ms *runtime.MemStats) (v float64, ok bool)
}

// RuntimeCollector публикует состояние процесса, на котором крутятся воркеры симуляции
type RuntimeCollector struct {
	gauges []runtimeGauge
}

// NewRuntimeCollector создаёт новый коллектор runtime метрик
func NewRuntimeCollector(namespace, subsystem string) *RuntimeCollector {
	g := func(name, help string, vt prometheus.ValueType, read func(*runtime.MemStats) (float64, bool)) runtimeGauge {
		return runtimeGauge{
			desc:      prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil),
			valueType: vt,
			read:      read,
		}
	}
	always := func(f func(*runtime.MemStats) float64) func(*runtime.MemStats) (float64, bool) {
		return func(ms *runtime.MemStats) (float64, bool) { return f(ms), true }
	}

	return &RuntimeCollector{gauges: []runtimeGauge{
		g("runtime_goroutines", "Number of goroutines", prometheus.GaugeValue,
			always(func(*runtime.MemStats) float64 { return float64(runtime.NumGoroutine()) })),
		g("runtime_cpus", "Logical CPUs available to simulation workers", prometheus.GaugeValue,
			always(func(*runtime.MemStats) float64 { return float64(runtime.NumCPU()) })),
		g("runtime_memory_alloc_bytes", "Bytes allocated and still in use", prometheus.GaugeValue,
			always(func(ms *runtime.MemStats) float64 { return float64(ms.Alloc) })),
		g("runtime_memory_sys_bytes", "Bytes obtained from system", prometheus.GaugeValue,
			always(func(ms *runtime.MemStats) float64 { return float64(ms.Sys) })),
		g("runtime_gc_runs_total", "Total number of completed GC cycles", prometheus.CounterValue,
			always(func(ms *runtime.MemStats) float64 { return float64(ms.NumGC) })),
		g("runtime_gc_pause_seconds", "Last GC pause duration", prometheus.GaugeValue,
			func(ms *runtime.MemStats) (float64, bool) {
				if ms.NumGC == 0 {
					return 0, false
				}
				return float64(ms.PauseNs[(ms.NumGC+255)%256]) / 1e9, true
			}),
	}}
}

// RegisterRuntimeCollector регистрирует коллектор в DefaultRegisterer
func RegisterRuntimeCollector(namespace, subsystem string) error {
	return prometheus.Register(NewRuntimeCollector(namespace, subsystem))
}

func (c *RuntimeCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, g := range c.gauges {
		ch <- g.desc
	}
}

func (c *RuntimeCollector) Collect(ch chan<- prometheus.Metric) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	for _, g := range c.gauges {
		if v, ok := g.read(&ms); ok {
			ch <- prometheus.MustNewConstMetric(g.desc, g.valueType, v)
		}
	}
}

// RequestTracker считает запросы в обработке: общий gauge плюс разбивка по шаблону маршрута
type RequestTracker struct {
	mu       sync.Mutex
	active   map[string]int
	inFlight prometheus.Gauge
}

func NewRequestTracker(inFlight prometheus.Gauge) *RequestTracker {
	return &RequestTracker{active: make(map[string]int), inFlight: inFlight}
}

// Start отмечает начало запроса
func (t *RequestTracker) Start(route string) {
	t.mu.Lock()
	t.active[route]++
	t.mu.Unlock()
	t.inFlight.Inc()
}

// End отмечает завершение запроса; лишний End игнорируется
func (t *RequestTracker) End(route string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.active[route]
	switch {
	case n == 0:
		return
	case n == 1:
		delete(t.active, route)
	default:
		t.active[route] = n - 1
	}
	t.inFlight.Dec()
}

// Active количество активных запросов по маршруту
func (t *RequestTracker) Active(route string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active[route]
}
